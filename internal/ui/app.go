package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"reactango/internal/logging"
	reactangosdk "reactango/sdk/go"
	"reactango/sdk/go/users"
)

// View represents the current active view.
type View int

const (
	ViewList View = iota
	ViewDetail
)

// Options configures the UI.
type Options struct {
	Context context.Context
	Client  *reactangosdk.Client
	Logger  *slog.Logger
	// Now is used for relative times; defaults to time.Now.
	Now func() time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx    context.Context
	client *reactangosdk.Client
	logger *slog.Logger
	now    func() time.Time
	keys   keyMap
	styles styles

	width  int
	height int
	view   View
	status string

	list   *users.List
	table  table.Model
	create *userForm

	detail  *users.Details
	edit    *userForm
	editing bool
	seeded  bool
}

// New creates the model and subscribes to the users list.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	t := table.New(
		table.WithColumns(listColumns()),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	t.SetStyles(table.DefaultStyles())

	m := Model{
		ctx:    ctx,
		client: opts.Client,
		logger: logger,
		now:    now,
		keys:   defaultKeyMap(),
		styles: defaultStyles(),
		view:   ViewList,
		list:   users.NewList(ctx, opts.Client, users.WithLogger(logger)),
		table:  t,
	}
	m.refreshTable()
	return m
}

// Close detaches the hooks.
func (m Model) Close() {
	if m.detail != nil {
		m.detail.Close()
	}
	m.list.Close()
}

// Messages

type listChangedMsg struct{}

type detailChangedMsg struct{ d *users.Details }

type createdMsg struct {
	user reactangosdk.User
	err  error
}

type updatedMsg struct {
	user reactangosdk.User
	err  error
}

type deletedMsg struct {
	id  int64
	err error
}

// Commands

// waitForUpdate turns the next change signal into msg. It returns nil once
// the hook is closed.
func waitForUpdate(updates, done <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-updates:
			return msg
		case <-done:
			return nil
		}
	}
}

func (m Model) waitList() tea.Cmd {
	return waitForUpdate(m.list.Updates(), m.list.Done(), listChangedMsg{})
}

func (m Model) waitDetail() tea.Cmd {
	if m.detail == nil {
		return nil
	}
	return waitForUpdate(m.detail.Updates(), m.detail.Done(), detailChangedMsg{d: m.detail})
}

func createCmd(ctx context.Context, l *users.List, in reactangosdk.CreateUserInput) tea.Cmd {
	return func() tea.Msg {
		u, err := l.CreateUser(ctx, in)
		return createdMsg{user: u, err: err}
	}
}

func updateCmd(ctx context.Context, d *users.Details, in reactangosdk.UpdateUserInput) tea.Cmd {
	return func() tea.Msg {
		u, err := d.UpdateUser(ctx, in)
		return updatedMsg{user: u, err: err}
	}
}

// deleteDetailCmd deletes the user shown by d and reloads the list before
// reporting back.
func deleteDetailCmd(ctx context.Context, d *users.Details, l *users.List) tea.Cmd {
	id := d.ID()
	return func() tea.Msg {
		if err := d.DeleteUser(ctx); err != nil {
			return deletedMsg{id: id, err: err}
		}
		_, err := l.Refetch().Wait(ctx)
		return deletedMsg{id: id, err: err}
	}
}

func deleteCmd(ctx context.Context, l *users.List, id int64) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{id: id, err: l.DeleteUser(ctx, id)}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.waitList()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case listChangedMsg:
		m.refreshTable()
		return m, m.waitList()

	case detailChangedMsg:
		if msg.d != m.detail {
			return m, nil
		}
		m.seedEdit()
		return m, m.waitDetail()

	case createdMsg:
		if m.create == nil {
			return m, nil
		}
		if msg.err != nil {
			m.create.fail(msg.err)
			return m, nil
		}
		// The list already reloaded inside CreateUser.
		m.create = nil
		m.status = fmt.Sprintf("Created %s", msg.user.Name)
		m.refreshTable()
		return m, nil

	case updatedMsg:
		if m.edit == nil {
			return m, nil
		}
		if msg.err != nil {
			m.edit.fail(msg.err)
			return m, nil
		}
		m.edit.submitting = false
		m.editing = false
		m.status = fmt.Sprintf("Saved %s", msg.user.Name)
		m.seeded = false
		m.seedEdit()
		m.list.Refetch()
		return m, nil

	case deletedMsg:
		if msg.err != nil {
			m.status = "Delete failed: " + msg.err.Error()
			return m, nil
		}
		if m.detail != nil && m.detail.ID() == msg.id {
			m = m.closeDetail()
		}
		m.status = fmt.Sprintf("Deleted user %d", msg.id)
		m.refreshTable()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.create != nil {
		return m.handleCreateKey(msg)
	}
	if m.view == ViewDetail {
		return m.handleDetailKey(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.New):
		m.create = newUserForm("New user")
		m.status = ""
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		m.list.Refetch()
		return m, nil
	case key.Matches(msg, m.keys.Open):
		if u, ok := m.selectedUser(); ok {
			return m.openDetail(u.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.Delete):
		if u, ok := m.selectedUser(); ok {
			m.status = fmt.Sprintf("Deleting %s...", u.Name)
			return m, deleteCmd(m.ctx, m.list, u.ID)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleCreateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.create.submitting {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Back):
		m.create = nil
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if !m.create.validate() {
			return m, nil
		}
		m.create.submitting = true
		return m, createCmd(m.ctx, m.list, m.create.createInput())
	}
	return m, m.create.update(msg, m.keys)
}

func (m Model) openDetail(id int64) (tea.Model, tea.Cmd) {
	if m.detail != nil {
		m.detail.Close()
	}
	m.detail = users.NewDetails(m.ctx, m.client, id, users.WithLogger(m.logger))
	m.edit = newUserForm("Edit user")
	m.editing = false
	m.seeded = false
	m.view = ViewDetail
	m.status = ""
	return m, m.waitDetail()
}

func (m Model) closeDetail() Model {
	if m.detail != nil {
		m.detail.Close()
	}
	m.detail = nil
	m.edit = nil
	m.editing = false
	m.view = ViewList
	return m
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		if m.edit.submitting {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Back):
			m.editing = false
			m.seeded = false
			m.edit.reset()
			m.seedEdit()
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			u := m.detail.User()
			if u == nil || !m.edit.validate() {
				return m, nil
			}
			m.edit.submitting = true
			return m, updateCmd(m.ctx, m.detail, m.edit.updateInput(*u))
		}
		return m, m.edit.update(msg, m.keys)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		return m.closeDetail(), nil
	case key.Matches(msg, m.keys.Refresh):
		m.detail.Refetch()
		return m, nil
	case key.Matches(msg, m.keys.Edit):
		if m.detail.User() != nil {
			m.editing = true
			m.edit.setFocus(0)
		}
		return m, nil
	case key.Matches(msg, m.keys.Delete):
		m.status = fmt.Sprintf("Deleting user %d...", m.detail.ID())
		return m, deleteDetailCmd(m.ctx, m.detail, m.list)
	}
	return m, nil
}

// seedEdit copies the loaded user into the edit form once per load.
func (m *Model) seedEdit() {
	if m.edit == nil || m.seeded || m.editing || m.detail == nil {
		return
	}
	if u := m.detail.User(); u != nil {
		m.edit.seed(*u)
		m.seeded = true
	}
}

func (m Model) selectedUser() (reactangosdk.User, bool) {
	all := m.list.Users()
	i := m.table.Cursor()
	if i < 0 || i >= len(all) {
		return reactangosdk.User{}, false
	}
	return all[i], true
}

func listColumns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Name", Width: 24},
		{Title: "Email", Width: 30},
		{Title: "Favorite food", Width: 18},
		{Title: "Created", Width: 12},
	}
}

func (m *Model) refreshTable() {
	all := m.list.Users()
	rows := make([]table.Row, 0, len(all))
	now := m.now()
	for _, u := range all {
		rows = append(rows, table.Row{
			strconv.FormatInt(u.ID, 10),
			truncate(u.Name, 24),
			truncate(u.Email, 30),
			truncate(orDash(u.FavoriteFood), 18),
			relativeTime(u.CreatedAt, now),
		})
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Reactango users"))
	b.WriteString("\n\n")
	switch {
	case m.create != nil:
		b.WriteString(m.styles.Dialog.Render(m.create.view(m.styles)))
		b.WriteString("\n")
		b.WriteString(m.styles.Help.Render(helpLine(m.keys.Submit, m.keys.NextField, m.keys.Back)))
	case m.view == ViewDetail:
		b.WriteString(m.renderDetail())
	default:
		b.WriteString(m.renderList())
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.StatusBar.Render(m.status))
	}
	return b.String()
}

func (m Model) renderList() string {
	st := m.list.State()
	var b strings.Builder
	switch {
	case st.Err != nil:
		b.WriteString(m.styles.Error.Render("Failed to load users: " + st.Err.Error()))
		b.WriteString("\n")
	case st.Loading && len(st.Users) == 0:
		b.WriteString(m.styles.Muted.Render("Loading..."))
		b.WriteString("\n")
	case len(st.Users) == 0:
		b.WriteString(m.styles.Muted.Render("No users yet. Press n to add one."))
		b.WriteString("\n")
	default:
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Help.Render(helpLine(m.keys.New, m.keys.Open, m.keys.Delete, m.keys.Refresh, m.keys.Quit)))
	return b.String()
}

func (m Model) renderDetail() string {
	st := m.detail.State()
	var b strings.Builder
	switch {
	case st.Err != nil:
		b.WriteString(m.styles.Error.Render("Failed to load user: " + st.Err.Error()))
		b.WriteString("\n")
	case st.User == nil:
		b.WriteString(m.styles.Muted.Render("Loading..."))
		b.WriteString("\n")
	case m.editing:
		b.WriteString(m.styles.Dialog.Render(m.edit.view(m.styles)))
		b.WriteString("\n")
		b.WriteString(m.styles.Help.Render(helpLine(m.keys.Submit, m.keys.NextField, m.keys.Back)))
		return b.String()
	default:
		u := st.User
		rows := [][2]string{
			{"ID", strconv.FormatInt(u.ID, 10)},
			{"Name", u.Name},
			{"Email", u.Email},
			{"Favorite food", orDash(u.FavoriteFood)},
			{"Created", formatDate(u.CreatedAt)},
			{"Updated", formatDate(u.UpdatedAt) + " (" + relativeTime(u.UpdatedAt, m.now()) + ")"},
		}
		for _, r := range rows {
			b.WriteString(m.styles.Label.Render(r[0]))
			b.WriteString(r[1])
			b.WriteString("\n")
		}
		if st.Loading {
			b.WriteString(m.styles.Muted.Render("Refreshing..."))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(helpLine(m.keys.Edit, m.keys.Delete, m.keys.Refresh, m.keys.Back)))
	return b.String()
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.Close()
	} else {
		m.Close()
	}
	return err
}
