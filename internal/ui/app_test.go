package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reactangosdk "reactango/sdk/go"
)

// fakeAPI is an in-memory users API.
type fakeAPI struct {
	mu       sync.Mutex
	users    []reactangosdk.User
	nextID   int64
	posts    atomic.Int32
	conflict bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/users/":
		out := make([]reactangosdk.User, 0, len(f.users))
		for i := len(f.users) - 1; i >= 0; i-- {
			out = append(out, f.users[i])
		}
		json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodPost && r.URL.Path == "/users/":
		f.posts.Add(1)
		if f.conflict {
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"error":{"code":"conflict","message":"email already exists"}}`)
			return
		}
		var in reactangosdk.CreateUserInput
		json.NewDecoder(r.Body).Decode(&in)
		f.nextID++
		u := reactangosdk.User{ID: f.nextID, Name: in.Name, Email: in.Email, FavoriteFood: in.FavoriteFood, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		f.users = append(f.users, u)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(u)
	case r.Method == http.MethodGet:
		for _, u := range f.users {
			if r.URL.Path == reactangosdk.UserPath(u.ID) {
				json.NewEncoder(w).Encode(u)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"not_found","message":"not found"}}`)
	case r.Method == http.MethodDelete:
		for i, u := range f.users {
			if r.URL.Path == reactangosdk.UserPath(u.ID) {
				f.users = append(f.users[:i], f.users[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"not_found","message":"not found"}}`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestModel(t *testing.T, api *fakeAPI) Model {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	m := New(Options{Context: context.Background(), Client: reactangosdk.New(srv.URL)})
	t.Cleanup(m.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := m.list.Latest().Wait(ctx)
	require.NoError(t, err)
	m, _ = send(t, m, listChangedMsg{})
	return m
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func fillCreateForm(t *testing.T, m Model, name, email string) Model {
	t.Helper()
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	require.NotNil(t, m.create)
	m = typeText(t, m, name)
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	return typeText(t, m, email)
}

func TestCreateDialogClosesAfterListReload(t *testing.T) {
	api := &fakeAPI{}
	m := newTestModel(t, api)
	assert.Empty(t, m.table.Rows())

	m = fillCreateForm(t, m, "Alice", "a@x.com")
	assert.Equal(t, map[string]string{"name": "Alice", "email": "a@x.com", "favorite_food": ""}, m.create.form.Values())
	assert.True(t, m.create.form.Touched()["name"])

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.NotNil(t, m.create)
	assert.True(t, m.create.submitting)

	msg := cmd()
	created, ok := msg.(createdMsg)
	require.True(t, ok)
	require.NoError(t, created.err)

	m, _ = send(t, m, msg)
	assert.Nil(t, m.create)
	assert.Equal(t, "Created Alice", m.status)
	rows := m.table.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0][1])
}

func TestCreateDialogValidatesLocally(t *testing.T) {
	api := &fakeAPI{}
	m := newTestModel(t, api)

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	require.NotNil(t, m.create)
	errs := m.create.form.Errors()
	assert.Equal(t, "Name is required", errs["name"])
	assert.Equal(t, "Email is required", errs["email"])
	assert.Zero(t, api.posts.Load())

	// Typing into a field clears its error.
	m = typeText(t, m, "A")
	assert.NotContains(t, m.create.form.Errors(), "name")
}

func TestCreateFailureStaysOpen(t *testing.T) {
	api := &fakeAPI{conflict: true}
	m := newTestModel(t, api)

	m = fillCreateForm(t, m, "Alice", "a@x.com")
	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = send(t, m, cmd())

	require.NotNil(t, m.create, "dialog stays open on failure")
	assert.False(t, m.create.submitting)
	assert.Equal(t, "email already exists", m.create.form.Errors()["email"])
	assert.Error(t, m.list.CreateErr())
	assert.Empty(t, m.table.Rows())

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.create)
}

func TestDetailSeedsEditForm(t *testing.T) {
	food := "ramen"
	api := &fakeAPI{nextID: 1, users: []reactangosdk.User{{ID: 1, Name: "Bob", Email: "b@x.com", FavoriteFood: &food}}}
	m := newTestModel(t, api)
	require.Len(t, m.table.Rows(), 1)

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewDetail, m.view)
	require.NotNil(t, m.detail)
	require.NotNil(t, cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := m.detail.Latest().Wait(ctx)
	require.NoError(t, err)

	m, _ = send(t, m, detailChangedMsg{d: m.detail})
	assert.True(t, m.seeded)
	assert.Equal(t, map[string]string{"name": "Bob", "email": "b@x.com", "favorite_food": "ramen"}, m.edit.form.Values())
	assert.Empty(t, m.edit.form.Touched())
	assert.Contains(t, m.View(), "b@x.com")

	// Unchanged fields are not sent.
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	require.True(t, m.editing)
	m = typeText(t, m, "by")
	in := m.edit.updateInput(*m.detail.User())
	require.NotNil(t, in.Name)
	assert.Equal(t, "Bobby", *in.Name)
	assert.Nil(t, in.Email)
	assert.Nil(t, in.FavoriteFood)

	d := m.detail
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.editing)
	assert.Equal(t, "Bob", m.edit.form.Value("name"))
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewList, m.view)
	assert.Nil(t, m.detail)
	select {
	case <-d.Done():
	default:
		t.Fatal("detail hook should be closed")
	}
}

func TestDetailDeleteClosesAndReloadsList(t *testing.T) {
	api := &fakeAPI{nextID: 2, users: []reactangosdk.User{
		{ID: 1, Name: "Bob", Email: "b@x.com"},
		{ID: 2, Name: "Cy", Email: "c@x.com"},
	}}
	m := newTestModel(t, api)
	require.Len(t, m.table.Rows(), 2)

	// Newest first, so the cursor starts on Cy.
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewDetail, m.view)
	d := m.detail
	require.Equal(t, int64(2), d.ID())

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	require.NotNil(t, cmd)
	assert.Equal(t, ViewDetail, m.view, "detail stays open until the server answers")

	msg := cmd()
	deleted, ok := msg.(deletedMsg)
	require.True(t, ok)
	require.NoError(t, deleted.err)

	m, _ = send(t, m, msg)
	assert.Equal(t, ViewList, m.view)
	assert.Nil(t, m.detail)
	assert.Equal(t, "Deleted user 2", m.status)
	rows := m.table.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Bob", rows[0][1])
	select {
	case <-d.Done():
	default:
		t.Fatal("detail hook should be closed")
	}
}
