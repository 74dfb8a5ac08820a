package users

import (
	"context"
	"log/slog"
	"sync"

	reactangosdk "reactango/sdk/go"
	"reactango/sdk/go/fetch"
)

// ListState is a combined snapshot of a List.
type ListState struct {
	Users     []reactangosdk.User
	Loading   bool
	Err       error
	Creating  bool
	CreateErr error
}

// List is the users collection plus its create and delete mutations.
type List struct {
	client  *reactangosdk.Client
	res     *fetch.Resource[[]reactangosdk.User]
	logger  *slog.Logger
	changed *signal

	mu sync.Mutex
	// creating counts CreateUser calls in flight.
	creating  int
	createErr error
}

// NewList subscribes to the users collection.
func NewList(ctx context.Context, client *reactangosdk.Client, opts ...Option) *List {
	o := buildOptions(opts)
	res := fetch.Subscribe(ctx, fetch.JSON[[]reactangosdk.User](client), reactangosdk.UsersPath, o.fetchOptions()...)
	return &List{
		client:  client,
		res:     res,
		logger:  o.logger,
		changed: newSignal(res.Updates()),
	}
}

// Users returns a copy of the loaded users, or an empty slice before the
// first load.
func (l *List) Users() []reactangosdk.User {
	return cloneUsers(l.res.State().Data)
}

// Loading reports whether a list fetch is in flight.
func (l *List) Loading() bool { return l.res.State().Loading }

// Err is the error of the last list fetch.
func (l *List) Err() error { return l.res.State().Err }

// Creating reports whether CreateUser is running.
func (l *List) Creating() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creating > 0
}

// CreateErr is the error of the last failed CreateUser, cleared on the next call.
func (l *List) CreateErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createErr
}

// State returns a combined snapshot.
func (l *List) State() ListState {
	st := l.res.State()
	l.mu.Lock()
	defer l.mu.Unlock()
	return ListState{
		Users:     cloneUsers(st.Data),
		Loading:   st.Loading,
		Err:       st.Err,
		Creating:  l.creating > 0,
		CreateErr: l.createErr,
	}
}

// Refetch reloads the list.
func (l *List) Refetch() *fetch.Pending[[]reactangosdk.User] { return l.res.Refetch() }

// Latest returns the handle of the most recent list fetch.
func (l *List) Latest() *fetch.Pending[[]reactangosdk.User] { return l.res.Latest() }

// Updates signals any state change, including the busy flag.
func (l *List) Updates() <-chan struct{} { return l.changed.ch }

// Done is closed by Close.
func (l *List) Done() <-chan struct{} { return l.changed.stop }

// Close detaches the list.
func (l *List) Close() {
	l.res.Close()
	l.changed.close()
}

// CreateUser posts a new user and, once the server accepted it, reloads the
// list before returning the created user.
func (l *List) CreateUser(ctx context.Context, in reactangosdk.CreateUserInput) (reactangosdk.User, error) {
	l.beginCreate()
	defer l.endCreate()

	u, err := l.client.CreateUser(ctx, in)
	if err != nil {
		l.logger.WarnContext(ctx, "create user failed", "email", in.Email, "error", err)
		l.mu.Lock()
		l.createErr = err
		l.mu.Unlock()
		return reactangosdk.User{}, err
	}
	l.logger.DebugContext(ctx, "user created", "user_id", u.ID)
	if _, err := l.res.Refetch().Wait(ctx); err != nil {
		return u, err
	}
	return u, nil
}

// DeleteUser removes a user and reloads the list.
func (l *List) DeleteUser(ctx context.Context, id int64) error {
	if err := l.client.DeleteUser(ctx, id); err != nil {
		l.logger.WarnContext(ctx, "delete user failed", "user_id", id, "error", err)
		return err
	}
	_, err := l.res.Refetch().Wait(ctx)
	return err
}

func (l *List) beginCreate() {
	l.mu.Lock()
	l.creating++
	l.createErr = nil
	l.mu.Unlock()
	l.changed.notify()
}

func (l *List) endCreate() {
	l.mu.Lock()
	l.creating--
	l.mu.Unlock()
	l.changed.notify()
}
