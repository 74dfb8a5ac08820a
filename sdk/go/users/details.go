package users

import (
	"context"
	"log/slog"
	"sync"

	reactangosdk "reactango/sdk/go"
	"reactango/sdk/go/fetch"
)

// DetailsState is a combined snapshot of Details.
type DetailsState struct {
	ID      int64
	User    *reactangosdk.User
	Loading bool
	Err     error
	Saving  bool
	SaveErr error
}

// Details is one user plus its update and delete mutations.
type Details struct {
	client  *reactangosdk.Client
	res     *fetch.Resource[reactangosdk.User]
	logger  *slog.Logger
	changed *signal

	mu      sync.Mutex
	id      int64
	// saving counts UpdateUser calls in flight.
	saving  int
	saveErr error
}

// NewDetails subscribes to the user with id.
func NewDetails(ctx context.Context, client *reactangosdk.Client, id int64, opts ...Option) *Details {
	o := buildOptions(opts)
	res := fetch.Subscribe(ctx, fetch.JSON[reactangosdk.User](client), reactangosdk.UserPath(id), o.fetchOptions()...)
	return &Details{
		client:  client,
		res:     res,
		logger:  o.logger,
		changed: newSignal(res.Updates()),
		id:      id,
	}
}

// ID returns the user id currently shown.
func (d *Details) ID() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.id
}

// User returns a copy of the loaded user, or nil while loading or after a
// failure.
func (d *Details) User() *reactangosdk.User { return cloneUser(d.res.State().Data) }

// Loading reports whether a fetch is in flight.
func (d *Details) Loading() bool { return d.res.State().Loading }

// Err is the error of the last fetch.
func (d *Details) Err() error { return d.res.State().Err }

// Saving reports whether UpdateUser is running.
func (d *Details) Saving() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saving > 0
}

// SaveErr is the error of the last failed UpdateUser.
func (d *Details) SaveErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveErr
}

// State returns a combined snapshot.
func (d *Details) State() DetailsState {
	st := d.res.State()
	d.mu.Lock()
	defer d.mu.Unlock()
	return DetailsState{
		ID:      d.id,
		User:    cloneUser(st.Data),
		Loading: st.Loading,
		Err:     st.Err,
		Saving:  d.saving > 0,
		SaveErr: d.saveErr,
	}
}

// SetUserID switches to another user. Results still in flight for the
// previous id are discarded.
func (d *Details) SetUserID(id int64) *fetch.Pending[reactangosdk.User] {
	d.mu.Lock()
	d.id = id
	d.mu.Unlock()
	return d.res.SetEndpoint(reactangosdk.UserPath(id))
}

// Refetch reloads the user.
func (d *Details) Refetch() *fetch.Pending[reactangosdk.User] { return d.res.Refetch() }

// Latest returns the handle of the most recent fetch.
func (d *Details) Latest() *fetch.Pending[reactangosdk.User] { return d.res.Latest() }

// Updates signals any state change.
func (d *Details) Updates() <-chan struct{} { return d.changed.ch }

// Done is closed by Close.
func (d *Details) Done() <-chan struct{} { return d.changed.stop }

// Close detaches the resource.
func (d *Details) Close() {
	d.res.Close()
	d.changed.close()
}

// UpdateUser sends the changed fields and reloads the user so the view shows
// the server's stored state. It returns the user as the server answered the PUT.
func (d *Details) UpdateUser(ctx context.Context, in reactangosdk.UpdateUserInput) (reactangosdk.User, error) {
	id := d.ID()
	d.beginSave()
	defer d.endSave()

	u, err := d.client.UpdateUser(ctx, id, in)
	if err != nil {
		d.logger.WarnContext(ctx, "update user failed", "user_id", id, "error", err)
		d.mu.Lock()
		d.saveErr = err
		d.mu.Unlock()
		return reactangosdk.User{}, err
	}
	if _, err := d.res.Refetch().Wait(ctx); err != nil {
		return u, err
	}
	return u, nil
}

// DeleteUser removes the user shown.
func (d *Details) DeleteUser(ctx context.Context) error {
	id := d.ID()
	if err := d.client.DeleteUser(ctx, id); err != nil {
		d.logger.WarnContext(ctx, "delete user failed", "user_id", id, "error", err)
		return err
	}
	d.logger.DebugContext(ctx, "user deleted", "user_id", id)
	return nil
}

func (d *Details) beginSave() {
	d.mu.Lock()
	d.saving++
	d.saveErr = nil
	d.mu.Unlock()
	d.changed.notify()
}

func (d *Details) endSave() {
	d.mu.Lock()
	d.saving--
	d.mu.Unlock()
	d.changed.notify()
}
