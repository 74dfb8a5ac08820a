package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reactangosdk "reactango/sdk/go"
)

type reply struct {
	value string
	err   error
}

type call struct {
	endpoint string
	req      reactangosdk.RequestOptions
	reply    chan reply
}

func (c call) respond(v string) { c.reply <- reply{value: v} }
func (c call) fail(err error)   { c.reply <- reply{err: err} }

// fakeGetter hands every request to the test, which answers it explicitly.
type fakeGetter struct {
	calls chan call
}

func newFakeGetter() *fakeGetter {
	return &fakeGetter{calls: make(chan call, 16)}
}

func (f *fakeGetter) get(ctx context.Context, endpoint string, req reactangosdk.RequestOptions) (string, error) {
	c := call{endpoint: endpoint, req: req, reply: make(chan reply, 1)}
	f.calls <- c
	r := <-c.reply
	return r.value, r.err
}

func (f *fakeGetter) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a request")
		return call{}
	}
}

func (f *fakeGetter) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected request to %s", c.endpoint)
	case <-time.After(50 * time.Millisecond):
	}
}

func wait[T any](t *testing.T, p *Pending[T]) Result[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := p.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestSubscribeLoadsSynchronously(t *testing.T) {
	g := newFakeGetter()
	r := Subscribe(context.Background(), g.get, "/users/")
	defer r.Close()

	st := r.State()
	assert.True(t, st.Loading)
	assert.Nil(t, st.Data)
	assert.Nil(t, st.Err)

	c := g.next(t)
	assert.Equal(t, "/users/", c.endpoint)
	c.respond("alice")

	res := wait(t, r.Latest())
	assert.True(t, res.Applied)
	st = r.State()
	assert.False(t, st.Loading)
	require.NotNil(t, st.Data)
	assert.Equal(t, "alice", *st.Data)
}

func TestFailureReplacesData(t *testing.T) {
	g := newFakeGetter()
	r := Subscribe(context.Background(), g.get, "/users/")
	defer r.Close()
	g.next(t).respond("alice")
	wait(t, r.Latest())

	p := r.Refetch()
	st := r.State()
	assert.True(t, st.Loading)
	require.NotNil(t, st.Data, "stale data stays visible while loading")

	boom := errors.New("boom")
	g.next(t).fail(boom)
	res := wait(t, p)
	assert.ErrorIs(t, res.Err, boom)

	st = r.State()
	assert.False(t, st.Loading)
	assert.Nil(t, st.Data)
	assert.ErrorIs(t, st.Err, boom)

	p = r.Refetch()
	g.next(t).respond("bob")
	wait(t, p)
	st = r.State()
	assert.NoError(t, st.Err)
	assert.Equal(t, "bob", *st.Data)
}

func TestLastTriggeredCycleWins(t *testing.T) {
	g := newFakeGetter()
	r := Subscribe(context.Background(), g.get, "/users/")
	defer r.Close()

	p1 := r.Latest()
	c1 := g.next(t)
	p2 := r.Refetch()
	c2 := g.next(t)
	p3 := r.Refetch()
	c3 := g.next(t)

	// Resolve newest first so the older results arrive last.
	c3.respond("third")
	res3 := wait(t, p3)
	c2.respond("second")
	res2 := wait(t, p2)
	c1.fail(errors.New("first failed late"))
	res1 := wait(t, p1)

	assert.True(t, res3.Applied)
	assert.False(t, res2.Applied)
	assert.False(t, res1.Applied)
	require.NotNil(t, res2.Data)
	assert.Equal(t, "second", *res2.Data)

	st := r.State()
	assert.False(t, st.Loading)
	assert.NoError(t, st.Err)
	require.NotNil(t, st.Data)
	assert.Equal(t, "third", *st.Data)
}

func TestSupersededResultKeepsLoading(t *testing.T) {
	g := newFakeGetter()
	r := Subscribe(context.Background(), g.get, "/users/")
	defer r.Close()

	p1 := r.Latest()
	c1 := g.next(t)
	p2 := r.Refetch()
	c2 := g.next(t)

	c1.respond("old")
	res1 := wait(t, p1)
	assert.False(t, res1.Applied)
	st := r.State()
	assert.True(t, st.Loading)
	assert.Nil(t, st.Data)

	c2.respond("new")
	res2 := wait(t, p2)
	assert.True(t, res2.Applied)
	assert.Equal(t, "new", *r.State().Data)
}

func TestRefetchHandleMatchesState(t *testing.T) {
	g := newFakeGetter()
	r := Subscribe(context.Background(), g.get, "/users/")
	defer r.Close()
	g.next(t).respond("v0")
	wait(t, r.Latest())

	for _, v := range []string{"v1", "v2", "v3"} {
		p := r.Refetch()
		g.next(t).respond(v)
		res := wait(t, p)
		require.True(t, res.Applied)
		st := r.State()
		require.NotNil(t, st.Data)
		assert.Equal(t, *res.Data, *st.Data)
		assert.Equal(t, v, *st.Data)
	}
}

func TestCloseDropsLateResults(t *testing.T) {
	g := newFakeGetter()
	r := Subscribe(context.Background(), g.get, "/users/")
	p := r.Latest()
	c := g.next(t)

	r.Close()
	c.respond("late")

	res := wait(t, p)
	assert.False(t, res.Applied)
	require.NotNil(t, res.Data)
	assert.Equal(t, "late", *res.Data)

	st := r.State()
	assert.True(t, st.Loading, "detached state is frozen")
	assert.Nil(t, st.Data)

	after := r.Refetch()
	res = wait(t, after)
	assert.ErrorIs(t, res.Err, ErrDetached)
	assert.ErrorIs(t, wait(t, r.SetEndpoint("/users/9/")).Err, ErrDetached)
	g.assertIdle(t)
}

func TestSetEndpoint(t *testing.T) {
	g := newFakeGetter()
	r := Subscribe(context.Background(), g.get, "/users/1/")
	defer r.Close()
	g.next(t).respond("one")
	first := r.Latest()
	wait(t, first)

	assert.Same(t, first, r.SetEndpoint("/users/1/"))
	g.assertIdle(t)

	p := r.SetEndpoint("/users/2/")
	assert.True(t, r.State().Loading)
	c := g.next(t)
	assert.Equal(t, "/users/2/", c.endpoint)
	c.respond("two")
	wait(t, p)
	assert.Equal(t, "two", *r.State().Data)
	assert.Equal(t, "/users/2/", r.Endpoint())
}

func TestEndpointChangeFencesOlderCycle(t *testing.T) {
	g := newFakeGetter()
	r := Subscribe(context.Background(), g.get, "/users/1/")
	defer r.Close()
	p1 := r.Latest()
	c1 := g.next(t)
	p2 := r.SetEndpoint("/users/2/")
	c2 := g.next(t)

	c2.respond("two")
	wait(t, p2)
	c1.respond("one")
	assert.False(t, wait(t, p1).Applied)

	assert.Equal(t, "two", *r.State().Data)
}

func TestSetOptionsNeverRefetches(t *testing.T) {
	g := newFakeGetter()
	r := Subscribe(context.Background(), g.get, "/users/",
		WithRequestOptions(reactangosdk.RequestOptions{Header: http.Header{"X-Trace": {"a"}}}))
	defer r.Close()
	c := g.next(t)
	assert.Equal(t, "a", c.req.Header.Get("X-Trace"))
	c.respond("x")
	wait(t, r.Latest())

	for i := 0; i < 3; i++ {
		r.SetOptions(reactangosdk.RequestOptions{Header: http.Header{"X-Trace": {"b"}}})
	}
	g.assertIdle(t)

	p := r.Refetch()
	c = g.next(t)
	assert.Equal(t, "b", c.req.Header.Get("X-Trace"))
	c.respond("y")
	wait(t, p)
}

func TestUpdatesSignal(t *testing.T) {
	g := newFakeGetter()
	r := Subscribe(context.Background(), g.get, "/users/")
	defer r.Close()

	select {
	case <-r.Updates():
	default:
		t.Fatal("expected loading signal")
	}
	g.next(t).respond("x")
	select {
	case <-r.Updates():
	case <-time.After(2 * time.Second):
		t.Fatal("expected data signal")
	}
	assert.Equal(t, "x", *r.State().Data)
}

func TestJSONGetter(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		io.WriteString(w, `[{"id":1,"name":"Alice","email":"a@x.com","favorite_food":null,"created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}]`)
	}))
	defer srv.Close()

	r := Subscribe(context.Background(), JSON[[]reactangosdk.User](reactangosdk.New(srv.URL)), "/users/")
	defer r.Close()
	res := wait(t, r.Latest())
	require.NoError(t, res.Err)
	require.Len(t, *res.Data, 1)
	assert.Equal(t, "Alice", (*res.Data)[0].Name)
	assert.Equal(t, []string{"/users/"}, paths)
}
