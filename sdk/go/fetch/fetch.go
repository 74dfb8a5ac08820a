// Package fetch subscribes a consumer to one GET endpoint and keeps its
// loading/error/data state current.
//
// Every fetch cycle (the initial subscription, each Refetch and each endpoint
// change) gets a new generation. Only the result of the most recently started
// cycle is applied; results of superseded cycles and results arriving after
// Close are dropped. Each cycle hands out a Pending that settles exactly once.
package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	reactangosdk "reactango/sdk/go"
)

// ErrDetached is the result of a Refetch issued after Close.
var ErrDetached = errors.New("fetch: resource detached")

// Getter performs one GET for endpoint and decodes the payload.
type Getter[T any] func(ctx context.Context, endpoint string, req reactangosdk.RequestOptions) (T, error)

// JSON returns a Getter that decodes JSON responses from c.
func JSON[T any](c *reactangosdk.Client) Getter[T] {
	return func(ctx context.Context, endpoint string, req reactangosdk.RequestOptions) (T, error) {
		var out T
		err := c.Get(ctx, endpoint, req, &out)
		return out, err
	}
}

// State is a point-in-time view of a Resource.
type State[T any] struct {
	Data    *T
	Loading bool
	Err     error
}

// Option configures a Resource.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	request reactangosdk.RequestOptions
}

// WithLogger sets the logger used for cycle diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRequestOptions sets the initial request configuration.
func WithRequestOptions(req reactangosdk.RequestOptions) Option {
	return func(o *options) { o.request = req }
}

// Resource is a live subscription to one endpoint.
type Resource[T any] struct {
	ctx     context.Context
	get     Getter[T]
	logger  *slog.Logger
	request atomic.Pointer[reactangosdk.RequestOptions]
	updates chan struct{}

	mu       sync.Mutex
	endpoint string
	gen      uint64
	alive    bool
	state    State[T]
	latest   *Pending[T]
}

// Subscribe starts the first fetch cycle for endpoint. The returned resource
// is already in the loading state.
func Subscribe[T any](ctx context.Context, get Getter[T], endpoint string, opts ...Option) *Resource[T] {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))}
	for _, opt := range opts {
		opt(&o)
	}
	r := &Resource[T]{
		ctx:      ctx,
		get:      get,
		logger:   o.logger,
		updates:  make(chan struct{}, 1),
		endpoint: endpoint,
		alive:    true,
	}
	req := o.request
	r.request.Store(&req)

	r.mu.Lock()
	r.start()
	r.mu.Unlock()
	return r
}

// State returns the current snapshot.
func (r *Resource[T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Endpoint returns the endpoint currently subscribed to.
func (r *Resource[T]) Endpoint() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoint
}

// Refetch starts a new cycle for the current endpoint.
func (r *Resource[T]) Refetch() *Pending[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.alive {
		return settled(Result[T]{Err: ErrDetached})
	}
	return r.start()
}

// SetEndpoint switches to endpoint and starts a cycle for it. Setting the
// current endpoint again is a no-op returning the latest handle.
func (r *Resource[T]) SetEndpoint(endpoint string) *Pending[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.alive {
		return settled(Result[T]{Err: ErrDetached})
	}
	if endpoint == r.endpoint {
		return r.latest
	}
	r.endpoint = endpoint
	return r.start()
}

// SetOptions replaces the request configuration used by later cycles. It never
// starts a cycle itself.
func (r *Resource[T]) SetOptions(req reactangosdk.RequestOptions) {
	r.request.Store(&req)
}

// Latest returns the handle of the most recently started cycle.
func (r *Resource[T]) Latest() *Pending[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Updates signals state changes. Signals coalesce; read State after each one.
func (r *Resource[T]) Updates() <-chan struct{} {
	return r.updates
}

// Close detaches the consumer. In-flight requests are not aborted, but their
// results no longer touch the state.
func (r *Resource[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alive = false
}

// start must be called with r.mu held.
func (r *Resource[T]) start() *Pending[T] {
	r.gen++
	gen, endpoint := r.gen, r.endpoint
	r.state.Loading = true
	p := newPending[T]()
	r.latest = p
	r.notify()
	go r.run(gen, endpoint, p)
	return p
}

func (r *Resource[T]) run(gen uint64, endpoint string, p *Pending[T]) {
	req := *r.request.Load()
	data, err := r.get(r.ctx, endpoint, req)

	res := Result[T]{Err: err}
	if err == nil {
		res.Data = &data
	}

	r.mu.Lock()
	switch {
	case !r.alive:
		r.logger.Debug("dropping result for detached resource", "endpoint", endpoint, "generation", gen)
	case gen != r.gen:
		r.logger.Debug("dropping superseded result", "endpoint", endpoint, "generation", gen, "current", r.gen)
	default:
		r.state = State[T]{Data: res.Data, Err: res.Err}
		res.Applied = true
		r.notify()
	}
	r.mu.Unlock()

	p.settle(res)
}

func (r *Resource[T]) notify() {
	select {
	case r.updates <- struct{}{}:
	default:
	}
}
