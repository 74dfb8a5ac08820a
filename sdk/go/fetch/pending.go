package fetch

import (
	"context"
	"sync"
)

// Result is the outcome of one fetch cycle. Applied is false when the cycle
// was superseded or the resource was detached before it finished.
type Result[T any] struct {
	Data    *T
	Err     error
	Applied bool
}

// Pending is the completion handle of one fetch cycle.
type Pending[T any] struct {
	once sync.Once
	done chan struct{}
	res  Result[T]
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{})}
}

func settled[T any](res Result[T]) *Pending[T] {
	p := newPending[T]()
	p.settle(res)
	return p
}

func (p *Pending[T]) settle(res Result[T]) {
	p.once.Do(func() {
		p.res = res
		close(p.done)
	})
}

// Done is closed once the cycle's result has been applied or dropped.
func (p *Pending[T]) Done() <-chan struct{} { return p.done }

// Wait blocks until the cycle settles or ctx ends.
func (p *Pending[T]) Wait(ctx context.Context) (Result[T], error) {
	select {
	case <-p.done:
		return p.res, nil
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	}
}

// Result returns the outcome without blocking; ok is false until settled.
func (p *Pending[T]) Result() (res Result[T], ok bool) {
	select {
	case <-p.done:
		return p.res, true
	default:
		return Result[T]{}, false
	}
}
