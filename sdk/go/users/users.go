// Package users binds the users endpoints to live resources and the mutations
// that keep them current.
package users

import (
	"io"
	"log/slog"
	"math"
	"sync"

	reactangosdk "reactango/sdk/go"
	"reactango/sdk/go/fetch"
)

// Option configures List and Details.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	request reactangosdk.RequestOptions
}

// WithLogger sets the logger for mutations and fetch cycles.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRequestOptions sets extra headers or query values for the GET requests.
func WithRequestOptions(req reactangosdk.RequestOptions) Option {
	return func(o *options) { o.request = req }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) fetchOptions() []fetch.Option {
	return []fetch.Option{fetch.WithLogger(o.logger), fetch.WithRequestOptions(o.request)}
}

// signal fans state changes from a resource and from the hook's own busy
// flags into one coalescing channel.
type signal struct {
	ch   chan struct{}
	stop chan struct{}
	once sync.Once
}

func newSignal(src <-chan struct{}) *signal {
	s := &signal{ch: make(chan struct{}, 1), stop: make(chan struct{})}
	go func() {
		for {
			select {
			case <-src:
				s.notify()
			case <-s.stop:
				return
			}
		}
	}()
	return s
}

func (s *signal) notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *signal) close() { s.once.Do(func() { close(s.stop) }) }

func cloneUser(u *reactangosdk.User) *reactangosdk.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.FavoriteFood != nil {
		food := *u.FavoriteFood
		c.FavoriteFood = &food
	}
	return &c
}

// cloneUsers copies the stored list so callers cannot write into resource
// state.
func cloneUsers(src *[]reactangosdk.User) []reactangosdk.User {
	if src == nil {
		return []reactangosdk.User{}
	}
	out := make([]reactangosdk.User, len(*src))
	for i := range *src {
		out[i] = *cloneUser(&(*src)[i])
	}
	return out
}
