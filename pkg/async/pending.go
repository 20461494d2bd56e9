package async

import (
	"context"
	"sync"
)

// Pending is a one-shot completion value.
type Pending[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// NewPending returns an unsettled Pending.
func NewPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{})}
}

// Go runs fn on its own goroutine and settles the returned Pending with its result.
func Go[T any](fn func() (T, error)) *Pending[T] {
	p := NewPending[T]()
	go func() {
		v, err := fn()
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p
}

// Resolved returns a Pending already settled with v.
func Resolved[T any](v T) *Pending[T] {
	p := NewPending[T]()
	p.Resolve(v)
	return p
}

// Rejected returns a Pending already settled with err.
func Rejected[T any](err error) *Pending[T] {
	p := NewPending[T]()
	p.Reject(err)
	return p
}

// Resolve settles p with v. It reports false if p was already settled.
func (p *Pending[T]) Resolve(v T) bool {
	settled := false
	p.once.Do(func() {
		p.value = v
		settled = true
		close(p.done)
	})
	return settled
}

// Reject settles p with err. It reports false if p was already settled.
func (p *Pending[T]) Reject(err error) bool {
	settled := false
	p.once.Do(func() {
		p.err = err
		settled = true
		close(p.done)
	})
	return settled
}

// Done is closed once p settles.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Await blocks until p settles or ctx is done. Giving up on ctx does not
// stop the underlying operation.
func (p *Pending[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while p is unsettled.
func (p *Pending[T]) Result() (value T, err error, ok bool) {
	select {
	case <-p.done:
		return p.value, p.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Then returns a Pending settled with fn applied to p's value, or with p's error.
func Then[T, U any](p *Pending[T], fn func(T) (U, error)) *Pending[U] {
	next := NewPending[U]()
	go func() {
		<-p.done
		if p.err != nil {
			next.Reject(p.err)
			return
		}
		u, err := fn(p.value)
		if err != nil {
			next.Reject(err)
			return
		}
		next.Resolve(u)
	}()
	return next
}
