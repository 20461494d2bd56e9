package async

import "sync"

// BacklogLimit is how many values, and separately how many errors, a
// stream holds while no handler is registered for them.
const BacklogLimit = 64

// MessageEvent is a cancellable stream of notifications delivered to one
// value handler and one error handler. Notifications that arrive before
// their handler is registered are held, up to BacklogLimit, and handed
// over in order on registration.
type MessageEvent[T any] struct {
	mu        sync.Mutex
	onValue   func(T)
	onError   func(error)
	values    []T
	errs      []error
	stop      func()
	cancelled bool
	discarded bool
	done      chan struct{}
}

// NewMessageEvent returns an open stream with no handlers.
func NewMessageEvent[T any]() *MessageEvent[T] {
	return &MessageEvent[T]{done: make(chan struct{})}
}

// Then registers the value handler, replacing any previous one. Held
// values are delivered to fn before Then returns.
func (e *MessageEvent[T]) Then(fn func(T)) *MessageEvent[T] {
	e.mu.Lock()
	for len(e.values) > 0 {
		backlog := e.values
		e.values = nil
		e.mu.Unlock()
		for _, v := range backlog {
			if e.isDiscarded() {
				break
			}
			fn(v)
		}
		e.mu.Lock()
	}
	e.onValue = fn
	e.mu.Unlock()
	return e
}

// Error registers the error handler, replacing any previous one. Held
// errors are delivered to fn before Error returns.
func (e *MessageEvent[T]) Error(fn func(error)) *MessageEvent[T] {
	e.mu.Lock()
	for len(e.errs) > 0 {
		backlog := e.errs
		e.errs = nil
		e.mu.Unlock()
		for _, err := range backlog {
			if e.isDiscarded() {
				break
			}
			fn(err)
		}
		e.mu.Lock()
	}
	e.onError = fn
	e.mu.Unlock()
	return e
}

func (e *MessageEvent[T]) isDiscarded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discarded
}

// Bind attaches the function that tears down the underlying subscription.
// If the stream was already cancelled, stop runs immediately.
func (e *MessageEvent[T]) Bind(stop func()) {
	e.mu.Lock()
	if e.cancelled {
		e.mu.Unlock()
		if stop != nil {
			stop()
		}
		return
	}
	e.stop = stop
	e.mu.Unlock()
}

// Cancel stops the underlying subscription and drops anything still held.
// Later notifications are discarded. Calling Cancel more than once is safe.
func (e *MessageEvent[T]) Cancel() {
	stop := e.close(true)
	if stop != nil {
		stop()
	}
}

// Close marks the stream finished without running the stop function; a
// transport calls it when it ends the subscription itself. Notifications
// already held are still handed to handlers registered afterwards.
func (e *MessageEvent[T]) Close() {
	e.close(false)
}

func (e *MessageEvent[T]) close(discard bool) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if discard {
		e.discarded = true
		e.values, e.errs = nil, nil
	}
	if e.cancelled {
		return nil
	}
	e.cancelled = true
	close(e.done)
	stop := e.stop
	e.stop = nil
	return stop
}

// Done is closed when the stream is cancelled or closed.
func (e *MessageEvent[T]) Done() <-chan struct{} {
	return e.done
}

// Cancelled reports whether the stream has ended.
func (e *MessageEvent[T]) Cancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// Emit delivers v to the value handler, or holds it until one is
// registered. It reports false when v was discarded.
func (e *MessageEvent[T]) Emit(v T) bool {
	e.mu.Lock()
	if e.cancelled {
		e.mu.Unlock()
		return false
	}
	fn := e.onValue
	if fn == nil {
		held := len(e.values) < BacklogLimit
		if held {
			e.values = append(e.values, v)
		}
		e.mu.Unlock()
		return held
	}
	e.mu.Unlock()
	fn(v)
	return true
}

// Fail delivers err to the error handler, or holds it until one is
// registered. It reports false when err was discarded.
func (e *MessageEvent[T]) Fail(err error) bool {
	e.mu.Lock()
	if e.cancelled {
		e.mu.Unlock()
		return false
	}
	fn := e.onError
	if fn == nil {
		held := len(e.errs) < BacklogLimit
		if held {
			e.errs = append(e.errs, err)
		}
		e.mu.Unlock()
		return held
	}
	e.mu.Unlock()
	fn(err)
	return true
}
