package future

import (
	"context"
	"sync"
)

// Future is a value computed by another goroutine.
type Future struct {
	ready chan struct{}
	once  sync.Once
	val   interface{}
	err   error
}

// SetFunc resolves the future. Only the first call has an effect.
type SetFunc func(interface{}, error)

// New creates an unresolved future and the function resolving it.
func New() (*Future, SetFunc) {
	f := &Future{
		ready: make(chan struct{}),
	}
	return f, f.set
}

// NewReady creates a resolved future.
func NewReady(val interface{}, err error) *Future {
	f, set := New()
	set(val, err)
	return f
}

func (f *Future) set(val interface{}, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.ready)
	})
}

// Done returns a channel that is closed when the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.ready
}

// Get waits for the value or for the context to expire.
func (f *Future) Get(ctx context.Context) (interface{}, error) {
	select {
	case <-f.ready:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
