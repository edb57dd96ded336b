package session

import (
	"context"
	"errors"
	"sync"

	"github.com/danmuck/framelink/internal/protocol"
)

var ErrPending = errors.New("session: future not settled")

// Future is the caller's handle on one request. It settles exactly once;
// later Resolve or Reject calls are no-ops.
type Future struct {
	once sync.Once
	done chan struct{}
	data protocol.Data
	err  error
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve settles the future with response data. It reports whether this
// call settled it.
func (f *Future) Resolve(data protocol.Data) bool {
	settled := false
	f.once.Do(func() {
		f.data = data
		settled = true
		close(f.done)
	})
	return settled
}

// Reject settles the future with err.
func (f *Future) Reject(err error) bool {
	settled := false
	f.once.Do(func() {
		f.err = err
		settled = true
		close(f.done)
	})
	return settled
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome without blocking. err is ErrPending until the
// future settles.
func (f *Future) Result() (protocol.Data, error) {
	if !f.Settled() {
		return nil, ErrPending
	}
	return f.data, f.err
}

// Wait blocks until the future settles or ctx ends.
func (f *Future) Wait(ctx context.Context) (protocol.Data, error) {
	select {
	case <-f.done:
		return f.data, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
