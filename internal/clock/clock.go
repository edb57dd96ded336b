// Package clock provides the timer source used by channel links.
//
// Links never call time.AfterFunc directly. Production code uses Real();
// tests use Fake() and advance time explicitly so response deadlines and
// handshake retries fire deterministically.
package clock

import "time"

// Clock is the subset of time operations the protocol needs.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer cancels
	// the pending call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a scheduled callback.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the timer from firing. Returns false if it already
// fired or was already stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop}
}
