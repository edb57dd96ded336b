// Package transport defines the broadcast capability a channel link runs
// over. A transport is untyped and at-most-once: it carries opaque payloads
// from one addressed endpoint to another and reports the sender's origin and
// source with every delivery. Implementations must deliver asynchronously
// and in order per sender/receiver pair.
package transport

import "errors"

// AnyOrigin addresses a send to the target regardless of its origin.
const AnyOrigin = "*"

var (
	ErrClosed        = errors.New("transport: closed")
	ErrAddressInUse  = errors.New("transport: address in use")
	ErrInvalidTarget = errors.New("transport: invalid target")
)

// Source identifies an endpoint that can be sent to. Implementations must
// be comparable.
type Source interface {
	Address() string
}

// Addr is the Source used by the bundled transports.
type Addr string

func (a Addr) Address() string {
	return string(a)
}

// Envelope is one delivery: the sender's origin, a handle to reply to the
// sender, and the payload.
type Envelope struct {
	Origin  string
	Source  Source
	Payload []byte
}

// Subscription is released exactly once by its owner.
type Subscription interface {
	Unsubscribe()
}

// Transport is the capability a link needs from its environment.
type Transport interface {
	// Send delivers payload to target when targetOrigin is AnyOrigin or
	// equals the target's origin. A mismatch is dropped silently.
	Send(target Source, targetOrigin string, payload []byte) error
	// Subscribe registers fn for every payload delivered to this endpoint.
	Subscribe(fn func(Envelope)) (Subscription, error)
}

// OriginMatches reports whether a send addressed to targetOrigin may be
// delivered to an endpoint at origin.
func OriginMatches(targetOrigin, origin string) bool {
	return targetOrigin == AnyOrigin || targetOrigin == origin
}

// SubscriptionFunc adapts a release function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}
