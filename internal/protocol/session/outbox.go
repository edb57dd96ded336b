package session

import (
	"strings"
	"sync"
	"time"

	"github.com/danmuck/framelink/internal/protocol"
)

// Method is how a buffered intent is re-issued on flush.
type Method uint8

const (
	MethodPost Method = iota
	MethodFetch
)

func (m Method) String() string {
	if m == MethodFetch {
		return "fetch"
	}
	return "post"
}

// Intent is one application send held while the link is not connected.
// Fetch intents carry the future already returned to the caller.
type Intent struct {
	Type     string
	Data     protocol.Data
	Method   Method
	Future   *Future
	QueuedAt time.Time
}

// Outbox is a strict FIFO of buffered intents.
type Outbox struct {
	mu    sync.Mutex
	items []Intent
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Push(item Intent) {
	if strings.TrimSpace(item.Type) == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, item)
}

// Drain removes and returns every intent in arrival order.
func (o *Outbox) Drain() []Intent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.items
	o.items = nil
	return out
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// List returns a snapshot in arrival order.
func (o *Outbox) List() []Intent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Intent, len(o.items))
	copy(out, o.items)
	return out
}
