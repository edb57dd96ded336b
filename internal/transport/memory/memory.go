// Package memory is an in-process broadcast bus. Every window has its own
// delivery goroutine, so a send returns before the receiver sees it and
// deliveries to one window arrive in send order.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/danmuck/framelink/internal/transport"
	"github.com/rs/zerolog/log"
)

// SendHook inspects a send before delivery. Returning deliver=false drops
// the payload silently; a non-nil err is returned to the sender.
type SendHook func(from, to transport.Addr, payload []byte) (deliver bool, err error)

// Bus routes payloads between open windows by address.
type Bus struct {
	mu      sync.RWMutex
	windows map[transport.Addr]*Window
	hook    SendHook

	idleMu  sync.Mutex
	idle    *sync.Cond
	pending int
}

func NewBus() *Bus {
	b := &Bus{windows: make(map[transport.Addr]*Window)}
	b.idle = sync.NewCond(&b.idleMu)
	return b
}

// SetSendHook installs hook for every subsequent send. nil removes it.
func (b *Bus) SetSendHook(hook SendHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hook = hook
}

// Open attaches a window at address with the given origin.
func (b *Bus) Open(address, origin string) (*Window, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", transport.ErrInvalidTarget)
	}
	addr := transport.Addr(address)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.windows[addr]; exists {
		return nil, fmt.Errorf("%w: %s", transport.ErrAddressInUse, address)
	}
	w := &Window{
		bus:    b,
		addr:   addr,
		origin: origin,
		subs:   make(map[uint64]func(transport.Envelope)),
	}
	w.cond = sync.NewCond(&w.mu)
	b.windows[addr] = w
	go w.run()
	log.Debug().Msgf("memory.Bus.Open address=%s origin=%s", address, origin)
	return w, nil
}

// WaitIdle blocks until no delivery is queued or running, or ctx ends.
func (b *Bus) WaitIdle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		b.idleMu.Lock()
		b.idle.Broadcast()
		b.idleMu.Unlock()
	})
	defer stop()

	b.idleMu.Lock()
	defer b.idleMu.Unlock()
	for b.pending > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.idle.Wait()
	}
	return nil
}

func (b *Bus) addPending(n int) {
	b.idleMu.Lock()
	b.pending += n
	if b.pending <= 0 {
		b.pending = 0
		b.idle.Broadcast()
	}
	b.idleMu.Unlock()
}

func (b *Bus) lookup(addr transport.Addr) (*Window, SendHook) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.windows[addr], b.hook
}

func (b *Bus) detach(w *Window) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.windows[w.addr] == w {
		delete(b.windows, w.addr)
	}
}

// Window is one endpoint on the bus. It implements transport.Transport.
type Window struct {
	bus    *Bus
	addr   transport.Addr
	origin string

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []transport.Envelope
	subs    map[uint64]func(transport.Envelope)
	nextSub uint64
	closed  bool
}

var _ transport.Transport = (*Window)(nil)

// Addr is the window's own address, usable as a send target.
func (w *Window) Addr() transport.Addr {
	return w.addr
}

func (w *Window) Origin() string {
	return w.origin
}

func (w *Window) Send(target transport.Source, targetOrigin string, payload []byte) error {
	if target == nil {
		return transport.ErrInvalidTarget
	}
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}

	to := transport.Addr(target.Address())
	dst, hook := w.bus.lookup(to)
	if hook != nil {
		deliver, err := hook(w.addr, to, payload)
		if err != nil {
			return err
		}
		if !deliver {
			return nil
		}
	}
	if dst == nil {
		log.Debug().Msgf("memory.Window.Send dropped from=%s to=%s reason=no_window", w.addr, to)
		return nil
	}
	if !transport.OriginMatches(targetOrigin, dst.origin) {
		log.Debug().Msgf("memory.Window.Send dropped from=%s to=%s reason=origin target_origin=%s", w.addr, to, targetOrigin)
		return nil
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	dst.enqueue(transport.Envelope{Origin: w.origin, Source: w.addr, Payload: buf})
	return nil
}

func (w *Window) Subscribe(fn func(transport.Envelope)) (transport.Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("memory: nil subscriber")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, transport.ErrClosed
	}
	id := w.nextSub
	w.nextSub++
	w.subs[id] = fn
	var once sync.Once
	return transport.SubscriptionFunc(func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
		})
	}), nil
}

// Close detaches the window from the bus and discards queued deliveries.
// The address can be opened again afterwards. A delivery already running
// completes.
func (w *Window) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	dropped := len(w.queue)
	w.queue = nil
	w.subs = make(map[uint64]func(transport.Envelope))
	w.cond.Broadcast()
	w.mu.Unlock()

	w.bus.detach(w)
	w.bus.addPending(-dropped)
	return nil
}

func (w *Window) enqueue(env transport.Envelope) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.bus.addPending(1)
	w.queue = append(w.queue, env)
	w.cond.Signal()
}

func (w *Window) run() {
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if w.closed {
			w.mu.Unlock()
			return
		}
		env := w.queue[0]
		w.queue[0] = transport.Envelope{}
		w.queue = w.queue[1:]
		subs := make([]func(transport.Envelope), 0, len(w.subs))
		for _, id := range slices.Sorted(maps.Keys(w.subs)) {
			subs = append(subs, w.subs[id])
		}
		w.mu.Unlock()

		for _, fn := range subs {
			fn(env)
		}
		w.bus.addPending(-1)
	}
}
