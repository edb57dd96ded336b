package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/framelink/internal/clock"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/protocol/codec"
	"github.com/danmuck/framelink/internal/protocol/session"
	"github.com/danmuck/framelink/internal/transport"
	"github.com/danmuck/framelink/internal/transport/memory"
)

const (
	controllerID     = "controller.studio"
	nodeID           = "node.preview"
	controllerOrigin = "https://studio.example"
	nodeOrigin       = "https://preview.example"
)

type harness struct {
	t       *testing.T
	bus     *memory.Bus
	clk     *clock.FakeClock
	ctrlWin *memory.Window
	nodeWin *memory.Window
	codec   codec.Codec
	session session.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bus := memory.NewBus()
	ctrlWin, err := bus.Open(controllerID, controllerOrigin)
	if err != nil {
		t.Fatalf("open controller window: %v", err)
	}
	nodeWin, err := bus.Open(nodeID, nodeOrigin)
	if err != nil {
		t.Fatalf("open node window: %v", err)
	}
	t.Cleanup(func() {
		_ = ctrlWin.Close()
		_ = nodeWin.Close()
	})
	cfg := session.DefaultConfig()
	cfg.Backoff.Jitter = false
	return &harness{
		t:       t,
		bus:     bus,
		clk:     clock.Fake(time.Unix(1700000000, 0)),
		ctrlWin: ctrlWin,
		nodeWin: nodeWin,
		codec:   codec.JSON,
		session: cfg,
	}
}

func (h *harness) settle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.bus.WaitIdle(ctx); err != nil {
		h.t.Fatalf("bus did not settle: %v", err)
	}
}

// advance moves the fake clock and waits for the resulting traffic.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	h.clk.Advance(d)
	h.settle()
}

func (h *harness) node() *Link {
	h.t.Helper()
	l, err := Connect(h.nodeWin, NodeConfig{
		ID:           nodeID,
		ControllerID: controllerID,
		Codec:        h.codec,
		Session:      h.session,
		Clock:        h.clk,
	})
	if err != nil {
		h.t.Fatalf("connect node: %v", err)
	}
	h.t.Cleanup(l.Destroy)
	return l
}

func (h *harness) controller() *Controller {
	h.t.Helper()
	c, err := NewController(h.ctrlWin, ControllerConfig{
		ID:      controllerID,
		Codec:   h.codec,
		Session: h.session,
		Clock:   h.clk,
	})
	if err != nil {
		h.t.Fatalf("new controller: %v", err)
	}
	h.t.Cleanup(c.Destroy)
	return c
}

func (h *harness) link(c *Controller) *Link {
	h.t.Helper()
	l, err := c.Link(nodeID, h.nodeWin.Addr(), transport.AnyOrigin)
	if err != nil {
		h.t.Fatalf("link node: %v", err)
	}
	return l
}

// connected builds both ends and completes the handshake.
func (h *harness) connected() (*Link, *Link) {
	h.t.Helper()
	node := h.node()
	ctrl := h.link(h.controller())
	h.settle()
	if node.Status() != StatusConnected || ctrl.Status() != StatusConnected {
		h.t.Fatalf("handshake incomplete node=%s controller=%s", node.Status(), ctrl.Status())
	}
	return node, ctrl
}

// inject sends a raw message from a window, bypassing any link.
func (h *harness) inject(from *memory.Window, to transport.Addr, msg protocol.Message) {
	h.t.Helper()
	if msg.ID == "" {
		msg.ID = protocol.NewMessageID()
	}
	payload, err := h.codec.Marshal(msg)
	if err != nil {
		h.t.Fatalf("marshal injected message: %v", err)
	}
	if err := from.Send(to, transport.AnyOrigin, payload); err != nil {
		h.t.Fatalf("inject: %v", err)
	}
	h.settle()
}

// dropWhere installs a send hook that silently drops matching messages.
func (h *harness) dropWhere(match func(from transport.Addr, msg protocol.Message) bool) {
	h.bus.SetSendHook(func(from, _ transport.Addr, payload []byte) (bool, error) {
		msg, err := protocol.Decode(h.codec, payload)
		if err != nil {
			return true, nil
		}
		return !match(from, msg), nil
	})
}

func (h *harness) clearHook() {
	h.bus.SetSendHook(nil)
}

type statusLog struct {
	mu   sync.Mutex
	seen []Status
}

func (s *statusLog) record(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, st)
}

func (s *statusLog) list() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, len(s.seen))
	copy(out, s.seen)
	return out
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, v)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func waitFuture(t *testing.T, f *session.Future) (protocol.Data, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := f.Wait(ctx)
	if err == context.DeadlineExceeded {
		t.Fatalf("future did not settle")
	}
	return data, err
}
