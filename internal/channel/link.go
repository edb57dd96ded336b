package channel

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/danmuck/framelink/internal/clock"
	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/protocol/codec"
	"github.com/danmuck/framelink/internal/protocol/session"
	"github.com/danmuck/framelink/internal/transport"
	"github.com/rs/zerolog/log"
)

// minTimerDelay keeps every scheduled callback asynchronous.
const minTimerDelay = time.Millisecond

// Link is one end of a controller/node channel.
type Link struct {
	role   Role
	id     string
	peerID string
	tr     transport.Transport
	codec  codec.Codec
	cfg    session.Config
	clock  clock.Clock

	mu sync.Mutex
	// effects run in order after mu is released.
	effects []func()

	status       Status
	connectionID string
	// candidate is the id a controller offers in SYN until a matching
	// SYN-ACK arrives.
	candidate    string
	origin       string
	targetOrigin string
	source       transport.Source

	outbox     *session.Outbox
	pending    map[string]*transaction
	handlers   map[string]handlerEntry
	statusSubs map[uint64]StatusHandler
	nextToken  uint64

	synTimer       *clock.Timer
	synAttempt     int
	heartbeatTimer *clock.Timer
	missedBeats    int
	rng            *rand.Rand

	destroyed bool
	sub       transport.Subscription
	onDestroy func()
}

func newLink(tr transport.Transport, lc linkConfig) (*Link, error) {
	if tr == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidConfig)
	}
	lc, err := lc.normalize()
	if err != nil {
		return nil, err
	}
	l := &Link{
		role:         lc.role,
		id:           lc.id,
		peerID:       lc.peerID,
		tr:           tr,
		codec:        lc.codec,
		cfg:          lc.session,
		clock:        lc.clock,
		status:       StatusConnecting,
		origin:       lc.pinnedOrigin,
		targetOrigin: lc.targetOrigin,
		source:       lc.target,
		outbox:       session.NewOutbox(),
		pending:      make(map[string]*transaction),
		handlers:     make(map[string]handlerEntry),
		statusSubs:   make(map[uint64]StatusHandler),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		onDestroy:    lc.onDestroy,
	}
	sub, err := tr.Subscribe(l.receive)
	if err != nil {
		return nil, fmt.Errorf("channel: subscribe: %w", err)
	}
	l.mu.Lock()
	l.sub = sub
	l.mu.Unlock()
	log.Debug().Msgf("channel.Link.new role=%s id=%s peer=%s codec=%s", l.role, l.id, l.peerID, l.codec.Name())
	return l, nil
}

func (l *Link) ID() string     { return l.id }
func (l *Link) PeerID() string { return l.peerID }
func (l *Link) Role() Role     { return l.role }

func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// ConnectionID is the id of the current handshake epoch, empty until the
// first handshake message is accepted.
func (l *Link) ConnectionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connectionID
}

// Info is a point-in-time view of a link.
type Info struct {
	ID           string `json:"id"`
	PeerID       string `json:"peer_id"`
	Role         string `json:"role"`
	Status       Status `json:"status"`
	ConnectionID string `json:"connection_id"`
	Origin       string `json:"origin"`
	Buffered     int    `json:"buffered"`
	Pending      int    `json:"pending"`
}

func (l *Link) Info() Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Info{
		ID:           l.id,
		PeerID:       l.peerID,
		Role:         l.role.String(),
		Status:       l.status,
		ConnectionID: l.connectionID,
		Origin:       l.origin,
		Buffered:     l.outbox.Len(),
		Pending:      len(l.pending),
	}
}

// Post sends a fire-and-forget application message. While the link is
// connecting it is buffered and sent on connect.
func (l *Link) Post(msgType string, data protocol.Data) error {
	if err := protocol.ValidateApplicationType(msgType); err != nil {
		return err
	}
	l.mu.Lock()
	err := l.postLocked(msgType, data)
	l.unlockAndRun()
	return err
}

func (l *Link) postLocked(msgType string, data protocol.Data) error {
	switch {
	case l.destroyed:
		return ErrLinkClosed
	case l.status == StatusConnected:
		msg := l.newMessageLocked(l.connectionID, protocol.Namespace(l.id, msgType), data, "")
		return l.transmitLocked(msg)
	case l.status.buffering():
		l.bufferLocked(session.Intent{Type: msgType, Data: data, Method: session.MethodPost})
		return nil
	default:
		return ErrNotConnected
	}
}

// Request sends an application message and returns a future for the
// peer's response. While the link is connecting the request is buffered;
// the returned future stays valid across the flush.
func (l *Link) Request(msgType string, data protocol.Data) (*session.Future, error) {
	if err := protocol.ValidateApplicationType(msgType); err != nil {
		return nil, err
	}
	future := session.NewFuture()
	l.mu.Lock()
	err := l.requestLocked(msgType, data, future)
	l.unlockAndRun()
	if err != nil {
		return nil, err
	}
	return future, nil
}

func (l *Link) requestLocked(msgType string, data protocol.Data, future *session.Future) error {
	switch {
	case l.destroyed:
		return ErrLinkClosed
	case l.status == StatusConnected:
		return l.fetchLocked(protocol.Namespace(l.id, msgType), data, future, false)
	case l.status.buffering():
		l.bufferLocked(session.Intent{Type: msgType, Data: data, Method: session.MethodFetch, Future: future})
		return nil
	default:
		return ErrNotConnected
	}
}

func (l *Link) bufferLocked(intent session.Intent) {
	intent.QueuedAt = l.clock.Now()
	l.outbox.Push(intent)
	observability.SetBuffered(l.id, l.outbox.Len())
	log.Debug().Msgf("channel.Link.buffer id=%s type=%s method=%s depth=%d", l.id, intent.Type, intent.Method, l.outbox.Len())
}

// flushLocked re-issues every buffered intent in arrival order.
func (l *Link) flushLocked() {
	items := l.outbox.Drain()
	observability.SetBuffered(l.id, 0)
	for _, item := range items {
		msgType := protocol.Namespace(l.id, item.Type)
		switch item.Method {
		case session.MethodFetch:
			if err := l.fetchLocked(msgType, item.Data, item.Future, false); err != nil {
				log.Warn().Msgf("channel.Link.flush request failed id=%s type=%s err=%v", l.id, item.Type, err)
				item.Future.Reject(err)
			}
		default:
			msg := l.newMessageLocked(l.connectionID, msgType, item.Data, "")
			if err := l.transmitLocked(msg); err != nil {
				log.Warn().Msgf("channel.Link.flush post failed id=%s type=%s err=%v", l.id, item.Type, err)
			}
		}
	}
	if len(items) > 0 {
		log.Debug().Msgf("channel.Link.flush id=%s flushed=%d", l.id, len(items))
	}
}

// On registers the handler for an application type. The returned function
// removes this registration only.
func (l *Link) On(msgType string, h Handler) (func(), error) {
	if err := protocol.ValidateApplicationType(msgType); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: nil handler for %s", ErrInvalidConfig, msgType)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.destroyed {
		return nil, ErrLinkClosed
	}
	if _, exists := l.handlers[msgType]; exists {
		return nil, fmt.Errorf("%w: %s", ErrHandlerExists, msgType)
	}
	token := l.nextToken
	l.nextToken++
	l.handlers[msgType] = handlerEntry{token: token, fn: h}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if entry, ok := l.handlers[msgType]; ok && entry.token == token {
			delete(l.handlers, msgType)
		}
	}, nil
}

// OnStatus registers a status observer. It is called on every transition,
// never for a repeated status.
func (l *Link) OnStatus(h StatusHandler) func() {
	if h == nil {
		return func() {}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.destroyed {
		return func() {}
	}
	token := l.nextToken
	l.nextToken++
	l.statusSubs[token] = h
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.statusSubs, token)
	}
}

// Destroy tears the link down: a connected peer is told with DISCONNECT,
// every pending and buffered request is rejected with ErrLinkClosed, and
// the transport subscription is released. Destroy is idempotent.
func (l *Link) Destroy() {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return
	}
	if l.status == StatusConnected {
		if err := l.sendInternalLocked(protocol.MsgDisconnect, nil, ""); err != nil {
			log.Debug().Msgf("channel.Link.Destroy disconnect notice failed id=%s err=%v", l.id, err)
		}
	}
	l.destroyed = true
	l.stopTimersLocked()
	l.setStatusLocked(StatusDisconnected)

	for id, tx := range l.pending {
		tx.fail(ErrLinkClosed)
		observability.RecordRequest(l.id, "closed", 0)
		delete(l.pending, id)
	}
	for _, item := range l.outbox.Drain() {
		if item.Future != nil {
			item.Future.Reject(ErrLinkClosed)
			observability.RecordRequest(l.id, "closed", 0)
		}
	}
	observability.SetBuffered(l.id, 0)
	clear(l.handlers)
	clear(l.statusSubs)

	sub := l.sub
	l.sub = nil
	onDestroy := l.onDestroy
	l.onDestroy = nil
	log.Info().Msgf("channel.Link.Destroy id=%s peer=%s", l.id, l.peerID)
	l.unlockAndRun()

	if sub != nil {
		sub.Unsubscribe()
	}
	if onDestroy != nil {
		onDestroy()
	}
}

func (l *Link) stopTimersLocked() {
	l.synTimer.Stop()
	l.synTimer = nil
	l.heartbeatTimer.Stop()
	l.heartbeatTimer = nil
}

func (l *Link) setStatusLocked(next Status) {
	if l.status == next {
		return
	}
	prev := l.status
	l.status = next
	observability.RecordStatus(l.id, next.String())
	log.Info().Msgf("channel.Link.status id=%s peer=%s %s -> %s connection=%s", l.id, l.peerID, prev, next, l.connectionID)

	tokens := make([]uint64, 0, len(l.statusSubs))
	for token := range l.statusSubs {
		tokens = append(tokens, token)
	}
	slices.Sort(tokens)
	handlers := make([]StatusHandler, 0, len(tokens))
	for _, token := range tokens {
		handlers = append(handlers, l.statusSubs[token])
	}
	if len(handlers) == 0 {
		return
	}
	l.effects = append(l.effects, func() {
		for _, h := range handlers {
			h(next)
		}
	})
}

func (l *Link) newMessageLocked(connectionID, msgType string, data protocol.Data, responseTo string) protocol.Message {
	return protocol.Message{
		ID:           protocol.NewMessageID(),
		ConnectionID: connectionID,
		Domain:       protocol.Domain,
		From:         l.id,
		To:           l.peerID,
		Type:         msgType,
		Data:         data,
		ResponseTo:   responseTo,
	}
}

// sendInternalLocked transmits a reserved message on the current
// connection.
func (l *Link) sendInternalLocked(msgType string, data protocol.Data, responseTo string) error {
	return l.transmitLocked(l.newMessageLocked(l.connectionID, msgType, data, responseTo))
}

func (l *Link) sendOriginLocked() string {
	if l.origin != "" {
		return l.origin
	}
	return l.targetOrigin
}

func (l *Link) transmitLocked(msg protocol.Message) error {
	if l.source == nil {
		return fmt.Errorf("%w: no peer source for %s", ErrNotConnected, l.peerID)
	}
	payload, err := protocol.Encode(l.codec, msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if err := l.tr.Send(l.source, l.sendOriginLocked(), payload); err != nil {
		log.Debug().Msgf("channel.Link.transmit failed id=%s type=%s err=%v", l.id, msg.Type, err)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	observability.RecordMessage(l.id, "out", msg.Kind().String())
	log.Trace().Msgf("channel.Link.transmit id=%s msg=%s type=%s", l.id, msg.ID, msg.Type)
	return nil
}

func (l *Link) afterLocked(d time.Duration, f func()) *clock.Timer {
	if d < minTimerDelay {
		d = minTimerDelay
	}
	return l.clock.AfterFunc(d, f)
}

func (l *Link) unlockAndRun() {
	effects := l.effects
	l.effects = nil
	l.mu.Unlock()
	for _, fn := range effects {
		fn()
	}
}

// receive is the transport subscription callback.
func (l *Link) receive(env transport.Envelope) {
	msg, err := protocol.Decode(l.codec, env.Payload)
	if errors.Is(err, protocol.ErrLegacyHandshake) {
		// Links sharing a window all see it; only the link bound to the
		// sender reports.
		if msg.From == l.peerID && (msg.To == l.id || msg.To == "") {
			log.Warn().Msgf("channel.Link.receive legacy handshake id=%s from=%s type=%s: peer speaks an incompatible protocol version", l.id, msg.From, msg.Type)
			observability.RecordDropped(l.id, "legacy_handshake")
		}
		return
	}
	if err != nil {
		observability.RecordDropped(l.id, "invalid")
		log.Trace().Msgf("channel.Link.receive dropped id=%s err=%v", l.id, err)
		return
	}

	l.mu.Lock()
	l.handleLocked(env, msg)
	l.unlockAndRun()
}

func (l *Link) handleLocked(env transport.Envelope, msg protocol.Message) {
	if l.destroyed {
		return
	}
	if reason, ok := l.acceptLocked(env, msg); !ok {
		observability.RecordDropped(l.id, reason)
		log.Trace().Msgf("channel.Link.receive dropped id=%s msg=%s type=%s reason=%s", l.id, msg.ID, msg.Type, reason)
		return
	}
	kind := msg.Kind()
	observability.RecordMessage(l.id, "in", kind.String())

	if kind == protocol.KindResponse {
		l.handleResponseLocked(env, msg)
		return
	}
	l.source = env.Source

	switch {
	case kind.Handshake():
		l.handleHandshakeLocked(env, msg)
	case kind == protocol.KindDisconnect:
		log.Info().Msgf("channel.Link.receive disconnect id=%s peer=%s connection=%s", l.id, l.peerID, l.connectionID)
		l.peerLostLocked()
	case kind == protocol.KindHeartbeat:
		l.respondLocked(msg.ID, nil)
	default:
		l.dispatchLocked(msg)
	}
}

// peerLostLocked reacts to the peer going away: controllers with
// ReconnectAuto restart the handshake, everything else disconnects.
func (l *Link) peerLostLocked() {
	if l.role == RoleController && l.cfg.Reconnect == session.ReconnectAuto {
		l.startHandshakeLocked(StatusReconnecting)
		return
	}
	l.stopTimersLocked()
	l.setStatusLocked(StatusDisconnected)
}

func sameSource(a, b transport.Source) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Address() == b.Address()
}
