package channel

import (
	"fmt"
	"time"

	"github.com/danmuck/framelink/internal/clock"
	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/protocol/session"
	"github.com/danmuck/framelink/internal/transport"
	"github.com/rs/zerolog/log"
)

// txState is the lifecycle of one request. A buffered request is idle
// until the flush; the terminal states are success and failed.
type txState uint8

const (
	txIdle txState = iota
	txSending
	txAwaiting
	txSucceeded
	txFailed
)

func (s txState) String() string {
	switch s {
	case txIdle:
		return "idle"
	case txSending:
		return "sending"
	case txAwaiting:
		return "awaiting"
	case txSucceeded:
		return "success"
	case txFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type transaction struct {
	id        string
	msgType   string
	state     txState
	future    *session.Future
	timer     *clock.Timer
	startedAt time.Time
	heartbeat bool
}

func (tx *transaction) succeed(data protocol.Data) {
	tx.timer.Stop()
	tx.state = txSucceeded
	if tx.future != nil {
		tx.future.Resolve(data)
	}
}

func (tx *transaction) fail(err error) {
	tx.timer.Stop()
	tx.state = txFailed
	if tx.future != nil {
		tx.future.Reject(err)
	}
}

// fetchLocked sends msgType as a request and arms its deadline. On a
// transport error the transaction is discarded and the error returned.
func (l *Link) fetchLocked(msgType string, data protocol.Data, future *session.Future, heartbeat bool) error {
	msg := l.newMessageLocked(l.connectionID, msgType, data, "")
	tx := &transaction{
		id:        msg.ID,
		msgType:   msgType,
		state:     txSending,
		future:    future,
		startedAt: l.clock.Now(),
		heartbeat: heartbeat,
	}
	l.pending[tx.id] = tx
	if err := l.transmitLocked(msg); err != nil {
		delete(l.pending, tx.id)
		tx.state = txFailed
		observability.RecordRequest(l.id, "send_failed", 0)
		return err
	}
	tx.state = txAwaiting
	tx.timer = l.afterLocked(l.cfg.ResponseTimeout, func() {
		l.expire(tx)
	})
	return nil
}

// expire fires when a request deadline passes. A response that won the
// race has already removed the transaction.
func (l *Link) expire(tx *transaction) {
	l.mu.Lock()
	defer l.unlockAndRun()
	if current, ok := l.pending[tx.id]; !ok || current != tx || tx.state != txAwaiting {
		return
	}
	delete(l.pending, tx.id)
	observability.RecordRequest(l.id, "timeout", 0)
	if tx.heartbeat {
		tx.fail(ErrNoResponse)
		l.missHeartbeatLocked()
		return
	}
	log.Warn().Msgf("channel.Link.expire no response id=%s type=%s msg=%s connection=%s", l.id, tx.msgType, tx.id, l.connectionID)
	tx.fail(fmt.Errorf("%w: %s (%s)", ErrNoResponse, tx.msgType, tx.id))
}

// handleResponseLocked settles the request a RESPONSE answers and acks the
// response. Responses must come from the current peer source.
func (l *Link) handleResponseLocked(env transport.Envelope, msg protocol.Message) {
	if !sameSource(env.Source, l.source) {
		observability.RecordDropped(l.id, "source")
		return
	}
	tx, ok := l.pending[msg.ResponseTo]
	if !ok || tx.state != txAwaiting {
		// Acks of our own responses land here too.
		log.Trace().Msgf("channel.Link.response unmatched id=%s response_to=%s", l.id, msg.ResponseTo)
		return
	}
	delete(l.pending, tx.id)
	observability.RecordRequest(l.id, "success", l.clock.Now().Sub(tx.startedAt))
	if tx.heartbeat {
		l.missedBeats = 0
	}
	tx.succeed(msg.Data)
	l.respondLocked(msg.ID, nil)
}

// respondLocked sends the RESPONSE for an inbound message id.
func (l *Link) respondLocked(inboundID string, data protocol.Data) {
	if err := l.sendInternalLocked(protocol.MsgResponse, data, inboundID); err != nil {
		log.Debug().Msgf("channel.Link.respond failed id=%s response_to=%s err=%v", l.id, inboundID, err)
	}
}
