package channel

import (
	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/protocol/session"
	"github.com/danmuck/framelink/internal/transport"
	"github.com/rs/zerolog/log"
)

func (l *Link) handleHandshakeLocked(env transport.Envelope, msg protocol.Message) {
	id, err := protocol.HandshakeID(msg)
	if err != nil {
		observability.RecordDropped(l.id, "missing_handshake_id")
		log.Warn().Msgf("channel.Link.handshake protocol violation id=%s from=%s type=%s err=%v", l.id, msg.From, msg.Type, err)
		return
	}
	switch l.role {
	case RoleController:
		l.controllerHandshakeLocked(env, msg.Kind(), id)
	default:
		l.nodeHandshakeLocked(env, msg.Kind(), id)
	}
}

// nodeHandshakeLocked is the responder side: SYN adopts the offered id and
// answers SYN-ACK, a matching ACK completes the connection.
func (l *Link) nodeHandshakeLocked(env transport.Envelope, kind protocol.Kind, id string) {
	switch kind {
	case protocol.KindHandshakeSyn:
		if l.origin == "" {
			l.origin = env.Origin
			log.Debug().Msgf("channel.Link.handshake pinned origin id=%s origin=%s", l.id, l.origin)
		}
		if l.status == StatusConnected && id == l.connectionID {
			// The controller missed our SYN-ACK and retried.
			l.sendHandshakeLocked(protocol.MsgHandshakeSynAck, id)
			return
		}
		l.connectionID = id
		l.setStatusLocked(StatusConnecting)
		l.sendHandshakeLocked(protocol.MsgHandshakeSynAck, id)
	case protocol.KindHandshakeAck:
		if id != l.connectionID || l.status == StatusConnected {
			log.Debug().Msgf("channel.Link.handshake ignored ack id=%s ack=%s connection=%s status=%s", l.id, id, l.connectionID, l.status)
			return
		}
		l.setStatusLocked(StatusConnected)
		l.flushLocked()
	default:
		log.Debug().Msgf("channel.Link.handshake ignored %s on node id=%s", kind, l.id)
	}
}

// controllerHandshakeLocked is the initiator side: a SYN-ACK carrying the
// current candidate completes the connection.
func (l *Link) controllerHandshakeLocked(env transport.Envelope, kind protocol.Kind, id string) {
	if kind != protocol.KindHandshakeSynAck {
		log.Debug().Msgf("channel.Link.handshake ignored %s on controller id=%s", kind, l.id)
		return
	}
	if l.status == StatusConnected && id == l.connectionID {
		l.sendHandshakeLocked(protocol.MsgHandshakeAck, id)
		return
	}
	if !l.status.buffering() || id != l.candidate {
		observability.RecordDropped(l.id, "stale_handshake")
		log.Debug().Msgf("channel.Link.handshake stale syn-ack id=%s got=%s candidate=%s status=%s", l.id, id, l.candidate, l.status)
		return
	}
	if l.origin == "" {
		l.origin = env.Origin
		log.Debug().Msgf("channel.Link.handshake pinned origin id=%s origin=%s", l.id, l.origin)
	}
	l.synTimer.Stop()
	l.synTimer = nil
	l.connectionID = id
	l.candidate = ""
	l.synAttempt = 0
	l.missedBeats = 0
	l.sendHandshakeLocked(protocol.MsgHandshakeAck, id)
	l.setStatusLocked(StatusConnected)
	l.flushLocked()
	l.scheduleHeartbeatLocked()
}

// startHandshakeLocked offers a fresh candidate id and keeps retrying SYN
// until a matching SYN-ACK arrives.
func (l *Link) startHandshakeLocked(next Status) {
	l.stopTimersLocked()
	l.candidate = protocol.NewConnectionID()
	l.synAttempt = 0
	l.setStatusLocked(next)
	l.sendSynLocked()
}

func (l *Link) sendSynLocked() {
	l.synAttempt++
	l.sendHandshakeLocked(protocol.MsgHandshakeSyn, l.candidate)

	delay := l.cfg.HandshakeInterval
	if l.status == StatusReconnecting {
		delay = session.NextBackoffDelay(l.cfg.Backoff, l.synAttempt, l.rng)
	}
	candidate := l.candidate
	l.synTimer = l.afterLocked(delay, func() {
		l.retrySyn(candidate)
	})
}

func (l *Link) retrySyn(candidate string) {
	l.mu.Lock()
	if !l.destroyed && l.status.buffering() && l.candidate == candidate {
		log.Debug().Msgf("channel.Link.handshake retry syn id=%s peer=%s attempt=%d", l.id, l.peerID, l.synAttempt+1)
		l.sendSynLocked()
	}
	l.unlockAndRun()
}

func (l *Link) sendHandshakeLocked(msgType, id string) {
	msg := l.newMessageLocked(id, msgType, protocol.HandshakeData(id), "")
	if err := l.transmitLocked(msg); err != nil {
		log.Debug().Msgf("channel.Link.handshake send failed id=%s type=%s err=%v", l.id, msgType, err)
	}
}

// Reconnect restarts the handshake on a controller link with a new
// candidate id. Sends made meanwhile are buffered.
func (l *Link) Reconnect() error {
	l.mu.Lock()
	defer l.unlockAndRun()
	if l.destroyed {
		return ErrLinkClosed
	}
	if l.role != RoleController {
		return ErrWrongRole
	}
	log.Info().Msgf("channel.Link.Reconnect id=%s peer=%s", l.id, l.peerID)
	l.startHandshakeLocked(StatusReconnecting)
	return nil
}
