package channel

import (
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/rs/zerolog/log"
)

// scheduleHeartbeatLocked arms the next controller heartbeat for the
// current connection. A zero interval disables heartbeats.
func (l *Link) scheduleHeartbeatLocked() {
	if l.role != RoleController || l.cfg.HeartbeatInterval <= 0 {
		return
	}
	connectionID := l.connectionID
	l.heartbeatTimer = l.afterLocked(l.cfg.HeartbeatInterval, func() {
		l.beat(connectionID)
	})
}

func (l *Link) beat(connectionID string) {
	l.mu.Lock()
	defer l.unlockAndRun()
	if l.destroyed || l.status != StatusConnected || l.connectionID != connectionID {
		return
	}
	if err := l.fetchLocked(protocol.MsgHeartbeat, nil, nil, true); err != nil {
		log.Debug().Msgf("channel.Link.heartbeat send failed id=%s err=%v", l.id, err)
		l.missHeartbeatLocked()
		if l.status != StatusConnected {
			return
		}
	}
	l.scheduleHeartbeatLocked()
}

func (l *Link) missHeartbeatLocked() {
	if l.status != StatusConnected {
		return
	}
	l.missedBeats++
	log.Debug().Msgf("channel.Link.heartbeat missed id=%s peer=%s missed=%d", l.id, l.peerID, l.missedBeats)
	if l.missedBeats < l.cfg.MaxMissedHeartbeats {
		return
	}
	log.Warn().Msgf("channel.Link.heartbeat peer lost id=%s peer=%s missed=%d", l.id, l.peerID, l.missedBeats)
	l.missedBeats = 0
	l.peerLostLocked()
}
