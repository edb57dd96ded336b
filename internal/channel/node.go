package channel

import (
	"github.com/danmuck/framelink/internal/transport"
)

// Connect creates the node side of a link. The node starts connecting and
// waits for the controller's SYN; sends made before the handshake
// completes are buffered.
func Connect(tr transport.Transport, cfg NodeConfig) (*Link, error) {
	return newLink(tr, linkConfig{
		role:         RoleNode,
		id:           cfg.ID,
		peerID:       cfg.ControllerID,
		target:       cfg.Target,
		targetOrigin: cfg.ControllerOrigin,
		pinnedOrigin: cfg.ControllerOrigin,
		codec:        cfg.Codec,
		session:      cfg.Session,
		clock:        cfg.Clock,
	})
}
