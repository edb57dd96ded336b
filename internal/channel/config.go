package channel

import (
	"fmt"
	"strings"

	"github.com/danmuck/framelink/internal/clock"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/protocol/codec"
	"github.com/danmuck/framelink/internal/protocol/session"
	"github.com/danmuck/framelink/internal/transport"
)

// NodeConfig configures the embedded side of a link.
type NodeConfig struct {
	ID           string
	ControllerID string
	// ControllerOrigin pins the peer origin before the first handshake.
	// Empty pins whatever origin the first accepted SYN carries.
	ControllerOrigin string
	// Target is the controller's address when known up front. The node
	// refreshes it from every accepted inbound message.
	Target  transport.Source
	Codec   codec.Codec
	Session session.Config
	Clock   clock.Clock
}

// ControllerConfig configures the host side shared by every node link.
type ControllerConfig struct {
	ID      string
	Codec   codec.Codec
	Session session.Config
	Clock   clock.Clock
}

type linkConfig struct {
	role         Role
	id           string
	peerID       string
	target       transport.Source
	targetOrigin string
	pinnedOrigin string
	codec        codec.Codec
	session      session.Config
	clock        clock.Clock
	onDestroy    func()
}

func (lc linkConfig) normalize() (linkConfig, error) {
	lc.id = strings.TrimSpace(lc.id)
	lc.peerID = strings.TrimSpace(lc.peerID)
	if lc.id == "" {
		return lc, fmt.Errorf("%w: missing endpoint id", ErrInvalidConfig)
	}
	if lc.peerID == "" {
		return lc, fmt.Errorf("%w: missing peer id", ErrInvalidConfig)
	}
	for _, id := range []string{lc.id, lc.peerID} {
		if err := protocol.ValidateEndpointID(id); err != nil {
			return lc, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if lc.id == lc.peerID {
		return lc, fmt.Errorf("%w: endpoint and peer ids are equal (%s)", ErrInvalidConfig, lc.id)
	}
	if strings.TrimSpace(lc.targetOrigin) == "" {
		lc.targetOrigin = transport.AnyOrigin
	}
	if lc.codec == nil {
		lc.codec = codec.JSON
	}
	if lc.clock == nil {
		lc.clock = clock.Real()
	}
	lc.session = lc.session.WithDefaults()
	if err := lc.session.Validate(); err != nil {
		return lc, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return lc, nil
}
