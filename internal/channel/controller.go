package channel

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/transport"
	"github.com/rs/zerolog/log"
)

// Controller owns one independent link per node.
type Controller struct {
	tr  transport.Transport
	cfg ControllerConfig

	mu        sync.RWMutex
	links     map[string]*Link
	destroyed bool
}

func NewController(tr transport.Transport, cfg ControllerConfig) (*Controller, error) {
	if tr == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidConfig)
	}
	cfg.ID = strings.TrimSpace(cfg.ID)
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: missing controller id", ErrInvalidConfig)
	}
	if err := protocol.ValidateEndpointID(cfg.ID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Controller{
		tr:    tr,
		cfg:   cfg,
		links: make(map[string]*Link),
	}, nil
}

func (c *Controller) ID() string {
	return c.cfg.ID
}

// Link opens the controller side of a link to nodeID reachable at target
// and starts the handshake. targetOrigin restricts the SYN to a node
// origin; empty or transport.AnyOrigin sends to any origin until the node
// answers and its origin is pinned.
func (c *Controller) Link(nodeID string, target transport.Source, targetOrigin string) (*Link, error) {
	nodeID = strings.TrimSpace(nodeID)
	if target == nil {
		return nil, fmt.Errorf("%w: nil target for node %s", ErrInvalidConfig, nodeID)
	}
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil, ErrLinkClosed
	}
	if _, exists := c.links[nodeID]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNodeLinked, nodeID)
	}
	var l *Link
	l, err := newLink(c.tr, linkConfig{
		role:         RoleController,
		id:           c.cfg.ID,
		peerID:       nodeID,
		target:       target,
		targetOrigin: targetOrigin,
		codec:        c.cfg.Codec,
		session:      c.cfg.Session,
		clock:        c.cfg.Clock,
		onDestroy: func() {
			c.forget(nodeID, l)
		},
	})
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.links[nodeID] = l
	c.mu.Unlock()

	log.Info().Msgf("channel.Controller.Link controller=%s node=%s target=%s", c.cfg.ID, nodeID, target.Address())
	l.mu.Lock()
	l.startHandshakeLocked(StatusConnecting)
	l.unlockAndRun()
	return l, nil
}

// Get returns the link to nodeID.
func (c *Controller) Get(nodeID string) (*Link, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.links[strings.TrimSpace(nodeID)]
	return l, ok
}

// Links returns every live link ordered by node id.
func (c *Controller) Links() []*Link {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.links))
	for id := range c.links {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*Link, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.links[id])
	}
	return out
}

// Destroy destroys every link. The controller accepts no new links
// afterwards.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	links := make([]*Link, 0, len(c.links))
	for _, l := range c.links {
		links = append(links, l)
	}
	c.mu.Unlock()

	for _, l := range links {
		l.Destroy()
	}
	log.Info().Msgf("channel.Controller.Destroy controller=%s links=%d", c.cfg.ID, len(links))
}

func (c *Controller) forget(nodeID string, l *Link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.links[nodeID] == l {
		delete(c.links, nodeID)
	}
}
