package config

import (
	"strings"

	"github.com/danmuck/framelink/internal/channel"
	"github.com/danmuck/framelink/internal/protocol/codec"
	"github.com/danmuck/framelink/internal/protocol/session"
	"github.com/danmuck/framelink/internal/transport"
	"github.com/danmuck/framelink/internal/transport/wamp"
)

// WampConfig is the relay endpoint this process opens. The window address
// is the endpoint id.
func (c EndpointConfig) WampConfig() wamp.Config {
	return wamp.Config{
		Realm:       c.Relay.Realm,
		Address:     c.ID,
		Origin:      c.Origin,
		TopicPrefix: c.Relay.TopicPrefix,
	}
}

func (c EndpointConfig) NodeConfig(sess session.Config) (channel.NodeConfig, error) {
	cd, err := codec.Lookup(c.Codec)
	if err != nil {
		return channel.NodeConfig{}, err
	}
	return channel.NodeConfig{
		ID:               c.ID,
		ControllerID:     c.ControllerID,
		ControllerOrigin: c.ControllerOrigin,
		Target:           transport.Addr(c.ControllerID),
		Codec:            cd,
		Session:          sess,
	}, nil
}

func (c EndpointConfig) ControllerConfig(sess session.Config) (channel.ControllerConfig, error) {
	cd, err := codec.Lookup(c.Codec)
	if err != nil {
		return channel.ControllerConfig{}, err
	}
	return channel.ControllerConfig{
		ID:      c.ID,
		Codec:   cd,
		Session: sess,
	}, nil
}

// Target resolves the window a controller link sends to.
func (n NodeEntry) Target() (transport.Addr, string) {
	origin := strings.TrimSpace(n.Origin)
	if origin == "" {
		origin = transport.AnyOrigin
	}
	return transport.Addr(n.Address), origin
}
