package channel

import (
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/transport"
)

// inboundFilter is one stage of the acceptance pipeline. reason labels the
// drop in logs and metrics.
type inboundFilter struct {
	reason string
	accept func(l *Link, env transport.Envelope, msg protocol.Message) bool
}

var inboundFilters = []inboundFilter{
	{
		reason: "domain",
		accept: func(_ *Link, _ transport.Envelope, msg protocol.Message) bool {
			return msg.Domain == protocol.Domain
		},
	},
	{
		reason: "addressee",
		accept: func(l *Link, _ transport.Envelope, msg protocol.Message) bool {
			return msg.To == l.id
		},
	},
	{
		reason: "sender",
		accept: func(l *Link, _ transport.Envelope, msg protocol.Message) bool {
			return msg.From == l.peerID
		},
	},
	{
		reason: "origin",
		accept: func(l *Link, env transport.Envelope, _ protocol.Message) bool {
			return l.origin == "" || env.Origin == l.origin
		},
	},
	{
		// Handshake messages carry their own candidate id; everything else
		// must belong to the current connection.
		reason: "stale_connection",
		accept: func(l *Link, _ transport.Envelope, msg protocol.Message) bool {
			if msg.Kind().Handshake() {
				return true
			}
			return l.connectionID != "" && msg.ConnectionID == l.connectionID
		},
	},
}

// acceptLocked runs the pipeline and reports the first failing stage.
func (l *Link) acceptLocked(env transport.Envelope, msg protocol.Message) (string, bool) {
	for _, f := range inboundFilters {
		if !f.accept(l, env, msg) {
			return f.reason, false
		}
	}
	return "", true
}
