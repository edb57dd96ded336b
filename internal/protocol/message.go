package protocol

import (
	"fmt"
	"strings"

	"github.com/danmuck/framelink/internal/protocol/codec"
)

// legacyHandshakeType is the single-step handshake sent by peers that
// predate the three-way exchange.
const legacyHandshakeType = "handshake"

// legacyChannelKey is the payload key older peers used for their link id.
const legacyChannelKey = "channelId"

// Validate checks the fields every message must carry regardless of kind.
func (m Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Type) == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.From) == "" {
		return fmt.Errorf("%w: missing from", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: missing to", ErrInvalidMessage)
	}
	if m.Kind() == KindResponse && strings.TrimSpace(m.ResponseTo) == "" {
		return fmt.Errorf("%w: response missing responseTo", ErrInvalidMessage)
	}
	return nil
}

// IsLegacyHandshake reports whether m has the shape of an incompatible
// older handshake.
func IsLegacyHandshake(m Message) bool {
	if m.Type == legacyHandshakeType {
		return true
	}
	if !m.Kind().Handshake() {
		return false
	}
	_, ok := m.Data[legacyChannelKey]
	return ok
}

// Encode validates and marshals m.
func Encode(c codec.Codec, m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return c.Marshal(m)
}

// Decode unmarshals a transport payload into a Message. Payloads that are
// not messages at all fail with ErrInvalidMessage; legacy handshakes fail
// with ErrLegacyHandshake and still return the decoded message.
func Decode(c codec.Codec, payload []byte) (Message, error) {
	var m Message
	if err := c.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if IsLegacyHandshake(m) {
		return m, ErrLegacyHandshake
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
