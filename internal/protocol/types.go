package protocol

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Domain tags every message of this protocol on a shared broadcast medium.
const Domain = "framelink/channels"

// Reserved protocol types. Application types are always namespaced by the
// sender id, and ValidateEndpointID keeps ids out of the reserved prefixes,
// so the two never collide.
const (
	MsgHandshakeSyn    = "handshake/syn"
	MsgHandshakeSynAck = "handshake/syn-ack"
	MsgHandshakeAck    = "handshake/ack"
	MsgDisconnect      = "channel/disconnect"
	MsgHeartbeat       = "channel/heartbeat"
	MsgResponse        = "channel/response"
)

// NamespaceSeparator joins a sender id and an application type.
const NamespaceSeparator = "/"

// Data is an opaque message payload.
type Data map[string]any

// Message is the unit of wire exchange.
type Message struct {
	ID           string `json:"id"`
	ConnectionID string `json:"connectionId"`
	Domain       string `json:"domain"`
	From         string `json:"from"`
	To           string `json:"to"`
	Type         string `json:"type"`
	Data         Data   `json:"data,omitempty"`
	ResponseTo   string `json:"responseTo,omitempty"`
}

// Kind classifies a message by its reserved type.
type Kind uint8

const (
	KindApplication Kind = iota
	KindHandshakeSyn
	KindHandshakeSynAck
	KindHandshakeAck
	KindDisconnect
	KindHeartbeat
	KindResponse
)

var internalKinds = map[string]Kind{
	MsgHandshakeSyn:    KindHandshakeSyn,
	MsgHandshakeSynAck: KindHandshakeSynAck,
	MsgHandshakeAck:    KindHandshakeAck,
	MsgDisconnect:      KindDisconnect,
	MsgHeartbeat:       KindHeartbeat,
	MsgResponse:        KindResponse,
}

// KindOf classifies a message type.
func KindOf(msgType string) Kind {
	if k, ok := internalKinds[msgType]; ok {
		return k
	}
	return KindApplication
}

func (m Message) Kind() Kind {
	return KindOf(m.Type)
}

func (k Kind) Internal() bool {
	return k != KindApplication
}

func (k Kind) Handshake() bool {
	return k == KindHandshakeSyn || k == KindHandshakeSynAck || k == KindHandshakeAck
}

func (k Kind) String() string {
	switch k {
	case KindHandshakeSyn:
		return "syn"
	case KindHandshakeSynAck:
		return "syn-ack"
	case KindHandshakeAck:
		return "ack"
	case KindDisconnect:
		return "disconnect"
	case KindHeartbeat:
		return "heartbeat"
	case KindResponse:
		return "response"
	default:
		return "application"
	}
}

// IsInternal reports whether msgType is a reserved protocol type.
func IsInternal(msgType string) bool {
	return KindOf(msgType).Internal()
}

// Namespace prefixes an application type with the sender id. Reserved types
// are returned unchanged.
func Namespace(sender, msgType string) string {
	if IsInternal(msgType) {
		return msgType
	}
	return sender + NamespaceSeparator + msgType
}

// StripNamespace removes the sender prefix from a namespaced type. ok is
// false when msgType was not namespaced by sender.
func StripNamespace(sender, msgType string) (string, bool) {
	prefix := sender + NamespaceSeparator
	if !strings.HasPrefix(msgType, prefix) {
		return "", false
	}
	return strings.TrimPrefix(msgType, prefix), true
}

// NewMessageID returns a process-unique message id.
func NewMessageID() string {
	return "msg-" + uuid.NewString()
}

// NewConnectionID returns a fresh handshake epoch id.
func NewConnectionID() string {
	return uuid.NewString()
}

// HandshakeID extracts the candidate connection id carried by a handshake
// message.
func HandshakeID(m Message) (string, error) {
	raw, ok := m.Data["id"]
	if !ok {
		return "", ErrMissingHandshakeID
	}
	id, ok := raw.(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", ErrMissingHandshakeID
	}
	return id, nil
}

// HandshakeData builds the payload of a handshake or disconnect message.
func HandshakeData(connectionID string) Data {
	return Data{"id": connectionID}
}

// reservedNamespaces are the leading segments of the reserved types.
var reservedNamespaces = func() map[string]struct{} {
	out := make(map[string]struct{}, len(internalKinds))
	for msgType := range internalKinds {
		prefix, _, _ := strings.Cut(msgType, NamespaceSeparator)
		out[prefix] = struct{}{}
	}
	return out
}()

// ValidateEndpointID rejects ids that would namespace an application type
// into a reserved one (an endpoint named "channel" posting "disconnect").
func ValidateEndpointID(id string) error {
	if _, reserved := reservedNamespaces[strings.TrimSpace(id)]; reserved {
		return fmt.Errorf("%w: %q", ErrReservedID, id)
	}
	return nil
}

// ValidateApplicationType rejects types an application may not send or
// register handlers for.
func ValidateApplicationType(msgType string) error {
	if strings.TrimSpace(msgType) == "" {
		return ErrEmptyType
	}
	if IsInternal(msgType) {
		return ErrReservedType
	}
	return nil
}
