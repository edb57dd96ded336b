package protocol

import "errors"

var (
	ErrInvalidMessage     = errors.New("protocol: invalid message")
	ErrMissingHandshakeID = errors.New("protocol: handshake missing id")
	ErrLegacyHandshake    = errors.New("protocol: legacy handshake")
	ErrReservedType       = errors.New("protocol: reserved message type")
	ErrEmptyType          = errors.New("protocol: empty message type")
	ErrReservedID         = errors.New("protocol: endpoint id is a reserved namespace")
)
