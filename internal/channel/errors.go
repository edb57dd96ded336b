package channel

import (
	"errors"

	"github.com/danmuck/framelink/internal/protocol"
)

var (
	ErrHandlerExists = errors.New("channel: handler already registered")
	ErrNotConnected  = errors.New("channel: not connected")
	ErrSendFailed    = errors.New("channel: send failed")
	ErrNoResponse    = errors.New("channel: no response received")
	ErrLinkClosed    = errors.New("channel: link closed")
	ErrInvalidConfig = errors.New("channel: invalid config")
	ErrUnknownNode   = errors.New("channel: unknown node")
	ErrNodeLinked    = errors.New("channel: node already linked")
	ErrWrongRole     = errors.New("channel: not supported for this link role")

	ErrInvalidMessage     = protocol.ErrInvalidMessage
	ErrMissingHandshakeID = protocol.ErrMissingHandshakeID
	ErrReservedType       = protocol.ErrReservedType
	ErrReservedID         = protocol.ErrReservedID
)
