package channel

// Status is the lifecycle state of a link.
type Status uint8

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusReconnecting
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// buffering reports whether application sends are held in the outbox.
func (s Status) buffering() bool {
	return s == StatusConnecting || s == StatusReconnecting
}

// MarshalText renders the status name in JSON and logs.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatusHandler observes status transitions.
type StatusHandler func(Status)

// Role is the handshake side a link plays.
type Role uint8

const (
	RoleNode Role = iota
	RoleController
)

func (r Role) String() string {
	if r == RoleController {
		return "controller"
	}
	return "node"
}
