package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidConfig = errors.New("session: invalid config")

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// ReconnectPolicy decides what a controller link does when its peer goes
// away after a completed handshake.
type ReconnectPolicy string

const (
	// ReconnectNever moves the link to disconnected and leaves it there.
	ReconnectNever ReconnectPolicy = "never"
	// ReconnectAuto moves the link to reconnecting and retries SYN with
	// backoff until a new handshake completes.
	ReconnectAuto ReconnectPolicy = "auto"
)

// ParseReconnectPolicy accepts the config spelling of a policy. Empty
// selects ReconnectNever.
func ParseReconnectPolicy(raw string) (ReconnectPolicy, error) {
	switch ReconnectPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ReconnectNever:
		return ReconnectNever, nil
	case ReconnectAuto:
		return ReconnectAuto, nil
	default:
		return "", fmt.Errorf("%w: unknown reconnect policy %q", ErrInvalidConfig, raw)
	}
}

// Config defines link reliability timings.
type Config struct {
	// ResponseTimeout bounds how long a request waits for its response.
	ResponseTimeout time.Duration
	// HandshakeInterval is the SYN retry period while connecting.
	HandshakeInterval time.Duration
	// HeartbeatInterval is the controller heartbeat period. Zero disables.
	HeartbeatInterval time.Duration
	// MaxMissedHeartbeats consecutive misses end the connection.
	MaxMissedHeartbeats int
	Reconnect           ReconnectPolicy
	Backoff             BackoffConfig
}

// DefaultConfig returns the link defaults.
func DefaultConfig() Config {
	return Config{
		ResponseTimeout:     time.Second,
		HandshakeInterval:   500 * time.Millisecond,
		HeartbeatInterval:   0,
		MaxMissedHeartbeats: 3,
		Reconnect:           ReconnectNever,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig. A zero
// HeartbeatInterval stays zero.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = def.ResponseTimeout
	}
	if c.HandshakeInterval <= 0 {
		c.HandshakeInterval = def.HandshakeInterval
	}
	if c.HeartbeatInterval < 0 {
		c.HeartbeatInterval = 0
	}
	if c.MaxMissedHeartbeats <= 0 {
		c.MaxMissedHeartbeats = def.MaxMissedHeartbeats
	}
	if c.Reconnect == "" {
		c.Reconnect = def.Reconnect
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = def.Backoff.InitialDelay
	}
	if c.Backoff.Multiplier == 0 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = def.Backoff.MaxDelay
	}
	return c
}

// Validate rejects configurations a link cannot run with.
func (c Config) Validate() error {
	if c.ResponseTimeout <= 0 {
		return fmt.Errorf("%w: response timeout must be > 0", ErrInvalidConfig)
	}
	if c.HandshakeInterval <= 0 {
		return fmt.Errorf("%w: handshake interval must be > 0", ErrInvalidConfig)
	}
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("%w: heartbeat interval must be >= 0", ErrInvalidConfig)
	}
	if c.MaxMissedHeartbeats <= 0 {
		return fmt.Errorf("%w: max missed heartbeats must be > 0", ErrInvalidConfig)
	}
	if _, err := ParseReconnectPolicy(string(c.Reconnect)); err != nil {
		return err
	}
	if c.Backoff.Multiplier < 1.0 {
		return fmt.Errorf("%w: backoff multiplier must be >= 1", ErrInvalidConfig)
	}
	if c.Backoff.MaxDelay < c.Backoff.InitialDelay {
		return fmt.Errorf("%w: backoff max delay below initial delay", ErrInvalidConfig)
	}
	return nil
}
