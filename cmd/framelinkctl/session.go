package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/framelink/internal/protocol/session"
)

type sessionFile struct {
	ResponseTimeout     string  `toml:"response_timeout"`
	HandshakeInterval   string  `toml:"handshake_interval"`
	HeartbeatInterval   string  `toml:"heartbeat_interval"`
	MaxMissedHeartbeats int     `toml:"max_missed_heartbeats"`
	Reconnect           string  `toml:"reconnect"`
	BackoffInitial      string  `toml:"backoff_initial"`
	BackoffMax          string  `toml:"backoff_max"`
	BackoffMultiplier   float64 `toml:"backoff_multiplier"`
	BackoffJitter       bool    `toml:"backoff_jitter"`
}

// loadSessionConfig overlays the keys present in path onto the defaults.
// An empty path returns the defaults.
func loadSessionConfig(path string) (session.Config, error) {
	cfg := session.DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw sessionFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return session.Config{}, fmt.Errorf("load session config: %w", err)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"response_timeout", raw.ResponseTimeout, &cfg.ResponseTimeout},
		{"handshake_interval", raw.HandshakeInterval, &cfg.HandshakeInterval},
		{"heartbeat_interval", raw.HeartbeatInterval, &cfg.HeartbeatInterval},
		{"backoff_initial", raw.BackoffInitial, &cfg.Backoff.InitialDelay},
		{"backoff_max", raw.BackoffMax, &cfg.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return session.Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("max_missed_heartbeats") {
		cfg.MaxMissedHeartbeats = raw.MaxMissedHeartbeats
	}
	if meta.IsDefined("reconnect") {
		policy, err := session.ParseReconnectPolicy(raw.Reconnect)
		if err != nil {
			return session.Config{}, err
		}
		cfg.Reconnect = policy
	}
	if meta.IsDefined("backoff_multiplier") {
		cfg.Backoff.Multiplier = raw.BackoffMultiplier
	}
	if meta.IsDefined("backoff_jitter") {
		cfg.Backoff.Jitter = raw.BackoffJitter
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return session.Config{}, fmt.Errorf("unknown session keys: %v", undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return session.Config{}, err
	}
	return cfg, nil
}
