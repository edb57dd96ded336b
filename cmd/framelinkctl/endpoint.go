package main

import (
	"fmt"

	"github.com/danmuck/framelink/internal/config"
	"github.com/danmuck/framelink/internal/protocol/session"
)

// loadEndpoint reads the endpoint file and session overlay, and checks the
// endpoint runs in the expected role.
func loadEndpoint(flags endpointFlags, role string) (config.EndpointConfig, session.Config, error) {
	cfg, err := config.LoadEndpointConfig(flags.configPath)
	if err != nil {
		return config.EndpointConfig{}, session.Config{}, err
	}
	if cfg.Role != role {
		return config.EndpointConfig{}, session.Config{}, fmt.Errorf("config %s has role %q, want %q", flags.configPath, cfg.Role, role)
	}
	sess, err := loadSessionConfig(flags.sessionPath)
	if err != nil {
		return config.EndpointConfig{}, session.Config{}, err
	}
	return cfg, sess, nil
}
