package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/protocol/codec"
	"github.com/danmuck/framelink/internal/transport/wamp"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	RoleController = "controller"
	RoleNode       = "node"
)

// EndpointConfig describes one process on the relay: a controller with its
// node links and admin surface, or a single node.
type EndpointConfig struct {
	ID     string      `toml:"id" yaml:"id"`
	Role   string      `toml:"role" yaml:"role"`
	Origin string      `toml:"origin" yaml:"origin"`
	Codec  string      `toml:"codec" yaml:"codec"`
	Relay  RelayConfig `toml:"relay" yaml:"relay"`

	// Node only.
	ControllerID     string `toml:"controller_id" yaml:"controller_id"`
	ControllerOrigin string `toml:"controller_origin" yaml:"controller_origin"`

	// Controller only.
	Admin AdminConfig `toml:"admin" yaml:"admin"`
	Nodes []NodeEntry `toml:"nodes" yaml:"nodes"`
}

type RelayConfig struct {
	URL         string `toml:"url" yaml:"url"`
	Realm       string `toml:"realm" yaml:"realm"`
	TopicPrefix string `toml:"topic_prefix" yaml:"topic_prefix"`
}

type AdminConfig struct {
	Addr        string   `toml:"addr" yaml:"addr"`
	CorsOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	// Token, when set, is required as a bearer token on /links routes.
	Token string `toml:"token" yaml:"token"`
}

// NodeEntry is one node a controller links to. Address is the node's
// window address on the relay; Origin pins the target origin ("*" when
// empty).
type NodeEntry struct {
	ID      string `toml:"id" yaml:"id"`
	Address string `toml:"address" yaml:"address"`
	Origin  string `toml:"origin" yaml:"origin"`
}

func LoadEndpointConfig(path string) (EndpointConfig, error) {
	var cfg EndpointConfig
	if err := loadFile(path, &cfg); err != nil {
		return EndpointConfig{}, err
	}
	cfg = cfg.withDefaults()
	if err := ValidateEndpointConfig(cfg); err != nil {
		return EndpointConfig{}, err
	}
	return cfg, nil
}

func (c EndpointConfig) withDefaults() EndpointConfig {
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	if strings.TrimSpace(c.Relay.URL) == "" {
		c.Relay.URL = "ws://localhost:8000/"
	}
	if strings.TrimSpace(c.Relay.Realm) == "" {
		c.Relay.Realm = wamp.DefaultRealm
	}
	if strings.TrimSpace(c.Relay.TopicPrefix) == "" {
		c.Relay.TopicPrefix = wamp.DefaultTopicPrefix
	}
	if c.Role == RoleController && strings.TrimSpace(c.Admin.Addr) == "" {
		c.Admin.Addr = ":9300"
	}
	return c
}

// loadFile decodes TOML, or YAML when the extension says so.
func loadFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, out)
	default:
		err = toml.Unmarshal(data, out)
	}
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateEndpointConfig(cfg EndpointConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("endpoint config missing id")
	}
	if err := protocol.ValidateEndpointID(cfg.ID); err != nil {
		return fmt.Errorf("endpoint config id: %w", err)
	}
	if strings.TrimSpace(cfg.Relay.URL) == "" {
		return fmt.Errorf("endpoint config missing relay url")
	}
	if _, err := codec.Lookup(cfg.Codec); err != nil {
		return fmt.Errorf("endpoint config: %w", err)
	}
	switch cfg.Role {
	case RoleController:
		seen := make(map[string]struct{}, len(cfg.Nodes))
		for i, node := range cfg.Nodes {
			if err := ValidateNodeEntry(node); err != nil {
				return fmt.Errorf("nodes[%d] invalid: %w", i, err)
			}
			if err := protocol.ValidateEndpointID(node.ID); err != nil {
				return fmt.Errorf("nodes[%d] invalid: %w", i, err)
			}
			if node.ID == cfg.ID {
				return fmt.Errorf("nodes[%d] invalid: id equals controller id", i)
			}
			if _, dup := seen[node.ID]; dup {
				return fmt.Errorf("nodes[%d] invalid: duplicate id %s", i, node.ID)
			}
			seen[node.ID] = struct{}{}
		}
	case RoleNode:
		if strings.TrimSpace(cfg.ControllerID) == "" {
			return fmt.Errorf("node config missing controller_id")
		}
		if err := protocol.ValidateEndpointID(cfg.ControllerID); err != nil {
			return fmt.Errorf("node config controller_id: %w", err)
		}
		if cfg.ControllerID == cfg.ID {
			return fmt.Errorf("node config controller_id equals id")
		}
		if len(cfg.Nodes) > 0 {
			return fmt.Errorf("node config cannot list nodes")
		}
	default:
		return fmt.Errorf("endpoint config role must be %q or %q, got %q", RoleController, RoleNode, cfg.Role)
	}
	return nil
}

func ValidateNodeEntry(entry NodeEntry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(entry.Address) == "" {
		return fmt.Errorf("address is required")
	}
	return nil
}
