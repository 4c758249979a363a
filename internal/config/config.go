package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeConfig is the configuration for noisexk-node.
type NodeConfig struct {
	IdentityPath string   `yaml:"identity_path"`
	Directory    string   `yaml:"directory"`
	Peers        []PeerRef `yaml:"peers"`
	ListenPort   int      `yaml:"listen_port"`
	ListenWS     string   `yaml:"listen_ws"`
	LogLevel     string   `yaml:"log_level"`
}

// PeerRef is a statically configured peer: an address and the static
// public key expected from it, the XK pre-knowledge an initiator needs.
type PeerRef struct {
	Address      string `yaml:"address"`
	StaticPubKey string `yaml:"static_pub_key"`
}

// DirectoryConfig is the configuration for noisexk-directory.
type DirectoryConfig struct {
	Listen    string      `yaml:"listen"`
	Database  string      `yaml:"database"`
	JWTSecret string      `yaml:"jwt_secret"`
	Admin     AdminConfig `yaml:"admin"`
	LogLevel  string      `yaml:"log_level"`
}

// AdminConfig is the default admin account for the directory service.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RelayConfig is the configuration for noisexk-relay.
type RelayConfig struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`
}

// DefaultNodeConfig returns a config with sensible defaults.
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		IdentityPath: "/etc/noisexk/identity.key",
		ListenPort:   9735,
		LogLevel:     "info",
	}
}

// DefaultDirectoryConfig returns a config with sensible defaults.
func DefaultDirectoryConfig() *DirectoryConfig {
	return &DirectoryConfig{
		Listen:    "0.0.0.0:9394",
		Database:  "sqlite:///var/lib/noisexk/directory.db",
		JWTSecret: "change-me-in-production",
		Admin: AdminConfig{
			Username: "admin",
			Password: "admin",
		},
		LogLevel: "info",
	}
}

// DefaultRelayConfig returns a config with sensible defaults.
func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{
		Listen:   "0.0.0.0:9736",
		LogLevel: "info",
	}
}

// LoadNodeConfig loads node config from a YAML file.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cfg := DefaultNodeConfig()
	if err := loadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("load node config: %w", err)
	}
	return cfg, nil
}

// LoadDirectoryConfig loads directory config from a YAML file.
func LoadDirectoryConfig(path string) (*DirectoryConfig, error) {
	cfg := DefaultDirectoryConfig()
	if err := loadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("load directory config: %w", err)
	}
	return cfg, nil
}

// LoadRelayConfig loads relay config from a YAML file.
func LoadRelayConfig(path string) (*RelayConfig, error) {
	cfg := DefaultRelayConfig()
	if err := loadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("load relay config: %w", err)
	}
	return cfg, nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
