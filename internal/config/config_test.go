package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadNodeConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	contents := "listen_port: 9000\nlog_level: debug\npeers:\n  - address: 10.0.0.1:9735\n    static_pub_key: 0211111111111111111111111111111111111111111111111111111111111111\n"
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadNodeConfig(path)
	if err != nil {
		t.Fatalf("load node config: %v", err)
	}
	if cfg.ListenPort != 9000 {
		t.Fatalf("expected listen_port 9000, got %d", cfg.ListenPort)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log_level debug, got %q", cfg.LogLevel)
	}
	if len(cfg.Peers) != 1 || cfg.Peers[0].Address != "10.0.0.1:9735" {
		t.Fatalf("expected one peer ref, got %+v", cfg.Peers)
	}
	if cfg.IdentityPath != DefaultNodeConfig().IdentityPath {
		t.Fatalf("expected unset field to retain default")
	}
}

func TestLoadDirectoryConfigMissingFile(t *testing.T) {
	if _, err := LoadDirectoryConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error loading a missing config file")
	}
}
