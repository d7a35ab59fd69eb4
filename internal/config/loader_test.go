package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfigWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}

	def := Default()
	if cfg.Client.Room != def.Client.Room || cfg.Server.Addr != def.Server.Addr {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Server.AccessTokenTTL != time.Hour {
		t.Fatalf("expected access token ttl to round-trip, got %v", cfg.Server.AccessTokenTTL)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("client:\n  room: from_file\nserver:\n  addr: \":9000\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("EPHEMERAL_CLIENT_ROOM", "from_env")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Client.Room != "from_env" {
		t.Fatalf("expected env to win, got %q", cfg.Client.Room)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("expected file value for addr, got %q", cfg.Server.Addr)
	}
}

func TestUpdateFromKeepsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Client: ClientConfig{BackendURL: "http://example.test"}})

	if cfg.Client.BackendURL != "http://example.test" {
		t.Fatalf("expected backend url override, got %q", cfg.Client.BackendURL)
	}
	if cfg.Client.Room != "room_one" {
		t.Fatalf("room should stay default, got %q", cfg.Client.Room)
	}
}
