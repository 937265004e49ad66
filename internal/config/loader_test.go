package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}

	def := Default()
	if cfg.Addr != def.Addr || cfg.ShutdownTimeout != def.ShutdownTimeout || cfg.HistoryLimit != def.HistoryLimit {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.DefaultRooms) != len(def.DefaultRooms) || cfg.DefaultRooms[0].Name != "general" {
		t.Fatalf("unexpected default rooms %+v", cfg.DefaultRooms)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("addr: \":9000\"\nshutdown_timeout: 2s\nblob_backend: nats\ndefault_rooms:\n  - name: lobby\n    topic: Lobby\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ROOMCHAT_ADDR", ":9100")

	cfg, _, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("expected env to win, got %q", cfg.Addr)
	}
	if cfg.ShutdownTimeout != 2*time.Second {
		t.Fatalf("expected file value, got %v", cfg.ShutdownTimeout)
	}
	if cfg.BlobBackend != BlobBackendNATS {
		t.Fatalf("unexpected blob backend %q", cfg.BlobBackend)
	}
	if len(cfg.DefaultRooms) != 1 || cfg.DefaultRooms[0].Name != "lobby" {
		t.Fatalf("unexpected rooms %+v", cfg.DefaultRooms)
	}
	if cfg.JWTIssuer != Default().JWTIssuer {
		t.Fatalf("expected default issuer, got %q", cfg.JWTIssuer)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}

	cfg.BlobBackend = "s3"
	cfg.JWTSecret = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
