package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{DefaultSession: "work", ListenAddr: "127.0.0.1:9000"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q, want %q", loaded.Addr(), "127.0.0.1:9000")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	var cfg *Config
	if cfg.Addr() != DefaultListenAddr {
		t.Errorf("Addr() = %q, want default %q", cfg.Addr(), DefaultListenAddr)
	}
	if cfg.PresenceDebounce() != 2*time.Second {
		t.Errorf("PresenceDebounce() = %v, want 2s", cfg.PresenceDebounce())
	}
	if cfg.SearchDebounce() != 500*time.Millisecond {
		t.Errorf("SearchDebounce() = %v, want 500ms", cfg.SearchDebounce())
	}

	loaded := &Config{PresenceDebounceMS: 100}
	if loaded.PresenceDebounce() != 100*time.Millisecond {
		t.Errorf("PresenceDebounce() = %v, want 100ms", loaded.PresenceDebounce())
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
