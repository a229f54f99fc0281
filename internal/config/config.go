package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when the corresponding field is absent from the file.
const (
	DefaultListenAddr       = "127.0.0.1:7350"
	DefaultPresenceDebounce = 2 * time.Second
	DefaultSearchDebounce   = 500 * time.Millisecond
)

// Config represents the global ~/.parley/config.toml.
type Config struct {
	DefaultSession     string `toml:"default_session"`
	ListenAddr         string `toml:"listen_addr"`
	IdentitySecret     string `toml:"identity_secret"`
	PresenceDebounceMS int    `toml:"presence_debounce_ms"`
	SearchDebounceMS   int    `toml:"search_debounce_ms"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Addr returns the gateway listen address, falling back to the default.
func (c *Config) Addr() string {
	if c == nil || c.ListenAddr == "" {
		return DefaultListenAddr
	}
	return c.ListenAddr
}

// PresenceDebounce returns the presence offline debounce window.
func (c *Config) PresenceDebounce() time.Duration {
	if c == nil || c.PresenceDebounceMS <= 0 {
		return DefaultPresenceDebounce
	}
	return time.Duration(c.PresenceDebounceMS) * time.Millisecond
}

// SearchDebounce returns the quiet period applied to user search input.
func (c *Config) SearchDebounce() time.Duration {
	if c == nil || c.SearchDebounceMS <= 0 {
		return DefaultSearchDebounce
	}
	return time.Duration(c.SearchDebounceMS) * time.Millisecond
}
