// Package config loads dayline settings from a YAML file, DAYLINE_*
// environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendHub    = "hub"
)

// Backends lists the supported store backends.
var Backends = []string{BackendMemory, BackendSQLite, BackendFile, BackendHub}

// Config is the full dayline configuration.
type Config struct {
	// User is the id of the signed-in user.
	User string `yaml:"user" mapstructure:"user"`

	// StateDir holds the database, documents, preferences and logs.
	StateDir string `yaml:"state_dir" mapstructure:"state_dir"`

	Store StoreConfig `yaml:"store" mapstructure:"store"`
	Sync  SyncConfig  `yaml:"sync" mapstructure:"sync"`
	Hub   HubConfig   `yaml:"hub" mapstructure:"hub"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects where documents live.
type StoreConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	// Path is the sqlite file or the document directory. Empty means a
	// default inside StateDir.
	Path string `yaml:"path" mapstructure:"path"`
	// URL is the hub address for the hub backend.
	URL string `yaml:"url" mapstructure:"url"`
}

// SyncConfig holds the engine timings.
type SyncConfig struct {
	Debounce    time.Duration `yaml:"debounce" mapstructure:"debounce"`
	GuardWindow time.Duration `yaml:"guard_window" mapstructure:"guard_window"`
	SavedStatus time.Duration `yaml:"saved_status" mapstructure:"saved_status"`
}

// HubConfig configures `dayline serve`.
type HubConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `yaml:"level" mapstructure:"level"`
	File    string `yaml:"file" mapstructure:"file"`
	Console bool   `yaml:"console" mapstructure:"console"`
}

// DefaultStateDir returns ~/.dayline, or .dayline when there is no home.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dayline"
	}
	return filepath.Join(home, ".dayline")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		User:     "local",
		StateDir: DefaultStateDir(),
		Store: StoreConfig{
			Backend: BackendSQLite,
			URL:     "http://localhost:8080",
		},
		Sync: SyncConfig{
			Debounce:    1500 * time.Millisecond,
			GuardWindow: 100 * time.Millisecond,
			SavedStatus: 2 * time.Second,
		},
		Hub: HubConfig{Port: 8080},
		Log: LogConfig{Level: "info", Console: true},
	}
}

// StorePath returns the configured store path or the backend default.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	switch c.Store.Backend {
	case BackendFile:
		return filepath.Join(c.StateDir, "documents")
	default:
		return filepath.Join(c.StateDir, "dayline.db")
	}
}

// Validate checks the configuration for values the commands cannot use.
func (c *Config) Validate() error {
	known := false
	for _, b := range Backends {
		if c.Store.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown store backend %q (valid: memory, sqlite, file, hub)", c.Store.Backend)
	}
	if c.Store.Backend == BackendHub && c.Store.URL == "" {
		return fmt.Errorf("store.url is required for the hub backend")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if c.Sync.Debounce <= 0 {
		return fmt.Errorf("sync.debounce must be positive (got %s)", c.Sync.Debounce)
	}
	if c.Sync.GuardWindow < 0 {
		return fmt.Errorf("sync.guard_window must not be negative (got %s)", c.Sync.GuardWindow)
	}
	if c.Sync.SavedStatus < 0 {
		return fmt.Errorf("sync.saved_status must not be negative (got %s)", c.Sync.SavedStatus)
	}
	if c.Hub.Port < 1 || c.Hub.Port > 65535 {
		return fmt.Errorf("hub.port must be between 1 and 65535 (got %d)", c.Hub.Port)
	}
	return nil
}
