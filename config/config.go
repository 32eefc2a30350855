// ABOUTME: Configuration loading for the cistore CLI and servers
// ABOUTME: Reads TOML from the XDG config dir, then .env files, then CISTORE_* environment overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// Config is the full cistore configuration.
type Config struct {
	Store      StoreConfig      `toml:"store"`
	Versioning VersioningConfig `toml:"versioning"`
	Events     EventsConfig     `toml:"events"`
	Web        WebConfig        `toml:"web"`
	Log        LogConfig        `toml:"log"`
	Tracing    TracingConfig    `toml:"tracing"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	// Backend is "sqlite" or "badger".
	Backend string `toml:"backend"`
	// Path is the SQLite file or the Badger directory.
	Path string `toml:"path"`
}

// VersioningConfig holds the two version policy switches.
type VersioningConfig struct {
	// BumpOnNoop advances PATCH on updates that change nothing.
	BumpOnNoop bool `toml:"bump_on_noop"`
	// CountSchemaChanges counts added and removed fields as changes.
	CountSchemaChanges bool `toml:"count_schema_changes"`
}

// EventsConfig configures lifecycle event delivery.
type EventsConfig struct {
	// NATSURL enables NATS publishing when set.
	NATSURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`
	// QueueSize bounds the in-process event queue.
	QueueSize int `toml:"queue_size"`
}

type WebConfig struct {
	Addr string `toml:"addr"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

type TracingConfig struct {
	Enabled bool `toml:"enabled"`
}

const appName = "cistore"

// DefaultPath returns $XDG_CONFIG_HOME/cistore/config.toml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.toml")
}

// DefaultDataDir returns $XDG_DATA_HOME/cistore.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    filepath.Join(DefaultDataDir(), "cistore.db"),
		},
		Events: EventsConfig{
			SubjectPrefix: "cistore.objects",
			QueueSize:     1024,
		},
		Web: WebConfig{Addr: ":8080"},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the configuration at path (DefaultPath when empty). A missing
// file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// Save writes cfg as TOML, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path must not be empty")
	}
	if c.Events.QueueSize < 0 {
		return fmt.Errorf("events queue size must not be negative")
	}
	return nil
}

// applyEnvOverrides reads:
// - CISTORE_STORE_BACKEND, CISTORE_STORE_PATH
// - CISTORE_BUMP_ON_NOOP, CISTORE_COUNT_SCHEMA_CHANGES
// - CISTORE_NATS_URL, CISTORE_SUBJECT_PREFIX, CISTORE_QUEUE_SIZE
// - CISTORE_WEB_ADDR
// - CISTORE_LOG_LEVEL, CISTORE_LOG_DEVELOPMENT
// - CISTORE_TRACING.
func applyEnvOverrides(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("CISTORE_STORE_BACKEND", &cfg.Store.Backend)
	str("CISTORE_STORE_PATH", &cfg.Store.Path)
	str("CISTORE_NATS_URL", &cfg.Events.NATSURL)
	str("CISTORE_SUBJECT_PREFIX", &cfg.Events.SubjectPrefix)
	str("CISTORE_WEB_ADDR", &cfg.Web.Addr)
	str("CISTORE_LOG_LEVEL", &cfg.Log.Level)

	for key, dst := range map[string]*bool{
		"CISTORE_BUMP_ON_NOOP":         &cfg.Versioning.BumpOnNoop,
		"CISTORE_COUNT_SCHEMA_CHANGES": &cfg.Versioning.CountSchemaChanges,
		"CISTORE_LOG_DEVELOPMENT":      &cfg.Log.Development,
		"CISTORE_TRACING":              &cfg.Tracing.Enabled,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}

	if v := os.Getenv("CISTORE_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CISTORE_QUEUE_SIZE: %w", err)
		}
		cfg.Events.QueueSize = n
	}
	return nil
}
