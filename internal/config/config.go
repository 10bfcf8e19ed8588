// Package config loads the YAML configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"choirsync/internal/domain"
)

// Config is the top-level configuration.
type Config struct {
	// Mirror is the path of the local mirror database file.
	Mirror string `yaml:"mirror"`

	// Roster is the path of the roster seed file, consulted when the
	// remote roster document is absent.
	Roster string `yaml:"roster,omitempty"`

	// IDPrefix is the prefix used for generated member IDs.
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// DrainInterval is how often the retry queue is drained in the
	// background. Zero selects the default.
	DrainInterval Duration `yaml:"drain_interval,omitempty"`

	Remote RemoteConfig `yaml:"remote"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RemoteConfig points at the remote document store.
type RemoteConfig struct {
	// URI is the MongoDB connection string. Empty means no remote; the
	// application runs purely against the local mirror.
	URI string `yaml:"uri,omitempty"`

	// Database is the database holding the app_data and
	// attendance_records collections.
	Database string `yaml:"database,omitempty"`
}

// Default returns the configuration used when no file is given: a mirror
// database next to the user's other application data and no remote.
func Default() *Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return &Config{
		Mirror:        filepath.Join(dir, "choirsync", "mirror.db"),
		IDPrefix:      domain.DefaultIDPrefix,
		DrainInterval: 0,
		LogLevel:      "info",
	}
}

// Load reads and validates a configuration file. Unset fields keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // reject typoed keys
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Mirror == "" {
		return fmt.Errorf("mirror path is required")
	}
	if c.Remote.URI != "" && c.Remote.Database == "" {
		return fmt.Errorf("remote.database is required when remote.uri is set")
	}
	if c.DrainInterval < 0 {
		return fmt.Errorf("drain_interval must not be negative")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
