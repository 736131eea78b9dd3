// Package config loads vecdbd's runtime configuration: network bind
// address, snapshot/WAL file locations, durability knobs, and the
// dimension used for the reserved default collection. Precedence is
// flags > environment (VECDB_*) > YAML config file > built-in defaults,
// the same layering EfeDurmaz16-anvil's internal/config wires with
// spf13/viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every option named in the wire protocol's configuration
// section.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	SnapshotPath string `mapstructure:"snapshot_path"`
	WALPath      string `mapstructure:"wal_path"`

	// SnapshotIntervalSec is the background snapshot cadence; 0 disables
	// background snapshots. /save is always available regardless.
	SnapshotIntervalSec int `mapstructure:"snapshot_interval_sec"`

	// WALFsyncMode is either "per_op" or "interval:<ms>".
	WALFsyncMode string `mapstructure:"wal_fsync_mode"`

	DefaultDimension int `mapstructure:"default_dimension"`
}

// Defaults returns the configuration used when no flag, environment
// variable, or config file overrides a field.
func Defaults() Config {
	return Config{
		Host:                "0.0.0.0",
		Port:                8080,
		SnapshotPath:        "data/snapshot.bin",
		WALPath:             "data/wal.log",
		SnapshotIntervalSec: 300,
		WALFsyncMode:        "per_op",
		DefaultDimension:    128,
	}
}

// Load builds a Config from, in ascending precedence: built-in defaults,
// an optional YAML file at path (skipped if empty or missing), and
// VECDB_-prefixed environment variables. path may be empty.
func Load(path string) (Config, error) {
	v := viper.New()

	defaults := Defaults()
	v.SetDefault("host", defaults.Host)
	v.SetDefault("port", defaults.Port)
	v.SetDefault("snapshot_path", defaults.SnapshotPath)
	v.SetDefault("wal_path", defaults.WALPath)
	v.SetDefault("snapshot_interval_sec", defaults.SnapshotIntervalSec)
	v.SetDefault("wal_fsync_mode", defaults.WALFsyncMode)
	v.SetDefault("default_dimension", defaults.DefaultDimension)

	v.SetEnvPrefix("VECDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshalling: %w", err)
	}
	return cfg, nil
}

// ParseFsyncMode splits a wal_fsync_mode string into a mode name
// ("per_op" or "interval") and, for "interval:<ms>", the coalescing
// interval in milliseconds.
func (c Config) ParseFsyncMode() (mode string, intervalMillis int, err error) {
	if c.WALFsyncMode == "" || c.WALFsyncMode == "per_op" {
		return "per_op", 0, nil
	}
	const prefix = "interval:"
	if !strings.HasPrefix(c.WALFsyncMode, prefix) {
		return "", 0, fmt.Errorf("config: invalid wal_fsync_mode %q, want \"per_op\" or \"interval:<ms>\"", c.WALFsyncMode)
	}
	var ms int
	if _, err := fmt.Sscanf(strings.TrimPrefix(c.WALFsyncMode, prefix), "%d", &ms); err != nil || ms <= 0 {
		return "", 0, fmt.Errorf("config: invalid interval in wal_fsync_mode %q", c.WALFsyncMode)
	}
	return "interval", ms, nil
}

// Addr returns the host:port pair the HTTP server binds to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
