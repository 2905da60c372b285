// Package config loads host settings from a JSONC file, comments and
// trailing commas allowed.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds everything the hosts need to come up: which backend holds
// the blocks and which optional surfaces run beside the engine.
type Config struct {
	// Driver is sqlite (default), mysql, or postgres.
	Driver string `json:"driver,omitempty"`
	// DSN is the database file path for sqlite, or the driver DSN for
	// mysql and postgres. Empty means the default sqlite file.
	DSN string `json:"dsn,omitempty"`
	// MirrorDir enables the markdown mirror when set.
	MirrorDir string `json:"mirror_dir,omitempty"`
	// MaintenanceSchedule is a cron expression for the sort-order sweep.
	// Empty disables it.
	MaintenanceSchedule string `json:"maintenance_schedule,omitempty"`
	// WatchOutline runs the outline poller in serve mode.
	WatchOutline bool `json:"watch_outline,omitempty"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Driver:              "sqlite",
		MaintenanceSchedule: "0 3 * * *",
		WatchOutline:        true,
	}
}

// DefaultDir is where the config file and the sqlite database live unless
// told otherwise.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "manuscript")
}

// DefaultPath is the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.json")
}

// Load reads the config at path, falling back to the default location when
// path is empty. A missing default file yields the defaults; a missing
// explicit file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return finish(cfg)
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return finish(cfg)
}

// finish fills derived defaults and validates.
func finish(cfg Config) (Config, error) {
	switch cfg.Driver {
	case "":
		cfg.Driver = "sqlite"
	case "sqlite", "mysql", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	if cfg.DSN == "" {
		if cfg.Driver != "sqlite" {
			return Config{}, fmt.Errorf("driver %s requires a dsn", cfg.Driver)
		}
		cfg.DSN = filepath.Join(DefaultDir(), "manuscript.db")
	}
	return cfg, nil
}
