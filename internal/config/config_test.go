package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"manuscript/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("an explicitly named missing file should be an error")
	}
}

func TestLoad_ParsesJSONCOverDefaults(t *testing.T) {
	path := writeConfig(t, `{
	// storage backend
	"driver": "sqlite",
	"dsn": "/tmp/manuscript-test.db",
	"mirror_dir": "/tmp/manuscript-mirror",
	"watch_outline": false, // trailing comma is fine too
}`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Driver != "sqlite" || cfg.DSN != "/tmp/manuscript-test.db" {
		t.Errorf("backend = %q %q", cfg.Driver, cfg.DSN)
	}
	if cfg.MirrorDir != "/tmp/manuscript-mirror" {
		t.Errorf("mirror dir = %q", cfg.MirrorDir)
	}
	if cfg.WatchOutline {
		t.Error("file should override the watch_outline default")
	}
	// Keys the file omits keep their defaults.
	if cfg.MaintenanceSchedule != config.Default().MaintenanceSchedule {
		t.Errorf("maintenance schedule = %q", cfg.MaintenanceSchedule)
	}
}

func TestLoad_RejectsUnsupportedDriver(t *testing.T) {
	path := writeConfig(t, `{"driver": "oracle"}`)
	if _, err := config.Load(path); err == nil {
		t.Fatal("unsupported driver should be rejected")
	}
}

func TestLoad_ServerDriversRequireDSN(t *testing.T) {
	path := writeConfig(t, `{"driver": "mysql"}`)
	if _, err := config.Load(path); err == nil {
		t.Fatal("mysql without a dsn should be rejected")
	}

	path = writeConfig(t, `{"driver": "postgres", "dsn": "postgres://localhost/manuscript"}`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Driver)
	}
}

func TestLoad_DefaultsSQLiteDSN(t *testing.T) {
	path := writeConfig(t, `{"driver": "sqlite"}`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.HasSuffix(cfg.DSN, "manuscript.db") {
		t.Errorf("dsn = %q, want the default database file", cfg.DSN)
	}
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := writeConfig(t, `{not even close`)
	if _, err := config.Load(path); err == nil {
		t.Fatal("malformed config should be rejected")
	}
}
