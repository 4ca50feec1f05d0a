package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got: %v", err)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ObjectStore.Bucket != "etl" {
		t.Errorf("expected default bucket %q, got %q", "etl", cfg.ObjectStore.Bucket)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("unexpected error for a missing config file: %v", err)
	}
	if cfg.Worker.Name != "castiron" {
		t.Errorf("expected default worker name, got %q", cfg.Worker.Name)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"object_store":{"bucket":"custom-bucket"},"worker":{"name":"test-worker","config_suffix":".toml","child_poll_interval_ms":500}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write fixture config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ObjectStore.Bucket != "custom-bucket" {
		t.Errorf("expected overlaid bucket, got %q", cfg.ObjectStore.Bucket)
	}
	if cfg.Worker.Name != "test-worker" {
		t.Errorf("expected overlaid worker name, got %q", cfg.Worker.Name)
	}
	// Values not present in the file must still carry their defaults.
	if cfg.Dashboard.Port != 8090 {
		t.Errorf("expected default dashboard port to survive the overlay, got %d", cfg.Dashboard.Port)
	}
}

func TestEnvironmentOverridesTakePrecedence(t *testing.T) {
	t.Setenv("ETL_OBJECTSTORE_BUCKET", "env-bucket")
	t.Setenv("ETL_WORKER_NAME", "env-worker")
	t.Setenv("DATABASE_HOST", "db.internal")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ObjectStore.Bucket != "env-bucket" {
		t.Errorf("expected env override for bucket, got %q", cfg.ObjectStore.Bucket)
	}
	if cfg.Worker.Name != "env-worker" {
		t.Errorf("expected env override for worker name, got %q", cfg.Worker.Name)
	}
	if !cfg.Database.Enabled {
		t.Error("expected setting DATABASE_HOST to imply Database.Enabled")
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("expected env override for database host, got %q", cfg.Database.Host)
	}
}

func TestValidateRejectsEmptyBucket(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ObjectStore.Bucket = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an empty bucket")
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an invalid log level")
	}
}

func TestValidateRejectsBadDashboardPortWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dashboard.Enabled = true
	cfg.Dashboard.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an invalid dashboard port")
	}
}

func TestValidateRejectsEmptyConfigSuffix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Worker.ConfigSuffix = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an empty config suffix")
	}
}

func TestValidateRejectsBadDedupSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dedup.ExpectedItems = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for zero expected items")
	}

	cfg = DefaultConfig()
	cfg.Dedup.FalsePositiveRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an out-of-range false positive rate")
	}
}
