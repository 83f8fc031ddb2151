package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("default workers = %d, want 4", cfg.Workers)
	}
	if cfg.TaskTimeout.Std() != 5*time.Minute {
		t.Errorf("default task timeout = %s, want 5m", cfg.TaskTimeout.Std())
	}
	if cfg.Queue.Backend != "sqs" {
		t.Errorf("default queue backend = %q, want sqs", cfg.Queue.Backend)
	}
	if cfg.Looping.Enabled {
		t.Error("looping should default to disabled")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
workers: 8
task_timeout: 90s
queue:
  backend: memory
  name: dup-tasks
policy:
  bucket_url: file:///var/mill/policies
  refresh_frequency: 2m
looping:
  enabled: true
  frequency: 12h
credentials_file: /etc/mill/credentials.yaml
local_duplication_dir: /var/mill/dup
database:
  dsn: postgres://mill@localhost/mill
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Workers)
	}
	if cfg.TaskTimeout.Std() != 90*time.Second {
		t.Errorf("task timeout = %s, want 90s", cfg.TaskTimeout.Std())
	}
	if cfg.Queue.Backend != "memory" || cfg.Queue.Name != "dup-tasks" {
		t.Errorf("unexpected queue config %+v", cfg.Queue)
	}
	if cfg.Policy.RefreshFrequency.Std() != 2*time.Minute {
		t.Errorf("refresh frequency = %s, want 2m", cfg.Policy.RefreshFrequency.Std())
	}
	if !cfg.Looping.Enabled || cfg.Looping.Frequency.Std() != 12*time.Hour {
		t.Errorf("unexpected looping config %+v", cfg.Looping)
	}
	if cfg.Database.DSN != "postgres://mill@localhost/mill" {
		t.Errorf("unexpected DSN %q", cfg.Database.DSN)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "task_timeout: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MAX_WORKERS", "16")
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("QUEUE_NAME_DUP", "dup-high-priority")
	t.Setenv("LOOPING_DUP_FREQUENCY", "6h")
	t.Setenv("MILL_DB_DSN", "postgres://env@db/mill")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 16 {
		t.Errorf("workers = %d, want 16", cfg.Workers)
	}
	if cfg.Queue.Backend != "memory" || cfg.Queue.Name != "dup-high-priority" {
		t.Errorf("unexpected queue config %+v", cfg.Queue)
	}
	if !cfg.Looping.Enabled || cfg.Looping.Frequency.Std() != 6*time.Hour {
		t.Errorf("setting the frequency should enable looping: %+v", cfg.Looping)
	}
	if cfg.Database.DSN != "postgres://env@db/mill" {
		t.Errorf("unexpected DSN %q", cfg.Database.DSN)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestWorkersFloor(t *testing.T) {
	path := writeConfig(t, "workers: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 1 {
		t.Errorf("workers should floor at 1, got %d", cfg.Workers)
	}
}
