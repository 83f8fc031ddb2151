// Package config loads worker configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/4Science/mill/internal/logging"
	"github.com/4Science/mill/internal/metrics"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "5m" or "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type QueueConfig struct {
	Backend string `yaml:"backend"` // "sqs" | "memory"
	Name    string `yaml:"name"`
}

type PolicyConfig struct {
	BucketURL        string   `yaml:"bucket_url"` // s3://... or file://...
	RefreshFrequency Duration `yaml:"refresh_frequency"`
}

type LoopingConfig struct {
	// Enabled turns on the scheduled whole-space duplication producer.
	Enabled   bool     `yaml:"enabled"`
	Frequency Duration `yaml:"frequency"`
}

type DatabaseConfig struct {
	// DSN for the audit/bit log database. Empty selects the in-memory
	// repos (local runs and tests only; nothing survives a restart).
	DSN string `yaml:"dsn"`
}

type Config struct {
	Workers     int      `yaml:"workers"`
	TaskTimeout Duration `yaml:"task_timeout"`

	Queue   QueueConfig   `yaml:"queue"`
	Policy  PolicyConfig  `yaml:"policy"`
	Looping LoopingConfig `yaml:"looping"`

	// CredentialsFile holds the per-account provider credentials.
	CredentialsFile string `yaml:"credentials_file"`

	// LocalDuplicationDir enables the local filesystem provider type
	// when non-empty.
	LocalDuplicationDir string `yaml:"local_duplication_dir"`

	// AuditLogSpace is the space audit log exports are written to. Empty
	// disables the export schedule.
	AuditLogSpace           string   `yaml:"audit_log_space"`
	AuditLogExportFrequency Duration `yaml:"audit_log_export_frequency"`

	Database DatabaseConfig `yaml:"database"`
	Logging  logging.Config `yaml:"logging"`
	Metrics  metrics.Config `yaml:"metrics"`
}

func defaults() Config {
	return Config{
		Workers:                 4,
		TaskTimeout:             Duration(5 * time.Minute),
		Queue:                   QueueConfig{Backend: "sqs"},
		Policy:                  PolicyConfig{RefreshFrequency: Duration(5 * time.Minute)},
		Looping:                 LoopingConfig{Frequency: Duration(24 * time.Hour)},
		AuditLogExportFrequency: Duration(24 * time.Hour),
		Logging:                 logging.Config{Format: "text", Level: "info"},
		Metrics:                 metrics.Config{Enabled: false, Address: ":9090"},
	}
}

// Load reads the config file (optional; empty path skips it) and applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MAX_WORKERS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Workers = parsed
		}
	}
	if v := os.Getenv("TASK_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.TaskTimeout = Duration(parsed)
		}
	}
	cfg.Queue.Backend = getenvDefault("QUEUE_BACKEND", cfg.Queue.Backend)
	cfg.Queue.Name = getenvDefault("QUEUE_NAME_DUP", cfg.Queue.Name)
	cfg.Policy.BucketURL = getenvDefault("DUPLICATION_POLICY_BUCKET_URL", cfg.Policy.BucketURL)
	if v := os.Getenv("DUPLICATION_POLICY_REFRESH_FREQUENCY"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Policy.RefreshFrequency = Duration(parsed)
		}
	}
	if v := os.Getenv("LOOPING_DUP_FREQUENCY"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Looping.Enabled = true
			cfg.Looping.Frequency = Duration(parsed)
		}
	}
	cfg.CredentialsFile = getenvDefault("CREDENTIALS_FILE", cfg.CredentialsFile)
	cfg.LocalDuplicationDir = getenvDefault("LOCAL_DUPLICATION_DIR", cfg.LocalDuplicationDir)
	cfg.AuditLogSpace = getenvDefault("AUDIT_LOG_SPACE_ID", cfg.AuditLogSpace)
	if v := os.Getenv("AUDIT_LOG_EXPORT_FREQUENCY"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.AuditLogExportFrequency = Duration(parsed)
		}
	}
	cfg.Database.DSN = getenvDefault("MILL_DB_DSN", cfg.Database.DSN)
	cfg.Logging.Format = getenvDefault("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Level = getenvDefault("LOG_LEVEL", cfg.Logging.Level)
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}
	cfg.Metrics.Address = getenvDefault("METRICS_ADDRESS", cfg.Metrics.Address)
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
