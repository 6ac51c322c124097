// Package config loads runtime configuration for the storage service via
// viper, layering defaults, an optional YAML file, and environment
// variables — generalizing the teacher's getEnv-with-fallback config.go to
// the full option set in spec.md §6, grounded on dittofs's
// cmd/dittofs/commands/config package.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zynqcloud/objectstore/internal/pgstore"
)

// Config holds every recognized option from spec.md §6 plus the database
// connection settings dittofs's config layer adds.
type Config struct {
	HotStorageRoot  string `mapstructure:"hot_storage_root"`
	ColdStorageRoot string `mapstructure:"cold_storage_root"`
	DurableWrites   bool   `mapstructure:"durable_writes"`

	GCInterval            time.Duration `mapstructure:"gc_interval"`
	GCBatchSize           int           `mapstructure:"gc_batch_size"`
	StuckUploadAge        time.Duration `mapstructure:"stuck_upload_age"`
	StuckUploadCycleRatio int           `mapstructure:"stuck_upload_cycle_ratio"`
	MaxConcurrentDeletes  int           `mapstructure:"max_concurrent_deletions"`
	TmpPruneTTL           time.Duration `mapstructure:"tmp_prune_ttl"`

	Database DatabaseConfig `mapstructure:"database"`

	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// ToPgstoreConfig adapts the loaded config into pgstore.Config's shape.
func (c Config) ToPgstoreConfig() pgstore.Config {
	cfg := pgstore.Config{Type: pgstore.DatabaseType(c.Database.Type)}
	cfg.SQLite.Path = c.Database.SQLite.Path
	cfg.Postgres = pgstore.PostgresConfig{
		Host:         c.Database.Postgres.Host,
		Port:         c.Database.Postgres.Port,
		Database:     c.Database.Postgres.Database,
		User:         c.Database.Postgres.User,
		Password:     c.Database.Postgres.Password,
		SSLMode:      c.Database.Postgres.SSLMode,
		MaxOpenConns: c.Database.Postgres.MaxOpenConns,
		MaxIdleConns: c.Database.Postgres.MaxIdleConns,
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hot_storage_root", "./data/hot")
	v.SetDefault("cold_storage_root", "./data/cold")
	v.SetDefault("durable_writes", false)
	v.SetDefault("gc_interval", "1m")
	v.SetDefault("gc_batch_size", 100)
	v.SetDefault("stuck_upload_age", "24h")
	v.SetDefault("stuck_upload_cycle_ratio", 10)
	v.SetDefault("max_concurrent_deletions", 16)
	v.SetDefault("tmp_prune_ttl", "24h")
	v.SetDefault("log_level", "info")
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite.path", "objectstore.db")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 25)
	v.SetDefault("database.postgres.max_idle_conns", 5)
}

// Load builds a Config from (in increasing precedence) built-in defaults, an
// optional YAML file at configPath, and OBJECTSTORE_-prefixed environment
// variables — the same layering dittofs's config package uses, generalized
// from the teacher's flat getEnv(key, fallback) scheme.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("objectstore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the option combinations that a plain field decode cannot
// express, generalizing the teacher's config.go (which had no validation at
// all because its option set had no invalid states).
func (c Config) Validate() error {
	if c.HotStorageRoot == "" {
		return fmt.Errorf("config: hot_storage_root must not be empty")
	}
	if c.ColdStorageRoot == "" {
		return fmt.Errorf("config: cold_storage_root must not be empty")
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: database.type must be sqlite or postgres, got %q", c.Database.Type)
	}
	if c.GCBatchSize <= 0 {
		return fmt.Errorf("config: gc_batch_size must be positive")
	}
	if c.MaxConcurrentDeletes <= 0 {
		return fmt.Errorf("config: max_concurrent_deletions must be positive")
	}
	if c.StuckUploadCycleRatio <= 0 {
		return fmt.Errorf("config: stuck_upload_cycle_ratio must be positive")
	}
	return nil
}
