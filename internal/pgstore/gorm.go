package pgstore

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DatabaseType selects which SQL backend GormStore runs against. Grounded on
// marmos91-dittofs's pkg/controlplane/store.DatabaseType, which the same
// codebase uses to switch a single GORM-based store between SQLite
// (single-node default) and PostgreSQL (HA-capable).
type DatabaseType string

const (
	// DatabaseSQLite is the default for local development and tests that
	// want real SQL semantics without a Postgres server.
	DatabaseSQLite DatabaseType = "sqlite"
	// DatabasePostgres is the production backend: real row-level locking
	// under concurrent get_or_create/increment_ref/decrement_ref.
	DatabasePostgres DatabaseType = "postgres"
)

// PostgresConfig mirrors dittofs's PostgresConfig shape.
type PostgresConfig struct {
	Host         string
	Port         int
	Database     string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

func (c PostgresConfig) dsn() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)
	if c.SSLMode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
	}
	return dsn
}

// url renders the same connection parameters as a postgres:// URL, the form
// golang-migrate's source/database registry expects rather than libpq's
// space-separated keyword/value syntax.
func (c PostgresConfig) url() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode)
}

// Config selects and configures the backend database.
type Config struct {
	Type     DatabaseType
	SQLite   struct{ Path string }
	Postgres PostgresConfig
}

// Open connects to the configured backend and returns a ready-to-use
// *gorm.DB with sane connection pool limits, following dittofs's gorm.go.
func Open(cfg Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Type {
	case DatabasePostgres:
		db, err = gorm.Open(postgres.Open(cfg.Postgres.dsn()), gcfg)
	case DatabaseSQLite, "":
		path := cfg.SQLite.Path
		if path == "" {
			path = "objectstore.db"
		}
		db, err = gorm.Open(sqlite.Open(path), gcfg)
	default:
		return nil, fmt.Errorf("pgstore: unknown database type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: open %s: %w", cfg.Type, err)
	}

	if cfg.Type == DatabasePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("pgstore: underlying sql.DB: %w", err)
		}
		maxOpen, maxIdle := cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns
		if maxOpen == 0 {
			maxOpen = 25
		}
		if maxIdle == 0 {
			maxIdle = 5
		}
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxIdle)
	}

	if err := db.AutoMigrate(&objectRow{}, &blobRow{}); err != nil {
		return nil, fmt.Errorf("pgstore: automigrate: %w", err)
	}
	return db, nil
}

// GormStore is the production pgstore.Store, backed by either SQLite or
// PostgreSQL through GORM.
type GormStore struct {
	db   *gorm.DB
	kind DatabaseType
}

// NewGormStore wraps an already-opened *gorm.DB. kind selects the
// dialect-specific text search path: a tsvector query on PostgreSQL, a LIKE
// scan otherwise.
func NewGormStore(db *gorm.DB, kind DatabaseType) *GormStore {
	return &GormStore{db: db, kind: kind}
}

var _ Store = (*GormStore)(nil)
