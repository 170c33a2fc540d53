package database

import (
	"database/sql"
	"fmt"

	"retail-backoffice/common/config"

	_ "github.com/lib/pq"
)

// NewPostgresDB opens a PostgreSQL pool and pings it.
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.GetDSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Open dispatches on cfg.Driver.
func Open(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "", "postgres":
		return NewPostgresDB(cfg)
	case "sqlite":
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Close closes db if it is non-nil.
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
