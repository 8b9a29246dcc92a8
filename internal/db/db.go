package db

import (
	"database/sql"
	"fmt"

	"aura-rag/internal/config"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
	_ "modernc.org/sqlite"
)

// Supported values of config.DatabaseConfig.Driver.
const (
	DriverPG     = "pgdriver"
	DriverPQ     = "pq"
	DriverSQLite = "sqlite"
)

func NewDB(sqldb *sql.DB, d schema.Dialect, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, d)
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the configured database and wraps it with the matching dialect.
// No connection is made until the first query.
func ConnectDB(cfg *config.DatabaseConfig) (*bun.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	switch cfg.Driver {
	case "", DriverPG:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.URL)))
		return NewDB(sqldb, pgdialect.New(), cfg.Debug), nil
	case DriverPQ:
		sqldb, err := sql.Open("postgres", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return NewDB(sqldb, pgdialect.New(), cfg.Debug), nil
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// a single connection keeps ":memory:" databases consistent
		sqldb.SetMaxOpenConns(1)
		return NewDB(sqldb, sqlitedialect.New(), cfg.Debug), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// IsPostgres reports whether db speaks the Postgres dialect.
func IsPostgres(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}
