// Package db provides database connection and schema bootstrap.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver for PostgreSQL
	_ "modernc.org/sqlite"             // register sqlite driver for local runs

	"player-ticket-gateway/internal/config"
	"player-ticket-gateway/internal/logx"
)

var dbLogger = logx.GetScope("db")

var (
	baseMu sync.Mutex
	baseDB *sql.DB
)

// Open opens a DB connection using pgx and returns an Ent dialect driver. It returns nil without
// error when POSTGRES_URL is unset.
func Open(cfg *config.Config) (*entsql.Driver, func(), error) {
	if cfg.PG.URL == "" {
		return nil, func() {}, nil
	}
	sqldb, err := sql.Open("pgx", cfg.PG.URL)
	if err != nil {
		return nil, func() {}, err
	}
	sqldb.SetMaxOpenConns(cfg.PG.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.PG.MaxIdleConns)

	baseMu.Lock()
	baseDB = sqldb
	baseMu.Unlock()

	drv := entsql.OpenDB(dialect.Postgres, sqldb)
	closer := func() {
		baseMu.Lock()
		baseDB = nil
		baseMu.Unlock()
		if err := drv.Close(); err != nil {
			dbLogger.Sugar().Errorf("close db: %v", err)
		}
	}
	return drv, closer, nil
}

// OpenLocal opens a private in-memory SQLite database for local development. Data is lost when
// the process exits.
func OpenLocal() (*entsql.Driver, func(), error) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, func() {}, err
	}
	// every connection would get its own empty database
	sqldb.SetMaxOpenConns(1)
	drv := entsql.OpenDB(dialect.SQLite, sqldb)
	return drv, func() { _ = drv.Close() }, nil
}

// UpdatePool updates DB pool settings at runtime.
func UpdatePool(maxOpen, maxIdle int) {
	baseMu.Lock()
	defer baseMu.Unlock()
	if baseDB == nil {
		return
	}
	if maxOpen > 0 {
		baseDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		baseDB.SetMaxIdleConns(maxIdle)
	}
}

// schema is portable between PostgreSQL and SQLite. Timestamps are unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		id          TEXT PRIMARY KEY,
		game_id     TEXT NOT NULL,
		area_id     TEXT NOT NULL DEFAULT '',
		uid         TEXT NOT NULL,
		player_name TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		issue_type  TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		closed_by   TEXT NOT NULL DEFAULT '',
		created_at  BIGINT NOT NULL,
		updated_at  BIGINT NOT NULL,
		closed_at   BIGINT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS tickets_one_active_per_player
		ON tickets (game_id, area_id, uid) WHERE status <> 'RESOLVED'`,
	`CREATE TABLE IF NOT EXISTS game_secrets (
		game_id    TEXT PRIMARY KEY,
		secret     TEXT NOT NULL,
		enabled    BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at BIGINT NOT NULL DEFAULT 0
	)`,
}

// Migrate creates the tables the gateway reads and writes.
func Migrate(ctx context.Context, drv dialect.Driver) error {
	for _, stmt := range schema {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	dbLogger.Debug("schema ready")
	return nil
}
