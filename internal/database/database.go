// Package database provides SQLite connectivity and schema management for
// the citation alert service.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/retinalab/citation-alert-service/internal/config"
)

// PingTimeout is the maximum time to wait for the open-time connectivity check.
const PingTimeout = 5 * time.Second

// DB wraps a database/sql handle over the pure-Go SQLite driver.
//
// The ledger is written by a single process per run, so the pool is capped at
// one open connection; callers acquire it per logical operation via Conn and
// release it when done. No connection is held across operations.
type DB struct {
	sqlDB  *sql.DB
	config *config.DatabaseConfig
	logger zerolog.Logger
}

// Open opens the SQLite database file, applying the busy timeout and WAL
// journal mode, and verifies connectivity.
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	sqlDB, err := sql.Open("sqlite", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection at a time keeps writes serialized on the single file.
	sqlDB.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("path", cfg.Path).
		Msg("sqlite database opened")

	return &DB{
		sqlDB:  sqlDB,
		config: cfg,
		logger: logger,
	}, nil
}

// DSN builds the driver connection string for the configured database file.
func DSN(cfg *config.DatabaseConfig) string {
	busyMillis := int64(5000)
	if cfg.BusyTimeout > 0 {
		busyMillis = cfg.BusyTimeout.Milliseconds()
	}

	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyMillis))
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")

	return fmt.Sprintf("file:%s?%s", cfg.Path, params.Encode())
}

// Conn acquires the database connection for a single logical operation.
// The caller must close it when the operation completes.
func (db *DB) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := db.sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// SQLDB returns the underlying database/sql handle.
func (db *DB) SQLDB() *sql.DB {
	return db.sqlDB
}

// Close closes the database handle.
func (db *DB) Close() {
	if db.sqlDB != nil {
		if err := db.sqlDB.Close(); err != nil {
			db.logger.Warn().Err(err).Msg("failed to close database")
			return
		}
		db.logger.Info().Msg("database closed")
	}
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	return db.sqlDB.PingContext(pingCtx)
}
