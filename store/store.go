// Package store persists portfolios, positions, prices, equity snapshots,
// contributions and accepted proposals in SQLite or PostgreSQL, and
// implements the rebalance engine's collaborator interfaces.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/metrics"
)

// DB is the SQL store. All exported methods run under the store Guard.
type DB struct {
	db    *sqlx.DB
	guard *Guard
	now   func() time.Time
}

// Open connects to the configured database and creates the schema. m may be
// nil.
func Open(cfg config.StoreConfig, m *metrics.Registry) (*DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite3" {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{
		db:    db,
		guard: NewGuard("store", cfg.Retry, cfg.QueryTimeout, m),
		now:   time.Now,
	}, nil
}

// Ping checks connectivity through the guard.
func (s *DB) Ping(ctx context.Context) error {
	return s.guard.Do(ctx, "ping", func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *DB) Close() error {
	return s.db.Close()
}

// q rebinds a '?' query for the connected driver.
func (s *DB) q(query string) string {
	return s.db.Rebind(query)
}
