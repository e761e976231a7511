package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rustyeddy/levered/rebalance"
	"github.com/rustyeddy/levered/risk"
)

type equityRow struct {
	TakenAt    time.Time `db:"taken_at"`
	Equity     float64   `db:"equity"`
	PeakEquity float64   `db:"peak_equity"`
}

func (r equityRow) snapshot() risk.EquitySnapshot {
	return risk.EquitySnapshot{Time: r.TakenAt.UTC(), Equity: r.Equity, PeakEquity: r.PeakEquity}
}

// RecordEquity stores an equity reading. The stored peak is the maximum of
// the previous peak, the reading's peak and its equity. A zero time means
// now.
func (s *DB) RecordEquity(ctx context.Context, portfolioID string, snap risk.EquitySnapshot) (risk.EquitySnapshot, error) {
	if snap.Time.IsZero() {
		snap.Time = s.now()
	}
	snap.Time = snap.Time.UTC()

	err := s.guard.Do(ctx, "record_equity", func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := s.version(ctx, tx, portfolioID); err != nil {
				return err
			}
			prev, err := s.latestEquity(ctx, tx, portfolioID)
			if err != nil && !errors.Is(err, rebalance.ErrNotFound) {
				return err
			}
			snap.PeakEquity = math.Max(math.Max(prev.PeakEquity, snap.PeakEquity), snap.Equity)
			return s.insertEquity(ctx, tx, portfolioID, snap)
		})
	})
	return snap, err
}

// RecentEquity returns up to n snapshots, newest first.
func (s *DB) RecentEquity(ctx context.Context, portfolioID string, n int) ([]risk.EquitySnapshot, error) {
	return guarded(ctx, s.guard, "recent_equity", func(ctx context.Context) ([]risk.EquitySnapshot, error) {
		var rows []equityRow
		err := s.db.SelectContext(ctx, &rows, s.q(`
			SELECT taken_at, equity, peak_equity FROM equity_snapshots
			WHERE portfolio_id = ? ORDER BY taken_at DESC LIMIT ?`), portfolioID, n)
		if err != nil {
			return nil, fmt.Errorf("recent equity %s: %w", portfolioID, err)
		}
		out := make([]risk.EquitySnapshot, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.snapshot())
		}
		return out, nil
	})
}

func (s *DB) latestEquity(ctx context.Context, tx *sqlx.Tx, portfolioID string) (risk.EquitySnapshot, error) {
	var r equityRow
	err := tx.GetContext(ctx, &r, s.q(`
		SELECT taken_at, equity, peak_equity FROM equity_snapshots
		WHERE portfolio_id = ? ORDER BY taken_at DESC LIMIT 1`), portfolioID)
	if errors.Is(err, sql.ErrNoRows) {
		return risk.EquitySnapshot{}, fmt.Errorf("equity snapshot %s: %w", portfolioID, rebalance.ErrNotFound)
	}
	if err != nil {
		return risk.EquitySnapshot{}, fmt.Errorf("latest equity %s: %w", portfolioID, err)
	}
	return r.snapshot(), nil
}

func (s *DB) insertEquity(ctx context.Context, tx *sqlx.Tx, portfolioID string, snap risk.EquitySnapshot) error {
	_, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO equity_snapshots (portfolio_id, taken_at, equity, peak_equity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (portfolio_id, taken_at) DO UPDATE SET
			equity = excluded.equity,
			peak_equity = excluded.peak_equity`),
		portfolioID, snap.Time, snap.Equity, snap.PeakEquity)
	if err != nil {
		return fmt.Errorf("insert equity %s: %w", portfolioID, err)
	}
	return nil
}
