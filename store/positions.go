package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rustyeddy/levered/rebalance"
	"github.com/rustyeddy/levered/risk"
)

type positionRow struct {
	Symbol   string  `db:"symbol"`
	Quantity float64 `db:"quantity"`
	AvgPrice float64 `db:"avg_price"`
}

// Positions returns a portfolio's positions sorted by symbol together with
// the positions version.
func (s *DB) Positions(ctx context.Context, portfolioID string) ([]risk.Position, int64, error) {
	type result struct {
		positions []risk.Position
		version   int64
	}
	res, err := guarded(ctx, s.guard, "positions", func(ctx context.Context) (result, error) {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return result{}, err
		}
		defer tx.Rollback()

		version, err := s.version(ctx, tx, portfolioID)
		if err != nil {
			return result{}, err
		}
		var rows []positionRow
		if err := tx.SelectContext(ctx, &rows, s.q(`
			SELECT symbol, quantity, avg_price FROM positions
			WHERE portfolio_id = ? ORDER BY symbol`), portfolioID); err != nil {
			return result{}, fmt.Errorf("select positions %s: %w", portfolioID, err)
		}

		out := make([]risk.Position, 0, len(rows))
		for _, r := range rows {
			out = append(out, risk.Position{Symbol: r.Symbol, Quantity: r.Quantity, AvgPrice: r.AvgPrice})
		}
		return result{positions: out, version: version}, tx.Commit()
	})
	return res.positions, res.version, err
}

// ApplyPositions overwrites the named positions and bumps the version in one
// transaction. A version other than baseVersion yields
// rebalance.ErrVersionConflict and no writes.
func (s *DB) ApplyPositions(ctx context.Context, portfolioID string, baseVersion int64, updates []rebalance.PositionUpdate) error {
	return s.guard.Do(ctx, "apply_positions", func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *sqlx.Tx) error {
			version, err := s.version(ctx, tx, portfolioID)
			if err != nil {
				return err
			}
			if version != baseVersion {
				return fmt.Errorf("portfolio %s at version %d, proposal from %d: %w",
					portfolioID, version, baseVersion, rebalance.ErrVersionConflict)
			}
			for _, u := range updates {
				if err := s.upsertPosition(ctx, tx, portfolioID, u); err != nil {
					return err
				}
			}
			return s.bumpVersion(ctx, tx, portfolioID, baseVersion)
		})
	})
}

// SetPositions replaces all positions of a portfolio, for seeding holdings
// outside a proposal. It bumps the version.
func (s *DB) SetPositions(ctx context.Context, portfolioID string, positions []risk.Position) error {
	return s.guard.Do(ctx, "set_positions", func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *sqlx.Tx) error {
			version, err := s.version(ctx, tx, portfolioID)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM positions WHERE portfolio_id = ?`), portfolioID); err != nil {
				return fmt.Errorf("clear positions %s: %w", portfolioID, err)
			}
			for _, p := range positions {
				u := rebalance.PositionUpdate{Symbol: p.Symbol, Quantity: p.Quantity, AvgPrice: p.AvgPrice, Exposure: p.Quantity * p.AvgPrice}
				if err := s.upsertPosition(ctx, tx, portfolioID, u); err != nil {
					return err
				}
			}
			return s.bumpVersion(ctx, tx, portfolioID, version)
		})
	})
}

func (s *DB) version(ctx context.Context, tx *sqlx.Tx, portfolioID string) (int64, error) {
	var v int64
	err := tx.GetContext(ctx, &v, s.q(`SELECT version FROM portfolios WHERE id = ?`), portfolioID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("portfolio %s: %w", portfolioID, rebalance.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("portfolio version %s: %w", portfolioID, err)
	}
	return v, nil
}

func (s *DB) bumpVersion(ctx context.Context, tx *sqlx.Tx, portfolioID string, from int64) error {
	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE portfolios SET version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`), s.now().UTC(), portfolioID, from)
	if err != nil {
		return fmt.Errorf("bump version %s: %w", portfolioID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("portfolio %s moved past version %d: %w", portfolioID, from, rebalance.ErrVersionConflict)
	}
	return nil
}

func (s *DB) upsertPosition(ctx context.Context, tx *sqlx.Tx, portfolioID string, u rebalance.PositionUpdate) error {
	_, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO positions (portfolio_id, symbol, quantity, avg_price, exposure)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (portfolio_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_price = excluded.avg_price,
			exposure = excluded.exposure`),
		portfolioID, u.Symbol, u.Quantity, u.AvgPrice, u.Exposure)
	if err != nil {
		return fmt.Errorf("write position %s/%s: %w", portfolioID, u.Symbol, err)
	}
	return nil
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *DB) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
