package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rustyeddy/levered/market"
)

// UpsertCloses stores daily closes, replacing existing closes for the same
// symbol and day. It returns the number of rows written.
func (s *DB) UpsertCloses(ctx context.Context, closes []market.Close) (int, error) {
	err := s.guard.Do(ctx, "upsert_closes", func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *sqlx.Tx) error {
			stmt, err := tx.PreparexContext(ctx, s.q(`
				INSERT INTO prices (symbol, day, close_price) VALUES (?, ?, ?)
				ON CONFLICT (symbol, day) DO UPDATE SET close_price = excluded.close_price`))
			if err != nil {
				return fmt.Errorf("prepare close insert: %w", err)
			}
			defer stmt.Close()

			for _, c := range closes {
				if _, err := stmt.ExecContext(ctx, c.Symbol, market.FormatDay(c.Day), c.Price); err != nil {
					return fmt.Errorf("insert close %s %s: %w", c.Symbol, market.FormatDay(c.Day), err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return len(closes), nil
}

// LatestPrice returns the most recent close of symbol. ok is false when the
// symbol has no closes.
func (s *DB) LatestPrice(ctx context.Context, symbol string) (float64, bool, error) {
	type latest struct {
		px float64
		ok bool
	}
	res, err := guarded(ctx, s.guard, "latest_price", func(ctx context.Context) (latest, error) {
		var px float64
		err := s.db.GetContext(ctx, &px, s.q(`
			SELECT close_price FROM prices WHERE symbol = ?
			ORDER BY day DESC LIMIT 1`), symbol)
		if errors.Is(err, sql.ErrNoRows) {
			return latest{}, nil
		}
		if err != nil {
			return latest{}, fmt.Errorf("latest price %s: %w", symbol, err)
		}
		return latest{px: px, ok: true}, nil
	})
	return res.px, res.ok, err
}

// PriceHistory returns up to limit of the most recent closes of symbol,
// oldest first.
func (s *DB) PriceHistory(ctx context.Context, symbol string, limit int) ([]float64, error) {
	closes, err := guarded(ctx, s.guard, "price_history", func(ctx context.Context) ([]float64, error) {
		var desc []float64
		err := s.db.SelectContext(ctx, &desc, s.q(`
			SELECT close_price FROM prices WHERE symbol = ?
			ORDER BY day DESC LIMIT ?`), symbol, limit)
		if err != nil {
			return nil, fmt.Errorf("price history %s: %w", symbol, err)
		}
		return desc, nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	return closes, nil
}

// Symbols lists the symbols with stored closes.
func (s *DB) Symbols(ctx context.Context) ([]string, error) {
	return guarded(ctx, s.guard, "symbols", func(ctx context.Context) ([]string, error) {
		var syms []string
		err := s.db.SelectContext(ctx, &syms, `SELECT DISTINCT symbol FROM prices ORDER BY symbol`)
		return syms, err
	})
}
