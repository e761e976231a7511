package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/rebalance"
)

// SavePortfolio validates p and inserts or replaces its configuration. The
// positions version is left unchanged.
func (s *DB) SavePortfolio(ctx context.Context, p config.Portfolio) error {
	if err := p.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal portfolio %s: %w", p.ID, err)
	}

	now := s.now().UTC()
	return s.guard.Do(ctx, "save_portfolio", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, s.q(`
			INSERT INTO portfolios (id, name, version, config, created_at, updated_at)
			VALUES (?, ?, 0, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				config = excluded.config,
				updated_at = excluded.updated_at`),
			p.ID, p.Name, string(body), now, now)
		if err != nil {
			return fmt.Errorf("save portfolio %s: %w", p.ID, err)
		}
		return nil
	})
}

// PortfolioConfig loads a stored configuration. It returns
// rebalance.ErrNotFound for an unknown id.
func (s *DB) PortfolioConfig(ctx context.Context, id string) (config.Portfolio, error) {
	body, err := guarded(ctx, s.guard, "portfolio_config", func(ctx context.Context) (string, error) {
		var body string
		err := s.db.GetContext(ctx, &body, s.q(`SELECT config FROM portfolios WHERE id = ?`), id)
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("portfolio %s: %w", id, rebalance.ErrNotFound)
		}
		return body, err
	})
	if err != nil {
		return config.Portfolio{}, err
	}

	var p config.Portfolio
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return config.Portfolio{}, fmt.Errorf("decode portfolio %s: %w", id, err)
	}
	return p, nil
}

// PortfolioIDs lists stored portfolio ids in order.
func (s *DB) PortfolioIDs(ctx context.Context) ([]string, error) {
	return guarded(ctx, s.guard, "portfolio_ids", func(ctx context.Context) ([]string, error) {
		var ids []string
		err := s.db.SelectContext(ctx, &ids, `SELECT id FROM portfolios ORDER BY id`)
		return ids, err
	})
}
