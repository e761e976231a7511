package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/pkg/id"
	"github.com/rustyeddy/levered/rebalance"
	"github.com/rustyeddy/levered/risk"
)

// Contribution is cash added to a portfolio.
type Contribution struct {
	ID          string          `json:"id" db:"id"`
	PortfolioID string          `json:"portfolio_id" db:"portfolio_id"`
	Time        time.Time       `json:"time" db:"made_at"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Note        string          `json:"note" db:"note"`
}

// Contribute records c and appends an equity snapshot with the amount added
// to the latest equity. A portfolio without snapshots starts from zero.
func (s *DB) Contribute(ctx context.Context, c Contribution) (risk.EquitySnapshot, error) {
	if !c.Amount.IsPositive() {
		return risk.EquitySnapshot{}, &config.ValidationError{Field: "amount", Msg: fmt.Sprintf("must be positive, got %s", c.Amount)}
	}
	if c.Time.IsZero() {
		c.Time = s.now()
	}
	c.Time = c.Time.UTC()
	if c.ID == "" {
		c.ID = id.New(c.Time)
	}

	var snap risk.EquitySnapshot
	err := s.guard.Do(ctx, "contribute", func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := s.version(ctx, tx, c.PortfolioID); err != nil {
				return err
			}
			prev, err := s.latestEquity(ctx, tx, c.PortfolioID)
			if err != nil && !errors.Is(err, rebalance.ErrNotFound) {
				return err
			}

			equity := decimal.NewFromFloat(prev.Equity).Add(c.Amount).InexactFloat64()
			snap = risk.EquitySnapshot{
				Time:       c.Time,
				Equity:     equity,
				PeakEquity: math.Max(prev.PeakEquity, equity),
			}

			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO contributions (id, portfolio_id, made_at, amount, note)
				VALUES (:id, :portfolio_id, :made_at, :amount, :note)`, c); err != nil {
				return fmt.Errorf("insert contribution %s: %w", c.PortfolioID, err)
			}
			return s.insertEquity(ctx, tx, c.PortfolioID, snap)
		})
	})
	return snap, err
}

// Contributions lists a portfolio's contributions, oldest first.
func (s *DB) Contributions(ctx context.Context, portfolioID string) ([]Contribution, error) {
	return guarded(ctx, s.guard, "contributions", func(ctx context.Context) ([]Contribution, error) {
		var out []Contribution
		err := s.db.SelectContext(ctx, &out, s.q(`
			SELECT id, portfolio_id, made_at, amount, note FROM contributions
			WHERE portfolio_id = ? ORDER BY made_at, id`), portfolioID)
		if err != nil {
			return nil, fmt.Errorf("contributions %s: %w", portfolioID, err)
		}
		for i := range out {
			out[i].Time = out[i].Time.UTC()
		}
		return out, nil
	})
}

// TotalContributed sums the contributions exactly.
func TotalContributed(cs []Contribution) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cs {
		total = total.Add(c.Amount)
	}
	return total
}
