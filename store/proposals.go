package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rustyeddy/levered/rebalance"
)

// RecordProposal keeps the accepted proposal as an audit record.
func (s *DB) RecordProposal(ctx context.Context, p rebalance.Proposal) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal proposal %s: %w", p.ID, err)
	}
	now := s.now().UTC()
	return s.guard.Do(ctx, "record_proposal", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, s.q(`
			INSERT INTO proposals (id, portfolio_id, created_at, accepted_at, base_version, body)
			VALUES (?, ?, ?, ?, ?, ?)`),
			p.ID, p.PortfolioID, p.CreatedAt.UTC(), now, p.BaseVersion, string(body))
		if err != nil {
			return fmt.Errorf("record proposal %s: %w", p.ID, err)
		}
		return nil
	})
}

// AcceptedProposal loads an accepted proposal by id.
func (s *DB) AcceptedProposal(ctx context.Context, proposalID string) (rebalance.Proposal, error) {
	body, err := guarded(ctx, s.guard, "accepted_proposal", func(ctx context.Context) (string, error) {
		var body string
		err := s.db.GetContext(ctx, &body, s.q(`SELECT body FROM proposals WHERE id = ?`), proposalID)
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("proposal %s: %w", proposalID, rebalance.ErrNotFound)
		}
		return body, err
	})
	if err != nil {
		return rebalance.Proposal{}, err
	}

	var p rebalance.Proposal
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return rebalance.Proposal{}, fmt.Errorf("decode proposal %s: %w", proposalID, err)
	}
	return p, nil
}

// AcceptedProposalIDs lists a portfolio's accepted proposal ids, newest
// first.
func (s *DB) AcceptedProposalIDs(ctx context.Context, portfolioID string, limit int) ([]string, error) {
	return guarded(ctx, s.guard, "accepted_proposal_ids", func(ctx context.Context) ([]string, error) {
		var ids []string
		err := s.db.SelectContext(ctx, &ids, s.q(`
			SELECT id FROM proposals WHERE portfolio_id = ?
			ORDER BY accepted_at DESC, id DESC LIMIT ?`), portfolioID, limit)
		return ids, err
	})
}
