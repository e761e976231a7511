package rebalance

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/levered/metrics"
)

// ProposalRecorder keeps an audit record of accepted proposals.
type ProposalRecorder interface {
	RecordProposal(ctx context.Context, p Proposal) error
}

// Applier writes accepted proposals back as positions. Accepts for the same
// portfolio are serialized; the repository's version check rejects proposals
// computed from positions that have since changed.
type Applier struct {
	positions PositionRepository
	audit     ProposalRecorder
	metrics   *metrics.Registry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewApplier returns an Applier. audit and m may be nil.
func NewApplier(positions PositionRepository, audit ProposalRecorder, m *metrics.Registry) *Applier {
	return &Applier{
		positions: positions,
		audit:     audit,
		metrics:   m,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (a *Applier) lock(portfolioID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[portfolioID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[portfolioID] = l
	}
	return l
}

// Accept overwrites each proposed position's quantity, average price and
// exposure with its target values. It returns ErrVersionConflict, writing
// nothing, when the positions changed after p was computed.
func (a *Applier) Accept(ctx context.Context, p Proposal) error {
	if p.PortfolioID == "" {
		return errors.New("accept: proposal has no portfolio id")
	}

	l := a.lock(p.PortfolioID)
	l.Lock()
	defer l.Unlock()

	err := a.positions.ApplyPositions(ctx, p.PortfolioID, p.BaseVersion, Updates(p))
	switch {
	case errors.Is(err, ErrVersionConflict):
		a.metrics.ObserveAccept("conflict")
		log.Warn().Str("portfolio", p.PortfolioID).Str("proposal", p.ID).
			Int64("base_version", p.BaseVersion).Msg("stale proposal rejected")
		return fmt.Errorf("accept %s: %w", p.ID, err)
	case err != nil:
		a.metrics.ObserveAccept("error")
		return fmt.Errorf("accept %s: %w", p.ID, err)
	}
	a.metrics.ObserveAccept("ok")

	if a.audit != nil {
		if err := a.audit.RecordProposal(ctx, p); err != nil {
			log.Error().Err(err).Str("proposal", p.ID).Msg("record accepted proposal")
		}
	}
	log.Info().Str("portfolio", p.PortfolioID).Str("proposal", p.ID).
		Int("positions", len(p.Positions)).Msg("proposal accepted")
	return nil
}

// Updates converts the proposal positions into position overwrites.
func Updates(p Proposal) []PositionUpdate {
	out := make([]PositionUpdate, 0, len(p.Positions))
	for _, pp := range p.Positions {
		out = append(out, PositionUpdate{
			Symbol:   pp.Symbol,
			Quantity: pp.TargetQuantity,
			AvgPrice: pp.Price,
			Exposure: pp.TargetValue,
		})
	}
	return out
}
