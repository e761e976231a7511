package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/metrics"
	"github.com/rustyeddy/levered/rebalance"
)

// RetryPolicy controls how often a failed store call is repeated.
type RetryPolicy struct {
	Attempts int
	// Backoff is multiplied by the attempt number between attempts.
	Backoff time.Duration
}

// Guard runs store calls with a per-call timeout, retries and a circuit
// breaker. Not-found and version conflicts are answers, not failures: they
// are neither retried nor counted by the breaker.
type Guard struct {
	name    string
	policy  RetryPolicy
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.Registry
}

// NewGuard builds a Guard from the retry configuration. m may be nil.
func NewGuard(name string, rc config.RetryConfig, timeout time.Duration, m *metrics.Registry) *Guard {
	g := &Guard{
		name:    name,
		policy:  RetryPolicy{Attempts: rc.Attempts, Backoff: rc.Backoff},
		timeout: timeout,
		metrics: m,
	}
	if g.policy.Attempts < 1 {
		g.policy.Attempts = 1
	}

	failures := rc.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	st := gobreaker.Settings{
		Name:    name,
		Timeout: rc.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isAnswer(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("store breaker state change")
			m.SetBreakerState(name, int(to))
		},
	}
	g.cb = gobreaker.NewCircuitBreaker(st)
	m.SetBreakerState(name, int(gobreaker.StateClosed))
	return g
}

// State reports the breaker state.
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts are used up.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= g.policy.Attempts; attempt++ {
		_, err = g.cb.Execute(func() (any, error) {
			cctx := ctx
			if g.timeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(ctx, g.timeout)
				defer cancel()
			}
			return nil, fn(cctx)
		})
		g.metrics.ObserveStoreCall(op, errIfFailure(err))
		if err == nil || !retryable(ctx, err) || attempt == g.policy.Attempts {
			break
		}

		log.Debug().Err(err).Str("op", op).Int("attempt", attempt).Msg("retrying store call")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.policy.Backoff * time.Duration(attempt)):
		}
	}
	return err
}

// guarded is Do for calls that return a value.
func guarded[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func isAnswer(err error) bool {
	var verr *config.ValidationError
	return errors.Is(err, rebalance.ErrNotFound) ||
		errors.Is(err, rebalance.ErrVersionConflict) ||
		errors.Is(err, sql.ErrNoRows) ||
		errors.As(err, &verr)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || isAnswer(err) {
		return false
	}
	return !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests)
}

func errIfFailure(err error) error {
	if err != nil && isAnswer(err) {
		return nil
	}
	return err
}
