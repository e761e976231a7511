package rebalance

import "errors"

var (
	// ErrNotFound is returned when a portfolio or its equity snapshot does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by Accept when the portfolio's positions
	// changed after the proposal was computed.
	ErrVersionConflict = errors.New("positions changed since proposal was computed")
)
