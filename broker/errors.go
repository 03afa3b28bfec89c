package broker

import "errors"

// Per-order errors are absorbed into the step's history; only
// ErrConfiguration escapes a run (at construction time).
var (
	// ErrInvalidOrder covers malformed or unexecutable orders: zero size,
	// empty ticker, a CLOSE with nothing to close, an OPEN against the
	// opposite side.
	ErrInvalidOrder = errors.New("broker: invalid order")

	// ErrUnknownTicker means the current snapshot has no price for the
	// order's ticker.
	ErrUnknownTicker = errors.New("broker: unknown ticker")

	// ErrInsufficientFunds means filling the OPEN would drive cash negative.
	// There are no partial fills; the order is rejected whole.
	ErrInsufficientFunds = errors.New("broker: insufficient funds")

	// ErrConfiguration marks invalid construction parameters.
	ErrConfiguration = errors.New("broker: invalid configuration")
)
