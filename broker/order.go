package broker

import (
	"fmt"
	"math"
)

// Intent is what an order means to do to exposure: Open establishes or adds
// in the direction of its sign, Close reduces or flattens what is held.
type Intent int8

const (
	Open Intent = iota
	Close
)

func (i Intent) String() string {
	switch i {
	case Open:
		return "OPEN"
	case Close:
		return "CLOSE"
	}
	return "UNKNOWN"
}

// Order is a single-step trading instruction. Orders are transient: a
// strategy submits them during one bar, the settlement fills or rejects
// them, and nothing but the history remembers them afterwards.
type Order struct {
	Ticker string
	Size   float64 // signed quantity, nonzero
	Intent Intent
}

func (o Order) validate() error {
	if o.Ticker == "" {
		return fmt.Errorf("empty ticker: %w", ErrInvalidOrder)
	}
	if o.Size == 0 {
		return fmt.Errorf("zero size for %q: %w", o.Ticker, ErrInvalidOrder)
	}
	if math.IsNaN(o.Size) || math.IsInf(o.Size, 0) {
		return fmt.Errorf("non-finite size for %q: %w", o.Ticker, ErrInvalidOrder)
	}
	if o.Intent != Open && o.Intent != Close {
		return fmt.Errorf("unknown intent %d for %q: %w", o.Intent, o.Ticker, ErrInvalidOrder)
	}
	return nil
}
