package strategies

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/barsim/engine"
)

// Params collects the knobs the built-in strategies understand. Each
// strategy reads the subset it cares about.
type Params struct {
	Ticker       string
	Size         float64 // fixed order size (open-once)
	CashFraction float64 // fraction of cash to commit per entry (sma-cross)
	FastField    string  // snapshot field names for the crossover pair
	SlowField    string
}

// ByName builds one of the built-in strategies.
func ByName(name string, p Params) (engine.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return Noop{}, nil

	case "open-once":
		if p.Ticker == "" {
			return nil, fmt.Errorf("strategies: open-once needs a ticker")
		}
		if p.Size == 0 {
			p.Size = 1
		}
		return &OpenOnce{Ticker: p.Ticker, Size: p.Size}, nil

	case "sma-cross", "smacross":
		if p.Ticker == "" {
			return nil, fmt.Errorf("strategies: sma-cross needs a ticker")
		}
		return NewSMACross(p.Ticker, p.FastField, p.SlowField, p.CashFraction), nil

	default:
		return nil, fmt.Errorf("strategies: unknown strategy %q (supported: noop, open-once, sma-cross)", name)
	}
}
