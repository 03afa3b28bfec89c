package strategies

import (
	"context"
	"math"

	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/engine"
)

// SMACross trades a single ticker on a moving-average crossover:
//   - golden cross (fast rises above slow) opens a long
//   - death cross (fast falls below slow) flattens it
//
// The averages arrive as precomputed snapshot fields (the data loader
// carries indicator columns through Bar.Fields); this strategy never
// computes them itself. Bars where either field is still warming up are
// skipped.
type SMACross struct {
	Ticker       string
	FastField    string
	SlowField    string
	CashFraction float64 // fraction of current cash spent per entry
}

func NewSMACross(ticker, fastField, slowField string, cashFraction float64) *SMACross {
	if fastField == "" {
		fastField = "sma_50"
	}
	if slowField == "" {
		slowField = "sma_200"
	}
	if cashFraction <= 0 || cashFraction > 1 {
		cashFraction = 0.95
	}
	return &SMACross{
		Ticker:       ticker,
		FastField:    fastField,
		SlowField:    slowField,
		CashFraction: cashFraction,
	}
}

func (s *SMACross) Name() string { return "sma-cross" }

func (s *SMACross) OnBar(ctx context.Context, step *engine.Context) error {
	_ = ctx

	// A cross needs two consecutive readings.
	if step.Previous == nil {
		return nil
	}

	cur, ok := step.Current.Bar(s.Ticker)
	if !ok {
		return nil
	}
	prev, ok := step.Previous.Bar(s.Ticker)
	if !ok {
		return nil
	}

	curFast, ok1 := cur.Field(s.FastField)
	curSlow, ok2 := cur.Field(s.SlowField)
	prevFast, ok3 := prev.Field(s.FastField)
	prevSlow, ok4 := prev.Field(s.SlowField)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil
	}

	goldenCross := prevFast <= prevSlow && curFast > curSlow
	deathCross := prevFast >= prevSlow && curFast < curSlow

	pos, held := step.Account.Position(s.Ticker)

	switch {
	case goldenCross && !held:
		size := math.Floor(step.Account.Cash() * s.CashFraction / cur.Close)
		if size < 1 {
			return nil
		}
		return step.Account.Submit(broker.Order{
			Ticker: s.Ticker,
			Size:   size,
			Intent: broker.Open,
		})

	case deathCross && held:
		return step.Account.Submit(broker.Order{
			Ticker: s.Ticker,
			Size:   -pos.Quantity,
			Intent: broker.Close,
		})
	}

	return nil
}
