package strategies

import (
	"context"

	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/engine"
)

// OpenOnce submits a single OPEN on the first bar that prices its ticker,
// then holds. Handy as a buy-and-hold baseline and in tests.
type OpenOnce struct {
	Ticker string
	Size   float64

	done bool
}

func (s *OpenOnce) Name() string { return "open-once" }

func (s *OpenOnce) OnBar(ctx context.Context, step *engine.Context) error {
	_ = ctx
	if s.done {
		return nil
	}
	if _, ok := step.Current.Bar(s.Ticker); !ok {
		return nil
	}
	s.done = true
	return step.Account.Submit(broker.Order{
		Ticker: s.Ticker,
		Size:   s.Size,
		Intent: broker.Open,
	})
}
