package strategies

import (
	"context"

	"github.com/rustyeddy/barsim/engine"
)

// Noop does nothing. Useful for replaying a dataset through the accounting
// loop without trading.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnBar(ctx context.Context, step *engine.Context) error {
	_ = ctx
	_ = step
	return nil
}
