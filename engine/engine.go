package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/internal/id"
	"github.com/rustyeddy/barsim/journal"
	"github.com/rustyeddy/barsim/market"
)

// State is the run lifecycle. Failed is reachable only from Running, on a
// structural data error or a strategy error.
type State int8

const (
	NotStarted State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Account is the slice of the ledger a strategy may touch: order submission
// plus read-only account state. The ledger itself stays with the engine, so
// single-writer discipline survives whatever the strategy does.
type Account interface {
	Submit(o broker.Order) error
	Cash() float64
	Equity() float64
	Position(ticker string) (broker.Position, bool)
	Positions() map[string]broker.Position
}

// Context is what a strategy sees for one step. Previous is nil on the first
// bar (genuinely absent, not an empty snapshot) and callers must branch on
// that.
type Context struct {
	Current      *market.Snapshot
	Now          time.Time
	Previous     *market.Snapshot
	PreviousTime time.Time // zero when Previous is nil

	Account Account
}

// Strategy produces orders for one bar. Its only sanctioned side effect is
// submitting orders through ctx.Account.
type Strategy interface {
	Name() string
	OnBar(ctx context.Context, step *Context) error
}

// Options tunes the loop without changing the core contract.
type Options struct {
	// FillAtNextOpen settles each step's queue at the NEXT bar's open
	// instead of the same bar's close, trading one bar of latency for
	// freedom from look-ahead bias. Orders still pending after the final
	// bar are dropped.
	FillAtNextOpen bool

	// CloseEnd liquidates every open position against the final snapshot
	// after the last bar. Off by default: positions left open stay open,
	// valued at the final mark.
	CloseEnd bool

	// Journal, when set, receives one equity snapshot per step and one
	// trade record per realized close.
	Journal journal.Journal

	// RunID tags journal rows; a ULID is generated when empty.
	RunID string

	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Engine drives simulated time forward one bar at a time and wires the
// strategy to the ledger. Strictly sequential: no look-ahead, no
// concurrency, exactly one writer of account state.
type Engine struct {
	Broker   *broker.Broker
	Strategy Strategy
	Options  Options

	state State
	runID string
	log   *zap.Logger
}

func New(b *broker.Broker, s Strategy, opts Options) *Engine {
	return &Engine{Broker: b, Strategy: s, Options: opts, state: NotStarted}
}

func (e *Engine) State() State { return e.state }

// RunID is the identifier journal rows were tagged with; empty before Run.
func (e *Engine) RunID() string { return e.runID }

// Run replays the dataset start to finish. On return the engine is either
// Completed with a full history on the broker, or Failed with however much
// history was produced before the fatal error. A given engine runs once.
func (e *Engine) Run(ctx context.Context, data *market.DataSet) error {
	if e.Broker == nil {
		return fmt.Errorf("engine: broker is required")
	}
	if e.Strategy == nil {
		return fmt.Errorf("engine: strategy is required")
	}
	if e.state != NotStarted {
		return fmt.Errorf("engine: run already started (state %s)", e.state)
	}

	e.log = e.Options.Logger
	if e.log == nil {
		e.log = zap.NewNop()
	}
	e.runID = e.Options.RunID
	if e.runID == "" {
		e.runID = id.New()
	}

	// Failed is only ever entered from Running; a structurally empty dataset
	// is a failed run, not a refused one.
	e.state = Running
	if data == nil || data.Len() == 0 {
		e.state = Failed
		return fmt.Errorf("engine: empty dataset: %w", market.ErrBadData)
	}

	e.log.Info("run starting",
		zap.String("run_id", e.runID),
		zap.String("strategy", e.Strategy.Name()),
		zap.Int("steps", data.Len()),
		zap.Time("start", data.Start()),
		zap.Time("end", data.End()))

	var prev *market.Snapshot
	for i := 0; i < data.Len(); i++ {
		snap := data.At(i)

		var execs []broker.Execution
		if e.Options.FillAtNextOpen {
			// Yesterday's queue fills at today's open, before the strategy
			// sees today's bar.
			execs = e.Broker.Settle(snap, market.FieldOpen)
		}

		step := &Context{
			Current: snap,
			Now:     snap.Time(),
			Account: e.Broker,
		}
		if prev != nil {
			step.Previous = prev
			step.PreviousTime = prev.Time()
		}

		closedBefore := len(e.Broker.ClosedPositions())

		if err := e.Strategy.OnBar(ctx, step); err != nil {
			e.state = Failed
			return fmt.Errorf("engine: strategy %q at %s: %w",
				e.Strategy.Name(), snap.Time().Format(time.RFC3339), err)
		}

		if !e.Options.FillAtNextOpen {
			execs = e.Broker.Settle(snap, market.FieldClose)
		}
		e.Broker.MarkToMarket(snap)
		rec := e.Broker.RecordStep(snap.Time(), execs)

		e.logStep(rec)
		if err := e.journalStep(rec, closedBefore); err != nil {
			e.state = Failed
			return fmt.Errorf("engine: journal at %s: %w", snap.Time().Format(time.RFC3339), err)
		}

		prev = snap
	}

	if e.Options.FillAtNextOpen {
		// Orders from the final bar have no next open to fill at. They must
		// go before any end-of-run liquidation, or they would settle at the
		// final close alongside it.
		if n := e.Broker.DropPending(); n > 0 {
			e.log.Debug("dropped pending orders at end of run", zap.Int("count", n))
		}
	}

	if e.Options.CloseEnd {
		if err := e.closeEnd(data.At(data.Len() - 1)); err != nil {
			e.state = Failed
			return err
		}
	}

	e.state = Completed
	e.log.Info("run completed",
		zap.String("run_id", e.runID),
		zap.Float64("cash", e.Broker.Cash()),
		zap.Float64("equity", e.Broker.Equity()),
		zap.Int("open_positions", len(e.Broker.Positions())))
	return nil
}

// closeEnd liquidates whatever is still open against the final snapshot.
// The liquidation record shares the final bar's timestamp.
func (e *Engine) closeEnd(last *market.Snapshot) error {
	positions := e.Broker.Positions()
	if len(positions) == 0 {
		return nil
	}

	for _, ticker := range sortedTickers(positions) {
		pos := positions[ticker]
		err := e.Broker.Submit(broker.Order{
			Ticker: ticker,
			Size:   -pos.Quantity,
			Intent: broker.Close,
		})
		if err != nil {
			return fmt.Errorf("engine: close-end %q: %w", ticker, err)
		}
	}

	closedBefore := len(e.Broker.ClosedPositions())
	execs := e.Broker.Settle(last, market.FieldClose)
	e.Broker.MarkToMarket(last)
	rec := e.Broker.RecordStep(last.Time(), execs)

	e.logStep(rec)
	if err := e.journalStep(rec, closedBefore); err != nil {
		return fmt.Errorf("engine: journal close-end: %w", err)
	}
	return nil
}

func (e *Engine) logStep(rec broker.Record) {
	fills, rejects := 0, 0
	for _, x := range rec.Executions {
		if x.Filled {
			fills++
		} else {
			rejects++
			e.log.Warn("order rejected",
				zap.Time("ts", rec.Time),
				zap.String("ticker", x.Order.Ticker),
				zap.String("intent", x.Order.Intent.String()),
				zap.Float64("size", x.Order.Size),
				zap.Error(x.Err))
		}
	}
	e.log.Debug("step settled",
		zap.Time("ts", rec.Time),
		zap.Float64("cash", rec.Cash),
		zap.Float64("equity", rec.Equity),
		zap.Int("fills", fills),
		zap.Int("rejections", rejects),
		zap.Int("positions", len(rec.Positions)))
}

func (e *Engine) journalStep(rec broker.Record, closedBefore int) error {
	j := e.Options.Journal
	if j == nil {
		return nil
	}

	err := j.RecordEquity(journal.EquitySnapshot{
		RunID:      e.runID,
		Time:       rec.Time,
		Cash:       rec.Cash,
		Equity:     rec.Equity,
		LongValue:  rec.LongValue,
		ShortValue: rec.ShortValue,
	})
	if err != nil {
		return err
	}

	closed := e.Broker.ClosedPositions()
	for _, cp := range closed[closedBefore:] {
		err := j.RecordTrade(journal.TradeRecord{
			RunID:      e.runID,
			TradeID:    id.New(),
			Ticker:     cp.Ticker,
			Quantity:   cp.Quantity,
			EntryPrice: cp.PurchasePrice,
			ExitPrice:  cp.SellingPrice,
			OpenTime:   cp.OpenTime,
			CloseTime:  cp.CloseTime,
			RealizedPL: cp.RealizedPL,
			Fee:        cp.Fee,
			Tax:        cp.Tax,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func sortedTickers(positions map[string]broker.Position) []string {
	tickers := make([]string, 0, len(positions))
	for t := range positions {
		tickers = append(tickers, t)
	}
	// Deterministic liquidation order.
	sort.Strings(tickers)
	return tickers
}
