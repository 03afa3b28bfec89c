package broker

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/barsim/market"
)

// Config holds the ledger's construction parameters.
type Config struct {
	StartCapital float64 // initial cash, > 0
	FeeRate      float64 // fraction of gross notional, >= 0, charged on both legs
	TaxRate      float64 // fraction of realized gains, in [0,1], never applied to losses
	LongOnly     bool    // reject OPEN orders that would establish a short
	Benchmark    string  // optional ticker whose close is copied into each record
}

func (c Config) validate() error {
	if c.StartCapital <= 0 {
		return fmt.Errorf("start capital %v must be positive: %w", c.StartCapital, ErrConfiguration)
	}
	if c.FeeRate < 0 || math.IsNaN(c.FeeRate) {
		return fmt.Errorf("fee rate %v must be >= 0: %w", c.FeeRate, ErrConfiguration)
	}
	if c.TaxRate < 0 || c.TaxRate > 1 || math.IsNaN(c.TaxRate) {
		return fmt.Errorf("tax rate %v must be in [0,1]: %w", c.TaxRate, ErrConfiguration)
	}
	return nil
}

// Broker owns the only mutable account state of a run: cash, the positions
// map, the pending-order queue and the recorded history. It has exactly one
// writer (the engine's call path), so there is deliberately no locking.
type Broker struct {
	cfg Config

	cash      float64
	positions map[string]*Position
	pending   []Order
	history   []Record
	closed    []ClosedPosition

	// marks caches the last seen close per held ticker so positions keep a
	// valuation on bars their ticker skips.
	marks map[string]float64

	equity     float64
	longValue  float64
	shortValue float64
	benchmark  float64
}

func New(cfg Config) (*Broker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Broker{
		cfg:       cfg,
		cash:      cfg.StartCapital,
		positions: make(map[string]*Position),
		marks:     make(map[string]float64),
		equity:    cfg.StartCapital,
	}, nil
}

// Submit appends an order to the pending queue. It touches neither cash nor
// positions; malformed orders are refused here, before they can reach a
// settlement.
func (b *Broker) Submit(o Order) error {
	if err := o.validate(); err != nil {
		return err
	}
	b.pending = append(b.pending, o)
	return nil
}

// Settle executes the pending queue against the snapshot, strictly in
// submission order, pricing fills from the given field. Submission order is
// an observable policy: earlier orders spend first, so when cash runs out it
// is the later submissions that get rejected. Rejections are non-fatal and
// come back as unfilled executions. The queue is drained unconditionally:
// nothing carries over to the next step.
func (b *Broker) Settle(snap *market.Snapshot, f market.PriceField) []Execution {
	if len(b.pending) == 0 {
		return nil
	}
	execs := make([]Execution, 0, len(b.pending))
	for _, o := range b.pending {
		execs = append(execs, b.execute(o, snap, f))
	}
	b.pending = b.pending[:0]
	return execs
}

func (b *Broker) execute(o Order, snap *market.Snapshot, f market.PriceField) Execution {
	price, ok := snap.Price(o.Ticker, f)
	if !ok {
		return b.reject(o, snap.Time(), fmt.Errorf("%q not in snapshot: %w", o.Ticker, ErrUnknownTicker))
	}
	if o.Intent == Close {
		return b.executeClose(o, snap.Time(), price)
	}
	return b.executeOpen(o, snap.Time(), price)
}

func (b *Broker) reject(o Order, ts time.Time, err error) Execution {
	return Execution{Order: o, Time: ts, Err: err}
}

func (b *Broker) executeOpen(o Order, ts time.Time, price float64) Execution {
	pos := b.positions[o.Ticker]

	if b.cfg.LongOnly && o.Size < 0 {
		return b.reject(o, ts, fmt.Errorf("short OPEN on long-only account: %w", ErrInvalidOrder))
	}
	if pos != nil && (pos.Quantity > 0) != (o.Size > 0) {
		// A flip must be an explicit CLOSE then OPEN; blending basis across
		// sides is undefined.
		return b.reject(o, ts, fmt.Errorf("OPEN against %s position in %q: %w",
			sideName(pos.Quantity), o.Ticker, ErrInvalidOrder))
	}

	gross := price * math.Abs(o.Size)
	fee := gross * b.cfg.FeeRate
	required := gross + fee
	if b.cash < required {
		return b.reject(o, ts, fmt.Errorf("need %.2f, have %.2f: %w", required, b.cash, ErrInsufficientFunds))
	}

	b.cash -= required
	if pos == nil {
		b.positions[o.Ticker] = &Position{
			Ticker:   o.Ticker,
			Quantity: o.Size,
			Basis:    price,
			OpenTime: ts,
		}
	} else {
		pos.Basis = (pos.Quantity*pos.Basis + o.Size*price) / (pos.Quantity + o.Size)
		pos.Quantity += o.Size
	}
	b.marks[o.Ticker] = price

	return Execution{
		Order:    o,
		Time:     ts,
		Filled:   true,
		Quantity: o.Size,
		Price:    price,
		Fee:      fee,
	}
}

func (b *Broker) executeClose(o Order, ts time.Time, price float64) Execution {
	pos := b.positions[o.Ticker]
	if pos == nil {
		return b.reject(o, ts, fmt.Errorf("no open position in %q: %w", o.Ticker, ErrInvalidOrder))
	}

	// The fill is capped at the position's magnitude and always signed
	// opposite to it; a close can flatten but never flip, and excess size is
	// dropped, not queued.
	magnitude := math.Min(math.Abs(o.Size), math.Abs(pos.Quantity))
	fill := -float64(pos.Side()) * magnitude

	gross := price * magnitude
	fee := gross * b.cfg.FeeRate
	realized := (price - pos.Basis) * -fill

	var tax float64
	if realized > 0 {
		tax = realized * b.cfg.TaxRate
	}

	b.cash += gross - fee - tax
	b.marks[o.Ticker] = price

	b.closed = append(b.closed, ClosedPosition{
		Ticker:        o.Ticker,
		Quantity:      -fill,
		PurchasePrice: pos.Basis,
		SellingPrice:  price,
		OpenTime:      pos.OpenTime,
		CloseTime:     ts,
		RealizedPL:    realized,
		Fee:           fee,
		Tax:           tax,
	})

	pos.Quantity += fill
	if pos.Quantity == 0 {
		delete(b.positions, o.Ticker)
	}

	return Execution{
		Order:      o,
		Time:       ts,
		Filled:     true,
		Quantity:   fill,
		Price:      price,
		Fee:        fee,
		Tax:        tax,
		RealizedPL: realized,
	}
}

// MarkToMarket revalues open inventory at the snapshot's closing prices and
// returns the resulting equity (cash + long value + short value). Positions
// whose ticker is missing from the snapshot keep their last known mark.
// Cash and positions are never touched here.
func (b *Broker) MarkToMarket(snap *market.Snapshot) float64 {
	var long, short float64
	for ticker, pos := range b.positions {
		if px, ok := snap.Price(ticker, market.FieldClose); ok {
			b.marks[ticker] = px
		}
		v := pos.Quantity * b.marks[ticker]
		if v >= 0 {
			long += v
		} else {
			short += v
		}
	}
	b.longValue, b.shortValue = long, short
	b.equity = b.cash + long + short

	if b.cfg.Benchmark != "" {
		if px, ok := snap.Price(b.cfg.Benchmark, market.FieldClose); ok {
			b.benchmark = px
		}
	}
	return b.equity
}

// RecordStep appends one immutable history record for the step that just
// settled and marked, and returns it. Called by the engine once per
// timestamp.
func (b *Broker) RecordStep(ts time.Time, execs []Execution) Record {
	positions := make(map[string]Position, len(b.positions))
	for ticker, pos := range b.positions {
		positions[ticker] = *pos
	}
	rec := Record{
		Time:       ts,
		Cash:       b.cash,
		Equity:     b.equity,
		LongValue:  b.longValue,
		ShortValue: b.shortValue,
		Benchmark:  b.benchmark,
		Positions:  positions,
		Executions: execs,
	}
	b.history = append(b.history, rec)
	return rec
}

func (b *Broker) Cash() float64   { return b.cash }
func (b *Broker) Equity() float64 { return b.equity }

// Pending is the number of queued, unsettled orders.
func (b *Broker) Pending() int { return len(b.pending) }

// DropPending discards queued orders without executing them, returning how
// many were dropped. Used when a run ends with orders still waiting for a
// fill that will never come.
func (b *Broker) DropPending() int {
	n := len(b.pending)
	b.pending = b.pending[:0]
	return n
}

// Position returns a copy of the held position for a ticker, if any.
func (b *Broker) Position(ticker string) (Position, bool) {
	pos, ok := b.positions[ticker]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns a copy of the full position map.
func (b *Broker) Positions() map[string]Position {
	out := make(map[string]Position, len(b.positions))
	for ticker, pos := range b.positions {
		out[ticker] = *pos
	}
	return out
}

// History is the append-only sequence of per-step records.
func (b *Broker) History() []Record { return b.history }

// ClosedPositions lists realized round trips in close order.
func (b *Broker) ClosedPositions() []ClosedPosition { return b.closed }

// BenchmarkTicker reports the configured benchmark, if any.
func (b *Broker) BenchmarkTicker() string { return b.cfg.Benchmark }

func sideName(qty float64) string {
	if qty < 0 {
		return "short"
	}
	return "long"
}
