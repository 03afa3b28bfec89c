package strategies

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/engine"
	"github.com/rustyeddy/barsim/market"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func smaBar(ticker string, close, fast, slow float64) market.Bar {
	return market.Bar{
		Ticker: ticker,
		Open:   close,
		Close:  close,
		Fields: map[string]float64{"sma_50": fast, "sma_200": slow},
	}
}

// runBars drives a strategy through the full engine loop over the given
// rows, returning the broker for inspection.
func runBars(t *testing.T, strat engine.Strategy, capital float64, rows []market.Row) *broker.Broker {
	t.Helper()

	b, err := broker.New(broker.Config{StartCapital: capital})
	require.NoError(t, err)

	data, err := market.NewDataSet(rows)
	require.NoError(t, err)

	eng := engine.New(b, strat, engine.Options{})
	require.NoError(t, eng.Run(context.Background(), data))
	return b
}

func TestByName(t *testing.T) {
	t.Parallel()

	s, err := ByName("noop", Params{})
	require.NoError(t, err)
	assert.Equal(t, "noop", s.Name())

	s, err = ByName(" Open-Once ", Params{Ticker: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "open-once", s.Name())
	assert.Equal(t, 1.0, s.(*OpenOnce).Size) // defaulted

	s, err = ByName("sma-cross", Params{Ticker: "SPY"})
	require.NoError(t, err)
	sc := s.(*SMACross)
	assert.Equal(t, "sma_50", sc.FastField)
	assert.Equal(t, "sma_200", sc.SlowField)
	assert.Equal(t, 0.95, sc.CashFraction)

	_, err = ByName("open-once", Params{})
	require.Error(t, err)

	_, err = ByName("martingale", Params{Ticker: "SPY"})
	require.Error(t, err)
}

func TestNoopNeverTrades(t *testing.T) {
	t.Parallel()

	b := runBars(t, Noop{}, 100000, []market.Row{
		{Time: day(0), Bar: market.Bar{Ticker: "A", Open: 100, Close: 100}},
		{Time: day(1), Bar: market.Bar{Ticker: "A", Open: 100, Close: 110}},
	})
	assert.Equal(t, 100000.0, b.Cash())
	assert.Empty(t, b.Positions())
}

func TestOpenOnceWaitsForItsTicker(t *testing.T) {
	t.Parallel()

	strat := &OpenOnce{Ticker: "B", Size: 5}
	b := runBars(t, strat, 100000, []market.Row{
		{Time: day(0), Bar: market.Bar{Ticker: "A", Open: 100, Close: 100}},
		{Time: day(1), Bar: market.Bar{Ticker: "B", Open: 40, Close: 42}},
		{Time: day(2), Bar: market.Bar{Ticker: "B", Open: 42, Close: 44}},
	})

	pos, ok := b.Position("B")
	require.True(t, ok)
	assert.Equal(t, 5.0, pos.Quantity)
	assert.Equal(t, 42.0, pos.Basis) // first bar pricing B, at its close

	// One fill only; the later B bar does not re-enter.
	fills := 0
	for _, rec := range b.History() {
		for _, x := range rec.Executions {
			if x.Filled {
				fills++
			}
		}
	}
	assert.Equal(t, 1, fills)
}

func TestSMACrossGoldenAndDeathCross(t *testing.T) {
	t.Parallel()

	strat := NewSMACross("SPY", "", "", 0.5)
	b := runBars(t, strat, 100000, []market.Row{
		// fast below slow: nothing to do
		{Time: day(0), Bar: smaBar("SPY", 100, 95, 98)},
		// golden cross: fast 99 > slow 98
		{Time: day(1), Bar: smaBar("SPY", 100, 99, 98)},
		// still above: hold
		{Time: day(2), Bar: smaBar("SPY", 105, 101, 98)},
		// death cross: fast 97 < slow 98
		{Time: day(3), Bar: smaBar("SPY", 102, 97, 98)},
	})

	closed := b.ClosedPositions()
	require.Len(t, closed, 1)
	cp := closed[0]
	// floor(100000 * 0.5 / 100) = 500 shares
	assert.Equal(t, 500.0, cp.Quantity)
	assert.Equal(t, 100.0, cp.PurchasePrice)
	assert.Equal(t, 102.0, cp.SellingPrice)
	assert.InDelta(t, 500*2.0, cp.RealizedPL, 1e-9)
	assert.Empty(t, b.Positions())
}

func TestSMACrossSkipsWarmupBars(t *testing.T) {
	t.Parallel()

	warm := smaBar("SPY", 100, 99, 98)
	cold := market.Bar{Ticker: "SPY", Open: 100, Close: 100} // no indicator fields

	b := runBars(t, NewSMACross("SPY", "", "", 0.5), 100000, []market.Row{
		{Time: day(0), Bar: cold},
		{Time: day(1), Bar: warm}, // previous bar lacks fields: skip
		{Time: day(2), Bar: warm}, // no cross (fast already above)... still flat
	})
	assert.Empty(t, b.Positions())
	assert.Equal(t, 100000.0, b.Cash())
}

func TestSMACrossReentersAfterExit(t *testing.T) {
	t.Parallel()

	b := runBars(t, NewSMACross("SPY", "", "", 0.5), 100000, []market.Row{
		{Time: day(0), Bar: smaBar("SPY", 100, 95, 98)},
		{Time: day(1), Bar: smaBar("SPY", 100, 99, 98)}, // enter
		{Time: day(2), Bar: smaBar("SPY", 100, 97, 98)}, // exit
		{Time: day(3), Bar: smaBar("SPY", 100, 99, 98)}, // enter again
	})

	assert.Len(t, b.ClosedPositions(), 1)
	pos, ok := b.Position("SPY")
	require.True(t, ok)
	assert.Greater(t, pos.Quantity, 0.0)
}
