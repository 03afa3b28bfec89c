package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalWritesRows(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(TradeRecord{
		RunID:      "run-1",
		TradeID:    "t1",
		Ticker:     "AAPL",
		Quantity:   10,
		EntryPrice: 100,
		ExitPrice:  110.5,
		OpenTime:   base,
		CloseTime:  base.AddDate(0, 0, 1),
		RealizedPL: 105,
		Fee:        2.105,
		Tax:        21,
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		RunID:     "run-1",
		Time:      base,
		Cash:      1000,
		Equity:    2105,
		LongValue: 1105,
	}))
	require.NoError(t, j.Close())

	trades := readAll(t, tradesPath)
	require.Len(t, trades, 2)
	assert.Equal(t, []string{"trade_id", "run_id", "ticker", "quantity", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "fee", "tax"}, trades[0])
	assert.Equal(t, []string{"t1", "run-1", "AAPL", "10", "100", "110.5", "2024-03-01T00:00:00Z", "2024-03-02T00:00:00Z", "105", "2.105", "21"}, trades[1])

	equity := readAll(t, equityPath)
	require.Len(t, equity, 2)
	assert.Equal(t, []string{"run-1", "2024-03-01T00:00:00Z", "1000", "2105", "1105", "0"}, equity[1])
}

func TestCSVJournalFlushesPerRecord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(filepath.Join(dir, "trades.csv"), filepath.Join(dir, "equity.csv"))
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.RecordEquity(EquitySnapshot{RunID: "run-1", Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}))

	// Visible before Close: crash-safe enough for a per-bar journal.
	rows := readAll(t, filepath.Join(dir, "equity.csv"))
	require.Len(t, rows, 2)
}
