package market

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSVNoHeader(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, ""+
		"2024-03-01T00:00:00Z,AAPL,100,101\n"+
		"2024-03-02T00:00:00Z,AAPL,101,103\n")

	ds, err := LoadCSV(path, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	b, ok := ds.At(1).Bar("AAPL")
	require.True(t, ok)
	assert.Equal(t, 101.0, b.Open)
	assert.Equal(t, 103.0, b.Close)
	assert.Nil(t, b.Fields)
}

func TestLoadCSVWithExtraColumns(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, ""+
		"time,ticker,open,close,sma_50,sma_200\n"+
		"2024-03-01T00:00:00Z,SPY,500,501,nan,nan\n"+
		"2024-03-02T00:00:00Z,SPY,501,502,499.5,\n"+
		"2024-03-03T00:00:00Z,SPY,502,503,500.1,480.2\n")

	ds, err := LoadCSV(path, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	// Warmup row: nan cells are simply absent.
	b, _ := ds.At(0).Bar("SPY")
	_, ok := b.Field("sma_50")
	assert.False(t, ok)

	// Partially warm: one field present, the empty cell absent.
	b, _ = ds.At(1).Bar("SPY")
	v, ok := b.Field("sma_50")
	require.True(t, ok)
	assert.Equal(t, 499.5, v)
	_, ok = b.Field("sma_200")
	assert.False(t, ok)

	b, _ = ds.At(2).Bar("SPY")
	v, ok = b.Field("sma_200")
	require.True(t, ok)
	assert.Equal(t, 480.2, v)
}

func TestLoadCSVWindowFilter(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, ""+
		"2024-03-01T00:00:00Z,AAPL,100,101\n"+
		"2024-03-02T00:00:00Z,AAPL,101,102\n"+
		"2024-03-03T00:00:00Z,AAPL,102,103\n"+
		"2024-03-04T00:00:00Z,AAPL,103,104\n")

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	// [from, to): the 4th is excluded.
	ds, err := LoadCSV(path, from, to)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, from, ds.Start())
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), ds.End())
}

func TestLoadCSVBadInput(t *testing.T) {
	t.Parallel()

	_, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), time.Time{}, time.Time{})
	require.Error(t, err)

	path := writeCSV(t, "2024-03-01T00:00:00Z,AAPL,not-a-number,101\n")
	_, err = LoadCSV(path, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrBadData)

	path = writeCSV(t, "yesterday,AAPL,100,101\n")
	_, err = LoadCSV(path, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrBadData)

	// Filtering everything out leaves an empty dataset.
	path = writeCSV(t, "2024-03-01T00:00:00Z,AAPL,100,101\n")
	_, err = LoadCSV(path, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	assert.ErrorIs(t, err, ErrBadData)
}
