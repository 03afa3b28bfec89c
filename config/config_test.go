package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100000.0, cfg.Account.StartCapital)
	assert.True(t, cfg.Account.LongOnly)
	assert.Equal(t, "sma-cross", cfg.Strategy.Name)
	assert.Equal(t, "sqlite", cfg.Journal.Type)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capital", func(c *Config) { c.Account.StartCapital = 0 }},
		{"negative fee", func(c *Config) { c.Account.FeeRate = -0.1 }},
		{"tax above one", func(c *Config) { c.Account.TaxRate = 1.2 }},
		{"no strategy", func(c *Config) { c.Strategy.Name = "" }},
		{"no data path", func(c *Config) { c.Data.Path = "" }},
		{"unknown journal", func(c *Config) { c.Journal.Type = "postgres" }},
		{"csv journal missing files", func(c *Config) { c.Journal = JournalConfig{Type: "csv"} }},
		{"sqlite journal missing path", func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }},
		{"inverted window", func(c *Config) {
			c.Data.From = "2024-06-01T00:00:00Z"
			c.Data.To = "2024-01-01T00:00:00Z"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWindowParsing(t *testing.T) {
	t.Parallel()

	from, to, err := DataConfig{}.Window()
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.True(t, to.IsZero())

	from, to, err = DataConfig{From: "2024-01-01T00:00:00Z", To: "2024-06-01T00:00:00Z"}.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), to)

	_, _, err = DataConfig{From: "yesterday"}.Window()
	require.Error(t, err)
}

func TestYAMLRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Engine.Benchmark = "SPY"
	cfg.Engine.CloseEnd = true
	cfg.Data.From = "2024-01-01T00:00:00Z"

	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Journal = JournalConfig{Type: "csv", TradesFile: "t.csv", EquityFile: "e.csv"}

	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadHandRolledYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
account:
  start_capital: 50000
  fee_rate: 0.002
  long_only: true
strategy:
  name: open-once
  ticker: AAPL
  size: 10
data:
  path: ./bars.csv
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, cfg.Account.StartCapital)
	assert.Equal(t, "open-once", cfg.Strategy.Name)
	assert.Equal(t, 10.0, cfg.Strategy.Size)
	assert.Empty(t, cfg.Journal.Type)
}

func TestLoadInvalidFile(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	// Parses as YAML but fails validation.
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  start_capital: -5\n"), 0o644))
	_, err = LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
