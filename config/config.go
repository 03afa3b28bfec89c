package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete simulation configuration
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Data     DataConfig     `json:"data" yaml:"data"`
}

// AccountConfig contains ledger construction parameters
type AccountConfig struct {
	StartCapital float64 `json:"start_capital" yaml:"start_capital"`
	FeeRate      float64 `json:"fee_rate" yaml:"fee_rate"`
	TaxRate      float64 `json:"tax_rate" yaml:"tax_rate"`
	LongOnly     bool    `json:"long_only" yaml:"long_only"`
}

// StrategyConfig contains strategy selection and parameters
type StrategyConfig struct {
	Name         string  `json:"name" yaml:"name"`
	Ticker       string  `json:"ticker" yaml:"ticker"`
	Size         float64 `json:"size,omitempty" yaml:"size,omitempty"`
	CashFraction float64 `json:"cash_fraction,omitempty" yaml:"cash_fraction,omitempty"`
	FastField    string  `json:"fast_field,omitempty" yaml:"fast_field,omitempty"`
	SlowField    string  `json:"slow_field,omitempty" yaml:"slow_field,omitempty"`
}

// EngineConfig contains loop policy parameters
type EngineConfig struct {
	FillAtNextOpen bool   `json:"fill_at_next_open" yaml:"fill_at_next_open"`
	CloseEnd       bool   `json:"close_end" yaml:"close_end"`
	Benchmark      string `json:"benchmark,omitempty" yaml:"benchmark,omitempty"`
}

// JournalConfig contains journaling parameters; an empty Type disables
// journaling.
type JournalConfig struct {
	Type       string `json:"type,omitempty" yaml:"type,omitempty"` // "", "csv" or "sqlite"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
}

// DataConfig points at the bar CSV and an optional replay window
type DataConfig struct {
	Path string `json:"path" yaml:"path"`
	From string `json:"from,omitempty" yaml:"from,omitempty"` // RFC3339
	To   string `json:"to,omitempty" yaml:"to,omitempty"`     // RFC3339
}

// Window parses the optional [from, to) bounds.
func (d DataConfig) Window() (from, to time.Time, err error) {
	if d.From != "" {
		from, err = time.Parse(time.RFC3339, d.From)
		if err != nil {
			return from, to, fmt.Errorf("bad data.from: %w", err)
		}
	}
	if d.To != "" {
		to, err = time.Parse(time.RFC3339, d.To)
		if err != nil {
			return from, to, fmt.Errorf("bad data.to: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, fmt.Errorf("data.from must be before data.to")
	}
	return from, to, nil
}

// LoadFromFile loads configuration from a file (JSON or YAML based on content)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.StartCapital <= 0 {
		return fmt.Errorf("account.start_capital must be positive")
	}
	if c.Account.FeeRate < 0 {
		return fmt.Errorf("account.fee_rate must be >= 0")
	}
	if c.Account.TaxRate < 0 || c.Account.TaxRate > 1 {
		return fmt.Errorf("account.tax_rate must be in [0,1]")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if c.Data.Path == "" {
		return fmt.Errorf("data.path is required")
	}
	if _, _, err := c.Data.Window(); err != nil {
		return err
	}
	switch c.Journal.Type {
	case "":
		// journaling disabled
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be '', 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			StartCapital: 100000,
			FeeRate:      0.001,
			TaxRate:      0,
			LongOnly:     true,
		},
		Strategy: StrategyConfig{
			Name:         "sma-cross",
			Ticker:       "SPY",
			CashFraction: 0.95,
			FastField:    "sma_50",
			SlowField:    "sma_200",
		},
		Engine: EngineConfig{},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./barsim.sqlite",
		},
		Data: DataConfig{
			Path: "./bars.csv",
		},
	}
}
