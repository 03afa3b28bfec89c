package cli

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/barsim/analyzer"
	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/config"
	"github.com/rustyeddy/barsim/engine"
	"github.com/rustyeddy/barsim/journal"
	"github.com/rustyeddy/barsim/market"
	"github.com/rustyeddy/barsim/strategies"
)

func newRunCmd(ro *RootOptions) *cobra.Command {
	var (
		dataPath     string
		strategyName string
		ticker       string
		size         float64
		cashFraction float64
		fastField    string
		slowField    string

		capital  float64
		feeRate  float64
		taxRate  float64
		longOnly bool

		benchmark string
		nextOpen  bool
		closeEnd  bool
		fromStr   string
		toStr     string
		barSize   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a bar CSV through a strategy and report the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if ro.ConfigPath != "" {
				loaded, err := config.LoadFromFile(ro.ConfigPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			// Explicit flags override whatever the config said.
			flagOverrides(cmd, cfg, flagValues{
				dataPath: dataPath, strategyName: strategyName, ticker: ticker,
				size: size, cashFraction: cashFraction,
				fastField: fastField, slowField: slowField,
				capital: capital, feeRate: feeRate, taxRate: taxRate, longOnly: longOnly,
				benchmark: benchmark, nextOpen: nextOpen, closeEnd: closeEnd,
				fromStr: fromStr, toStr: toStr,
			})

			if err := cfg.Validate(); err != nil {
				return err
			}
			from, to, err := cfg.Data.Window()
			if err != nil {
				return err
			}

			log, err := newLogger(ro.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			// ---------------------------
			// WIRING
			// ---------------------------
			ctx := context.Background()

			data, err := market.LoadCSV(cfg.Data.Path, from, to)
			if err != nil {
				return err
			}

			b, err := broker.New(broker.Config{
				StartCapital: cfg.Account.StartCapital,
				FeeRate:      cfg.Account.FeeRate,
				TaxRate:      cfg.Account.TaxRate,
				LongOnly:     cfg.Account.LongOnly,
				Benchmark:    cfg.Engine.Benchmark,
			})
			if err != nil {
				return err
			}

			strat, err := strategies.ByName(cfg.Strategy.Name, strategies.Params{
				Ticker:       cfg.Strategy.Ticker,
				Size:         cfg.Strategy.Size,
				CashFraction: cfg.Strategy.CashFraction,
				FastField:    cfg.Strategy.FastField,
				SlowField:    cfg.Strategy.SlowField,
			})
			if err != nil {
				return err
			}

			j, err := openJournal(cfg.Journal, ro.DBPath)
			if err != nil {
				return err
			}
			if j != nil {
				defer j.Close()
			}

			eng := engine.New(b, strat, engine.Options{
				FillAtNextOpen: cfg.Engine.FillAtNextOpen,
				CloseEnd:       cfg.Engine.CloseEnd,
				Journal:        j,
				Logger:         log,
			})

			if err := eng.Run(ctx, data); err != nil {
				return err
			}

			printResult(eng, b, data)
			printMetrics(b, barSize)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "Bar CSV: time,ticker,open,close[,extra...]")
	cmd.Flags().StringVar(&strategyName, "strategy", "", "Strategy: noop|open-once|sma-cross")
	cmd.Flags().StringVar(&ticker, "ticker", "", "Ticker the strategy trades")
	cmd.Flags().Float64Var(&size, "size", 0, "Fixed order size (open-once)")
	cmd.Flags().Float64Var(&cashFraction, "cash-fraction", 0, "Fraction of cash per entry (sma-cross)")
	cmd.Flags().StringVar(&fastField, "fast-field", "", "Fast moving-average field name")
	cmd.Flags().StringVar(&slowField, "slow-field", "", "Slow moving-average field name")

	cmd.Flags().Float64Var(&capital, "capital", 0, "Starting cash")
	cmd.Flags().Float64Var(&feeRate, "fee", 0, "Fee rate (fraction of notional, both legs)")
	cmd.Flags().Float64Var(&taxRate, "tax", 0, "Tax rate on realized gains, in [0,1]")
	cmd.Flags().BoolVar(&longOnly, "long-only", false, "Reject short-establishing opens")

	cmd.Flags().StringVar(&benchmark, "benchmark", "", "Benchmark ticker recorded alongside equity")
	cmd.Flags().BoolVar(&nextOpen, "next-open", false, "Fill orders at the next bar's open instead of the same bar's close")
	cmd.Flags().BoolVar(&closeEnd, "close-end", false, "Liquidate open positions at the final bar")
	cmd.Flags().StringVar(&fromStr, "from", "", "Replay window start (RFC3339)")
	cmd.Flags().StringVar(&toStr, "to", "", "Replay window end, exclusive (RFC3339)")
	cmd.Flags().StringVar(&barSize, "bar-size", "1D", "Bar size for annualized metrics (e.g. 1D, 4H, 5T)")

	return cmd
}

type flagValues struct {
	dataPath, strategyName, ticker string
	size, cashFraction             float64
	fastField, slowField           string
	capital, feeRate, taxRate      float64
	longOnly, nextOpen, closeEnd   bool
	benchmark, fromStr, toStr      string
}

func flagOverrides(cmd *cobra.Command, cfg *config.Config, v flagValues) {
	set := cmd.Flags().Changed

	if set("data") {
		cfg.Data.Path = v.dataPath
	}
	if set("from") {
		cfg.Data.From = v.fromStr
	}
	if set("to") {
		cfg.Data.To = v.toStr
	}
	if set("strategy") {
		cfg.Strategy.Name = v.strategyName
	}
	if set("ticker") {
		cfg.Strategy.Ticker = v.ticker
	}
	if set("size") {
		cfg.Strategy.Size = v.size
	}
	if set("cash-fraction") {
		cfg.Strategy.CashFraction = v.cashFraction
	}
	if set("fast-field") {
		cfg.Strategy.FastField = v.fastField
	}
	if set("slow-field") {
		cfg.Strategy.SlowField = v.slowField
	}
	if set("capital") {
		cfg.Account.StartCapital = v.capital
	}
	if set("fee") {
		cfg.Account.FeeRate = v.feeRate
	}
	if set("tax") {
		cfg.Account.TaxRate = v.taxRate
	}
	if set("long-only") {
		cfg.Account.LongOnly = v.longOnly
	}
	if set("benchmark") {
		cfg.Engine.Benchmark = v.benchmark
	}
	if set("next-open") {
		cfg.Engine.FillAtNextOpen = v.nextOpen
	}
	if set("close-end") {
		cfg.Engine.CloseEnd = v.closeEnd
	}
}

func openJournal(jc config.JournalConfig, dbFlag string) (journal.Journal, error) {
	switch jc.Type {
	case "":
		return nil, nil
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.EquityFile)
	case "sqlite":
		path := jc.DBPath
		if path == "" {
			path = dbFlag
		}
		return journal.NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown journal type %q", jc.Type)
	}
}

func printResult(eng *engine.Engine, b *broker.Broker, data *market.DataSet) {
	history := b.History()

	fills, rejects := 0, 0
	for _, rec := range history {
		for _, x := range rec.Executions {
			if x.Filled {
				fills++
			} else {
				rejects++
			}
		}
	}

	start := history[0].Equity
	end := b.Equity()

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Run", "Period", "Steps", "Fills", "Rejections", "Trades", "End Cash", "End Equity", "Return")
	table.Append(
		eng.RunID(),
		fmt.Sprintf("%s → %s",
			data.Start().Format("2006-01-02"),
			data.End().Format("2006-01-02")),
		fmt.Sprintf("%d", data.Len()),
		fmt.Sprintf("%d", fills),
		fmt.Sprintf("%d", rejects),
		fmt.Sprintf("%d", len(b.ClosedPositions())),
		fmt.Sprintf("%.2f", b.Cash()),
		fmt.Sprintf("%.2f", end),
		fmt.Sprintf("%+.2f%%", (end/start-1)*100),
	)
	table.Render()
}

func printMetrics(b *broker.Broker, barSize string) {
	a, err := analyzer.New(b, analyzer.Options{BarSize: barSize})
	if err != nil {
		// Short runs have no metrics worth printing.
		return
	}
	metrics, err := a.Metrics()
	if err != nil {
		fmt.Fprintln(os.Stderr, "metrics:", err)
		return
	}

	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	for _, k := range keys {
		v := metrics[k]
		label := fmt.Sprintf("%.6f", v)
		if math.IsInf(v, 1) {
			label = "inf"
		}
		table.Append(k, label)
	}
	table.Render()
}
