package analyzer

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rustyeddy/barsim/broker"
)

// Options sizes the calendar math. BarSize units: S seconds, T minutes,
// H hours, D trading days.
type Options struct {
	BarSize            string  // e.g. "1D", "4H", "5T", "30S"; default "1D"
	TradingHoursPerDay float64 // default 6.5 (US equities session)
	TradingDaysPerYear int     // default 252
	RiskFreeRate       float64 // annual, default 0
}

// Source is what the analyzer reads from a finished run. *broker.Broker
// satisfies it.
type Source interface {
	History() []broker.Record
	ClosedPositions() []broker.ClosedPosition
	BenchmarkTicker() string
}

// Analyzer computes performance metrics from a finished run's history and
// realized trades. It only reads what the ledger recorded; it never
// re-prices or re-runs anything.
type Analyzer struct {
	records []broker.Record
	closed  []broker.ClosedPosition
	returns []float64 // per-bar equity returns

	secondsPerBar         float64
	tradingSecondsPerYear float64
	riskFreeRate          float64
	hasBenchmark          bool
}

func New(src Source, opts Options) (*Analyzer, error) {
	records := src.History()
	if len(records) < 2 {
		return nil, fmt.Errorf("analyzer: need at least 2 history records, have %d", len(records))
	}

	if opts.BarSize == "" {
		opts.BarSize = "1D"
	}
	if opts.TradingHoursPerDay == 0 {
		opts.TradingHoursPerDay = 6.5
	}
	if opts.TradingDaysPerYear == 0 {
		opts.TradingDaysPerYear = 252
	}

	secondsPerBar, err := parseBarSize(opts.BarSize, opts.TradingHoursPerDay)
	if err != nil {
		return nil, err
	}

	returns := make([]float64, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		returns = append(returns, records[i].Equity/records[i-1].Equity-1)
	}

	return &Analyzer{
		records:               records,
		closed:                src.ClosedPositions(),
		returns:               returns,
		secondsPerBar:         secondsPerBar,
		tradingSecondsPerYear: float64(opts.TradingDaysPerYear) * opts.TradingHoursPerDay * 3600,
		riskFreeRate:          opts.RiskFreeRate,
		hasBenchmark:          src.BenchmarkTicker() != "",
	}, nil
}

func parseBarSize(barSize string, tradingHoursPerDay float64) (float64, error) {
	if len(barSize) < 2 {
		return 0, fmt.Errorf("analyzer: bad bar size %q", barSize)
	}
	value, err := strconv.Atoi(barSize[:len(barSize)-1])
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("analyzer: bad bar size %q", barSize)
	}

	var secs float64
	switch barSize[len(barSize)-1] {
	case 'S':
		secs = 1
	case 'T':
		secs = 60
	case 'H':
		secs = 3600
	case 'D':
		secs = 3600 * tradingHoursPerDay
	default:
		return 0, fmt.Errorf("analyzer: unsupported bar size unit %q", barSize[len(barSize)-1:])
	}
	return float64(value) * secs, nil
}

func (a *Analyzer) barsPerYear() float64 {
	return a.tradingSecondsPerYear / a.secondsPerBar
}

// TotalReturn is end equity over start equity, minus one.
func (a *Analyzer) TotalReturn() float64 {
	return a.records[len(a.records)-1].Equity/a.records[0].Equity - 1
}

// AnnualReturn is the compound annual rate implied by the run's total
// return over its bar count.
func (a *Analyzer) AnnualReturn() float64 {
	years := float64(len(a.records)) * a.secondsPerBar / a.tradingSecondsPerYear
	total := a.records[len(a.records)-1].Equity / a.records[0].Equity
	return math.Pow(total, 1/years) - 1
}

// SharpeRatio annualizes mean excess return over its standard deviation.
// Zero-volatility runs report zero rather than dividing by it.
func (a *Analyzer) SharpeRatio() float64 {
	bpy := a.barsPerYear()
	rfPerBar := math.Pow(1+a.riskFreeRate, 1/bpy) - 1

	excess := make([]float64, len(a.returns))
	for i, r := range a.returns {
		excess[i] = r - rfPerBar
	}

	sd := stddev(excess)
	if sd < 1e-12 {
		return 0
	}
	return math.Sqrt(bpy) * mean(excess) / sd
}

// MaxDrawdown is the largest peak-to-trough equity decline, as a fraction
// of the peak.
func (a *Analyzer) MaxDrawdown() float64 {
	var peak, worst float64
	for _, rec := range a.records {
		if rec.Equity > peak {
			peak = rec.Equity
		}
		if peak > 0 {
			if dd := (peak - rec.Equity) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// Volatility is the annualized standard deviation of per-bar returns.
func (a *Analyzer) Volatility() float64 {
	return stddev(a.returns) * math.Sqrt(a.barsPerYear())
}

// WinRate is the fraction of closed trades with positive pre-cost P&L.
// Zero when nothing was closed.
func (a *Analyzer) WinRate() float64 {
	if len(a.closed) == 0 {
		return 0
	}
	wins := 0
	for _, cp := range a.closed {
		if cp.RealizedPL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(a.closed))
}

// ProfitFactor is gross profits over gross losses of closed trades, +Inf
// when there are no losses.
func (a *Analyzer) ProfitFactor() float64 {
	var profits, losses float64
	for _, cp := range a.closed {
		if cp.RealizedPL > 0 {
			profits += cp.RealizedPL
		} else {
			losses -= cp.RealizedPL
		}
	}
	if losses == 0 {
		return math.Inf(1)
	}
	return profits / losses
}

// CurveStats is a least-squares regression over a log-equity curve. Slope is
// the average log-return per bar; TStat above ~1.96 says the trend is
// unlikely to be noise at the 95% level.
type CurveStats struct {
	Slope    float64
	SlopeSE  float64
	TStat    float64
	RSquared float64
}

// EquityCurveStats regresses the portfolio's log-equity curve.
func (a *Analyzer) EquityCurveStats() (CurveStats, error) {
	return a.curveStats(func(r broker.Record) float64 { return r.Equity })
}

// BenchmarkCurveStats regresses the recorded benchmark series.
func (a *Analyzer) BenchmarkCurveStats() (CurveStats, error) {
	if !a.hasBenchmark {
		return CurveStats{}, fmt.Errorf("analyzer: no benchmark recorded")
	}
	return a.curveStats(func(r broker.Record) float64 { return r.Benchmark })
}

func (a *Analyzer) curveStats(value func(broker.Record) float64) (CurveStats, error) {
	y := make([]float64, len(a.records))
	for i, rec := range a.records {
		v := value(rec)
		if v <= 0 {
			return CurveStats{}, fmt.Errorf("analyzer: non-positive value %v at index %d, cannot take logs", v, i)
		}
		y[i] = math.Log(v)
	}
	return linregress(y), nil
}

// benchmarkEndpoints resolves the first and last recorded benchmark closes.
// A benchmark ticker absent from the early bars leaves zeros in the records,
// which would otherwise silently turn the return ratios into ±Inf/NaN.
func (a *Analyzer) benchmarkEndpoints() (first, last float64, err error) {
	if !a.hasBenchmark {
		return 0, 0, fmt.Errorf("analyzer: no benchmark recorded")
	}
	first = a.records[0].Benchmark
	last = a.records[len(a.records)-1].Benchmark
	if first <= 0 || last <= 0 {
		return 0, 0, fmt.Errorf("analyzer: non-positive benchmark value (first %v, last %v)", first, last)
	}
	return first, last, nil
}

// BenchmarkTotalReturn and BenchmarkAnnualReturn mirror the portfolio
// variants over the recorded benchmark closes.
func (a *Analyzer) BenchmarkTotalReturn() (float64, error) {
	first, last, err := a.benchmarkEndpoints()
	if err != nil {
		return 0, err
	}
	return last/first - 1, nil
}

func (a *Analyzer) BenchmarkAnnualReturn() (float64, error) {
	first, last, err := a.benchmarkEndpoints()
	if err != nil {
		return 0, err
	}
	years := float64(len(a.records)) * a.secondsPerBar / a.tradingSecondsPerYear
	return math.Pow(last/first, 1/years) - 1, nil
}

// Metrics flattens everything into one map, benchmark figures included when
// a benchmark was recorded.
func (a *Analyzer) Metrics() (map[string]float64, error) {
	m := map[string]float64{
		"total_return":  a.TotalReturn(),
		"annual_return": a.AnnualReturn(),
		"sharpe_ratio":  a.SharpeRatio(),
		"max_drawdown":  a.MaxDrawdown(),
		"volatility":    a.Volatility(),
		"win_rate":      a.WinRate(),
		"profit_factor": a.ProfitFactor(),
	}

	stats, err := a.EquityCurveStats()
	if err != nil {
		return nil, err
	}
	m["slope"] = stats.Slope
	m["slope_se"] = stats.SlopeSE
	m["slope_tstat"] = stats.TStat
	m["r_squared"] = stats.RSquared

	if a.hasBenchmark {
		if m["benchmark_total_return"], err = a.BenchmarkTotalReturn(); err != nil {
			return nil, err
		}
		if m["benchmark_annual_return"], err = a.BenchmarkAnnualReturn(); err != nil {
			return nil, err
		}
		bstats, err := a.BenchmarkCurveStats()
		if err != nil {
			return nil, err
		}
		m["benchmark_slope"] = bstats.Slope
		m["benchmark_slope_se"] = bstats.SlopeSE
		m["benchmark_slope_tstat"] = bstats.TStat
		m["benchmark_r_squared"] = bstats.RSquared
	}

	return m, nil
}

// linregress fits y against x = 0..n-1 and reports slope, slope standard
// error, t-statistic and R².
func linregress(y []float64) CurveStats {
	n := float64(len(y))

	var sumX, sumY float64
	for i, v := range y {
		sumX += float64(i)
		sumY += v
	}
	meanX := sumX / n
	meanY := sumY / n

	var sxx, sxy, syy float64
	for i, v := range y {
		dx := float64(i) - meanX
		dy := v - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	slope := sxy / sxx

	var r2 float64
	if syy > 0 {
		r := sxy / math.Sqrt(sxx*syy)
		r2 = r * r
	}

	var se float64
	if n > 2 {
		resid := syy - slope*sxy
		if resid < 0 {
			resid = 0 // guard rounding on perfect fits
		}
		se = math.Sqrt(resid / ((n - 2) * sxx))
	}

	tstat := math.Inf(1)
	if slope < 0 {
		tstat = math.Inf(-1)
	}
	if se > 0 {
		tstat = slope / se
	}

	return CurveStats{Slope: slope, SlopeSE: se, TStat: tstat, RSquared: r2}
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
