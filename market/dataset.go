package market

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrBadData marks a structurally invalid dataset: the kind of problem that
// aborts a run rather than rejecting a single order.
var ErrBadData = errors.New("market: bad data")

// Row is one loader-level record before grouping: a bar plus its timestamp.
type Row struct {
	Time time.Time
	Bar
}

// Snapshot holds every bar sharing one timestamp.
type Snapshot struct {
	ts      time.Time
	bars    map[string]Bar
	tickers []string // sorted, for deterministic iteration
}

func (s *Snapshot) Time() time.Time { return s.ts }

func (s *Snapshot) Len() int { return len(s.bars) }

// Tickers returns the snapshot's tickers in sorted order.
func (s *Snapshot) Tickers() []string { return s.tickers }

// Bar looks up the row for a ticker.
func (s *Snapshot) Bar(ticker string) (Bar, bool) {
	b, ok := s.bars[ticker]
	return b, ok
}

// Price resolves a price field for a ticker. ok is false when the ticker has
// no bar at this timestamp.
func (s *Snapshot) Price(ticker string, f PriceField) (float64, bool) {
	b, ok := s.bars[ticker]
	if !ok {
		return 0, false
	}
	return b.Price(f), true
}

// DataSet is the replay input: distinct timestamps in strictly increasing
// order, each carrying the snapshot of all bars at that instant.
type DataSet struct {
	snaps []*Snapshot
}

// NewDataSet groups rows by timestamp, sorts everything chronologically and
// validates shape. Structural problems come back wrapped in ErrBadData.
func NewDataSet(rows []Row) (*DataSet, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty dataset: %w", ErrBadData)
	}

	byTime := make(map[time.Time]*Snapshot)
	for i, r := range rows {
		if err := validateRow(r); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		snap, ok := byTime[r.Time]
		if !ok {
			snap = &Snapshot{ts: r.Time, bars: make(map[string]Bar)}
			byTime[r.Time] = snap
		}
		if _, dup := snap.bars[r.Ticker]; dup {
			return nil, fmt.Errorf("row %d: duplicate bar for %q at %s: %w",
				i, r.Ticker, r.Time.Format(time.RFC3339), ErrBadData)
		}
		snap.bars[r.Ticker] = r.Bar
	}

	snaps := make([]*Snapshot, 0, len(byTime))
	for _, snap := range byTime {
		snap.tickers = make([]string, 0, len(snap.bars))
		for t := range snap.bars {
			snap.tickers = append(snap.tickers, t)
		}
		sort.Strings(snap.tickers)
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ts.Before(snaps[j].ts) })

	return &DataSet{snaps: snaps}, nil
}

func validateRow(r Row) error {
	if r.Time.IsZero() {
		return fmt.Errorf("zero timestamp: %w", ErrBadData)
	}
	if r.Ticker == "" {
		return fmt.Errorf("empty ticker: %w", ErrBadData)
	}
	if !validPrice(r.Open) || !validPrice(r.Close) {
		return fmt.Errorf("ticker %q: open=%v close=%v: %w", r.Ticker, r.Open, r.Close, ErrBadData)
	}
	return nil
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// Len is the number of distinct timestamps.
func (d *DataSet) Len() int { return len(d.snaps) }

// At returns the snapshot at chronological index i.
func (d *DataSet) At(i int) *Snapshot { return d.snaps[i] }

// Start and End bound the replay window.
func (d *DataSet) Start() time.Time { return d.snaps[0].ts }
func (d *DataSet) End() time.Time   { return d.snaps[len(d.snaps)-1].ts }
