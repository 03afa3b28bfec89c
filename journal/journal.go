package journal

import "time"

// Journal persists a run's trade and equity stream. Implementations are
// called once per simulated step and once per realized close; none of them
// need to be safe for concurrent use (the run has one writer).
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// TradeRecord is one realized round trip. Quantity carries the sign of the
// position that was closed.
type TradeRecord struct {
	RunID      string
	TradeID    string
	Ticker     string
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Fee        float64
	Tax        float64
}

// EquitySnapshot is one per-step account snapshot.
type EquitySnapshot struct {
	RunID      string
	Time       time.Time
	Cash       float64
	Equity     float64
	LongValue  float64
	ShortValue float64
}
