package broker

import "time"

// Position is held inventory in one ticker. Quantity is signed (negative is
// short); Basis is the size-weighted average fill price. A position whose
// quantity reaches zero is removed from the ledger, never kept at zero.
type Position struct {
	Ticker   string
	Quantity float64
	Basis    float64
	OpenTime time.Time
}

// Side is +1 for long, -1 for short.
func (p Position) Side() int {
	if p.Quantity < 0 {
		return -1
	}
	return 1
}

// ClosedPosition records one realized round trip, possibly a partial close.
// Quantity carries the sign of the position it came from, so
// (SellingPrice-PurchasePrice)*Quantity is the pre-cost profit for longs and
// shorts alike.
type ClosedPosition struct {
	Ticker        string
	Quantity      float64
	PurchasePrice float64
	SellingPrice  float64
	OpenTime      time.Time
	CloseTime     time.Time
	RealizedPL    float64
	Fee           float64
	Tax           float64
}
