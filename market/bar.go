package market

// PriceField selects which bar price an operation reads.
type PriceField int8

const (
	FieldClose PriceField = iota
	FieldOpen
)

func (f PriceField) String() string {
	switch f {
	case FieldOpen:
		return "open"
	case FieldClose:
		return "close"
	}
	return "unknown"
}

// Bar is one (timestamp, ticker) row of market data. Open and Close are the
// only prices the core reads; anything else the loader saw (indicator
// columns, volume, ...) rides along in Fields untouched for strategies.
type Bar struct {
	Ticker string
	Open   float64
	Close  float64
	Fields map[string]float64
}

// Price returns the bar price for the given field.
func (b Bar) Price(f PriceField) float64 {
	if f == FieldOpen {
		return b.Open
	}
	return b.Close
}

// Field returns a pass-through column by name.
func (b Bar) Field(name string) (float64, bool) {
	v, ok := b.Fields[name]
	return v, ok
}
