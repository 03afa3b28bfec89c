package broker

import "time"

// Execution is the per-order outcome of one settlement: a fill or a recorded
// rejection. Rejections carry their cause in Err and leave every money field
// zero.
type Execution struct {
	Order      Order
	Time       time.Time
	Filled     bool
	Quantity   float64 // signed filled quantity
	Price      float64
	Fee        float64
	Tax        float64
	RealizedPL float64
	Err        error
}

// Record is one step of the append-only run history. It is enough to
// reconstruct cash, equity and positions at that instant without re-running
// the simulation.
type Record struct {
	Time       time.Time
	Cash       float64
	Equity     float64
	LongValue  float64
	ShortValue float64
	Benchmark  float64 // benchmark ticker's close; zero when none configured
	Positions  map[string]Position
	Executions []Execution
}
