package domain

import "time"

// Task is the configuration for one backtest run.
type Task struct {
	ID       int64  // monotonic, assigned by the Task Store
	FileName string // unique secondary key (the strategy file/class name)
	ResultID string // fresh GUID written on each start

	Source    string
	Symbol    string
	Timeframe Timeframe
	DateStart time.Time
	DateEnd   time.Time

	FeeTaker  float64
	FeeMaker  float64
	PriceStep float64
	// PrecisionAmount and PrecisionPrice are rounding steps (e.g. 0.01,
	// 0.001), not digit counts; both must be > 0.
	PrecisionAmount float64
	PrecisionPrice  float64
	SlippageInSteps float64

	IsRunning  bool
	Parameters map[string]any
}

// Slippage is slippage_in_steps * price_step, the absolute price offset
// applied to market and stop-triggered orders.
func (t Task) Slippage() float64 {
	return t.SlippageInSteps * t.PriceStep
}

// PriceEpsilon is the tolerance used for all price comparisons:
// precision_price / 10.
func (t Task) PriceEpsilon() float64 {
	return t.PrecisionPrice / 10
}

// AmountEpsilon is the tolerance used for all volume comparisons:
// precision_amount / 10.
func (t Task) AmountEpsilon() float64 {
	return t.PrecisionAmount / 10
}
