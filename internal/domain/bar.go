package domain

// Bar is one OHLCV candle, time aligned to its timeframe boundary.
//
// Invariant: Low <= {Open, Close} <= High, Volume >= 0. Bars are unique by
// (Source, Symbol, Timeframe, TimeMs).
type Bar struct {
	TimeMs int64 // unix milliseconds, aligned to the timeframe boundary
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Valid reports whether the bar satisfies the OHLC ordering invariant.
func (b Bar) Valid() bool {
	if b.Volume < 0 {
		return false
	}
	if b.Low > b.Open || b.Open > b.High {
		return false
	}
	if b.Low > b.Close || b.Close > b.High {
		return false
	}
	return true
}

// BarSeries is a dense, time-ascending sequence of bars for one
// (source, symbol, timeframe) key, exposed column-wise the way the
// Quotes Service serializes it on the wire.
type BarSeries struct {
	Time   []int64
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Len returns the number of bars in the series.
func (s BarSeries) Len() int {
	return len(s.Time)
}

// Bar reconstructs the i-th bar as a struct.
func (s BarSeries) Bar(i int) Bar {
	return Bar{
		TimeMs: s.Time[i],
		Open:   s.Open[i],
		High:   s.High[i],
		Low:    s.Low[i],
		Close:  s.Close[i],
		Volume: s.Volume[i],
	}
}

// SeriesFromBars assembles a BarSeries from a time-ascending slice of bars.
func SeriesFromBars(bars []Bar) BarSeries {
	s := BarSeries{
		Time:   make([]int64, len(bars)),
		Open:   make([]float64, len(bars)),
		High:   make([]float64, len(bars)),
		Low:    make([]float64, len(bars)),
		Close:  make([]float64, len(bars)),
		Volume: make([]float64, len(bars)),
	}
	for i, b := range bars {
		s.Time[i] = b.TimeMs
		s.Open[i] = b.Open
		s.High[i] = b.High
		s.Low[i] = b.Low
		s.Close[i] = b.Close
		s.Volume[i] = b.Volume
	}
	return s
}
