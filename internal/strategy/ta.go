package strategy

import "github.com/alejandrodnm/quantrail/internal/domain"

// IndicatorFunc computes one named indicator's value from the bars seen
// so far (oldest first, current bar last). ok is false when there isn't
// enough history yet.
type IndicatorFunc func(bars []domain.Bar) (value float64, ok bool)

// taProxy is the registered-function TA accessor: indicators are plain
// Go functions keyed by name rather than discovered via reflection. Each
// name's result is memoized for the duration of the current bar, so a
// strategy that reads the same indicator more than once in OnBar only
// pays for one computation.
type taProxy struct {
	bars       []domain.Bar
	indicators map[string]IndicatorFunc
	cache      map[string]cacheEntry
}

type cacheEntry struct {
	value float64
	ok    bool
}

// NewTA builds a TA backed by the given named indicator functions.
func NewTA(indicators map[string]IndicatorFunc) *taProxy {
	return &taProxy{indicators: indicators}
}

// Push appends the latest bar to the rolling history and invalidates the
// memoization cache for the new bar.
func (p *taProxy) Push(bar domain.Bar) {
	p.bars = append(p.bars, bar)
	p.cache = nil
}

// Value implements TA.
func (p *taProxy) Value(name string) (float64, bool) {
	if p.cache == nil {
		p.cache = make(map[string]cacheEntry)
	}
	if e, ok := p.cache[name]; ok {
		return e.value, e.ok
	}

	fn, ok := p.indicators[name]
	if !ok {
		p.cache[name] = cacheEntry{}
		return 0, false
	}
	value, ok := fn(p.bars)
	p.cache[name] = cacheEntry{value: value, ok: ok}
	return value, ok
}

func closesOf(bars []domain.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// SMA returns an IndicatorFunc computing the simple moving average of the
// last period closes.
func SMA(period int) IndicatorFunc {
	return func(bars []domain.Bar) (float64, bool) {
		closes := closesOf(bars)
		if len(closes) < period {
			return 0, false
		}
		sum := 0.0
		for _, c := range closes[len(closes)-period:] {
			sum += c
		}
		return sum / float64(period), true
	}
}

// EMA returns an IndicatorFunc computing the exponential moving average
// over the full close history, seeded with the simple average of the
// first period closes and smoothed forward from there.
func EMA(period int) IndicatorFunc {
	return func(bars []domain.Bar) (float64, bool) {
		closes := closesOf(bars)
		if len(closes) < period {
			return 0, false
		}
		alpha := 2.0 / float64(period+1)

		sum := 0.0
		for _, c := range closes[:period] {
			sum += c
		}
		ema := sum / float64(period)
		for _, c := range closes[period:] {
			ema = alpha*c + (1-alpha)*ema
		}
		return ema, true
	}
}

// RSI returns an IndicatorFunc computing the relative strength index from
// the simple average gain and loss over the last period close-to-close
// moves (no Wilder smoothing).
func RSI(period int) IndicatorFunc {
	return func(bars []domain.Bar) (float64, bool) {
		closes := closesOf(bars)
		if len(closes) < period+1 {
			return 0, false
		}
		window := closes[len(closes)-period-1:]
		var gain, loss float64
		for i := 1; i < len(window); i++ {
			delta := window[i] - window[i-1]
			if delta > 0 {
				gain += delta
			} else {
				loss -= delta
			}
		}
		if loss == 0 {
			return 100, true
		}
		rs := (gain / float64(period)) / (loss / float64(period))
		return 100 - (100 / (1 + rs)), true
	}
}

// ATR returns an IndicatorFunc computing the average true range as the
// simple mean of the last period bars' true ranges (no Wilder smoothing).
func ATR(period int) IndicatorFunc {
	return func(bars []domain.Bar) (float64, bool) {
		if len(bars) < period+1 {
			return 0, false
		}
		window := bars[len(bars)-period-1:]
		sum := 0.0
		for i := 1; i < len(window); i++ {
			high, low, prevClose := window[i].High, window[i].Low, window[i-1].Close
			tr := high - low
			if v := absf(high - prevClose); v > tr {
				tr = v
			}
			if v := absf(low - prevClose); v > tr {
				tr = v
			}
			sum += tr
		}
		return sum / float64(period), true
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
