package strategy

import (
	"testing"

	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeBar(close float64) domain.Bar {
	return domain.Bar{Open: close, High: close, Low: close, Close: close}
}

func TestSMANotOKBeforeWarmup(t *testing.T) {
	fn := SMA(3)
	_, ok := fn([]domain.Bar{closeBar(1), closeBar(2)})
	assert.False(t, ok)
}

func TestSMAAveragesLastPeriodCloses(t *testing.T) {
	fn := SMA(3)
	v, ok := fn([]domain.Bar{closeBar(1), closeBar(2), closeBar(3), closeBar(6)})
	require.True(t, ok)
	assert.InDelta(t, (2.0+3.0+6.0)/3.0, v, 1e-9)
}

func TestEMANotOKBeforeWarmup(t *testing.T) {
	fn := EMA(5)
	_, ok := fn([]domain.Bar{closeBar(1), closeBar(2)})
	assert.False(t, ok)
}

func TestEMAEqualsSMAAtExactWarmup(t *testing.T) {
	fn := EMA(3)
	v, ok := fn([]domain.Bar{closeBar(1), closeBar(2), closeBar(3)})
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)
}

func TestEMASmoothsPastWarmup(t *testing.T) {
	fn := EMA(3)
	bars := []domain.Bar{closeBar(1), closeBar(2), closeBar(3), closeBar(9)}
	v, ok := fn(bars)
	require.True(t, ok)
	// seed = (1+2+3)/3 = 2, alpha = 2/4 = 0.5, next = 0.5*9 + 0.5*2 = 5.5
	assert.InDelta(t, 5.5, v, 1e-9)
}

func TestRSIAllGainsReturns100(t *testing.T) {
	fn := RSI(3)
	v, ok := fn([]domain.Bar{closeBar(1), closeBar(2), closeBar(3), closeBar(4)})
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
}

func TestRSINotOKBeforeWarmup(t *testing.T) {
	fn := RSI(3)
	_, ok := fn([]domain.Bar{closeBar(1), closeBar(2)})
	assert.False(t, ok)
}

func TestATRNotOKBeforeWarmup(t *testing.T) {
	fn := ATR(2)
	_, ok := fn([]domain.Bar{{High: 2, Low: 1, Close: 1.5}})
	assert.False(t, ok)
}

func TestATRAveragesTrueRange(t *testing.T) {
	fn := ATR(2)
	bars := []domain.Bar{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},  // TR = max(2, |11-9|=2, |9-9|=0) = 2
		{High: 13, Low: 10, Close: 12}, // TR = max(3, |13-10|=3, |10-10|=0) = 3
	}
	v, ok := fn(bars)
	require.True(t, ok)
	assert.InDelta(t, 2.5, v, 1e-9)
}

func TestTAProxyMemoizesWithinABar(t *testing.T) {
	calls := 0
	proxy := NewTA(map[string]IndicatorFunc{
		"counting": func(bars []domain.Bar) (float64, bool) {
			calls++
			return float64(len(bars)), true
		},
	})
	proxy.Push(closeBar(1))

	v1, ok := proxy.Value("counting")
	require.True(t, ok)
	v2, ok := proxy.Value("counting")
	require.True(t, ok)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calls)
}

func TestTAProxyRecomputesAfterNextPush(t *testing.T) {
	calls := 0
	proxy := NewTA(map[string]IndicatorFunc{
		"counting": func(bars []domain.Bar) (float64, bool) {
			calls++
			return float64(len(bars)), true
		},
	})
	proxy.Push(closeBar(1))
	_, _ = proxy.Value("counting")
	proxy.Push(closeBar(2))
	_, _ = proxy.Value("counting")

	assert.Equal(t, 2, calls)
}

func TestTAProxyUnknownIndicatorIsNotOK(t *testing.T) {
	proxy := NewTA(map[string]IndicatorFunc{})
	proxy.Push(closeBar(1))
	_, ok := proxy.Value("sma_999")
	assert.False(t, ok)
}
