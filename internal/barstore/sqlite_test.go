package barstore

import (
	"context"
	"testing"

	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bars := []domain.Bar{
		{TimeMs: 1000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{TimeMs: 2000, Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20},
	}
	require.NoError(t, s.Insert(ctx, "binance", "BTCUSDT", domain.Timeframe1m, bars))

	got, err := s.Get(ctx, "binance", "BTCUSDT", domain.Timeframe1m, 0, 5000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].TimeMs)
	assert.Equal(t, int64(2000), got[1].TimeMs)
}

func TestGetFiltersByRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bars := []domain.Bar{
		{TimeMs: 1000, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{TimeMs: 2000, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{TimeMs: 3000, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	}
	require.NoError(t, s.Insert(ctx, "binance", "BTCUSDT", domain.Timeframe1m, bars))

	got, err := s.Get(ctx, "binance", "BTCUSDT", domain.Timeframe1m, 1500, 2500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2000), got[0].TimeMs)
}

func TestGetEmptyRangeReturnsEmptySlice(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Get(context.Background(), "binance", "BTCUSDT", domain.Timeframe1m, 2000, 1000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInsertRejectsDuplicateTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bar := domain.Bar{TimeMs: 1000, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}
	require.NoError(t, s.Insert(ctx, "binance", "BTCUSDT", domain.Timeframe1m, []domain.Bar{bar}))

	err := s.Insert(ctx, "binance", "BTCUSDT", domain.Timeframe1m, []domain.Bar{bar})
	assert.Error(t, err)
}

func TestGetIsolatesBySymbolAndTimeframe(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bar := domain.Bar{TimeMs: 1000, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}
	require.NoError(t, s.Insert(ctx, "binance", "BTCUSDT", domain.Timeframe1m, []domain.Bar{bar}))
	require.NoError(t, s.Insert(ctx, "binance", "ETHUSDT", domain.Timeframe1m, []domain.Bar{bar}))
	require.NoError(t, s.Insert(ctx, "binance", "BTCUSDT", domain.Timeframe5m, []domain.Bar{bar}))

	got, err := s.Get(ctx, "binance", "BTCUSDT", domain.Timeframe1m, 0, 5000)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
