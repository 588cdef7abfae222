package barfetcher

import (
	"context"
	"testing"

	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchange struct {
	batches [][]domain.Bar
	calls   int
}

func (f *fakeExchange) FetchOHLCV(_ context.Context, _ string, _ domain.Timeframe, sinceMs int64, limit int) ([]domain.Bar, error) {
	if f.calls >= len(f.batches) {
		return nil, nil
	}
	b := f.batches[f.calls]
	f.calls++
	return b, nil
}

type fakeStore struct {
	inserts [][]domain.Bar
}

func (f *fakeStore) Get(context.Context, string, string, domain.Timeframe, int64, int64) ([]domain.Bar, error) {
	return nil, nil
}

func (f *fakeStore) Insert(_ context.Context, _, _ string, _ domain.Timeframe, bars []domain.Bar) error {
	cp := append([]domain.Bar(nil), bars...)
	f.inserts = append(f.inserts, cp)
	return nil
}

func bar(timeMs int64) domain.Bar {
	return domain.Bar{TimeMs: timeMs, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}
}

func TestFillDropsTrailingOpenCandle(t *testing.T) {
	exchange := &fakeExchange{batches: [][]domain.Bar{
		{bar(0), bar(60000), bar(120000)},
	}}
	store := &fakeStore{}
	f := New(exchange, store, 0)

	err := f.Fill(context.Background(), "binance", "BTCUSDT", domain.Timeframe1m, 0, 120000)
	require.NoError(t, err)

	require.Len(t, store.inserts, 1)
	assert.Len(t, store.inserts[0], 2) // last bar (the open candle) dropped
	assert.Equal(t, int64(0), store.inserts[0][0].TimeMs)
	assert.Equal(t, int64(60000), store.inserts[0][1].TimeMs)
}

func TestFillPersistsHeldBatchBeforeNextFetch(t *testing.T) {
	exchange := &fakeExchange{batches: [][]domain.Bar{
		{bar(0), bar(60000)},
		{bar(120000), bar(180000)},
	}}
	store := &fakeStore{}
	f := New(exchange, store, 2)

	err := f.Fill(context.Background(), "binance", "BTCUSDT", domain.Timeframe1m, 0, 200000)
	require.NoError(t, err)

	// First batch persisted in full once the second batch arrives; second
	// batch's last bar (the open candle) is dropped at the end.
	require.Len(t, store.inserts, 2)
	assert.Len(t, store.inserts[0], 2)
	assert.Len(t, store.inserts[1], 1)
	assert.Equal(t, int64(120000), store.inserts[1][0].TimeMs)
}

func TestFillStopsOnEmptyBatch(t *testing.T) {
	exchange := &fakeExchange{batches: nil}
	store := &fakeStore{}
	f := New(exchange, store, 0)

	err := f.Fill(context.Background(), "binance", "BTCUSDT", domain.Timeframe1m, 0, 120000)
	require.NoError(t, err)
	assert.Empty(t, store.inserts)
}

func TestFillRejectsInvalidTimeframe(t *testing.T) {
	f := New(&fakeExchange{}, &fakeStore{}, 0)
	err := f.Fill(context.Background(), "binance", "BTCUSDT", domain.Timeframe(""), 0, 1000)
	assert.Error(t, err)
}
