package ports

import (
	"context"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

// BarStore is the durable, queryable store of OHLCV bars keyed by
// (source, symbol, timeframe, time).
type BarStore interface {
	// Get returns bars in [t0Ms, t1Ms] ordered by time ascending. An empty
	// range returns an empty, non-nil slice.
	Get(ctx context.Context, source, symbol string, tf domain.Timeframe, t0Ms, t1Ms int64) ([]domain.Bar, error)

	// Insert appends bars, rejecting any bar whose (source, symbol,
	// timeframe, time) collides with an existing row. Insert is atomic per
	// call: either all bars are written or none are.
	Insert(ctx context.Context, source, symbol string, tf domain.Timeframe, bars []domain.Bar) error
}
