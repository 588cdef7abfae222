package ports

import (
	"context"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

// ExchangeClient is the single upstream collaborator the Bar Fetcher
// depends on.
type ExchangeClient interface {
	// FetchOHLCV returns up to limit bars for symbol/timeframe starting at
	// sinceMs (inclusive), ordered ascending by time.
	FetchOHLCV(ctx context.Context, symbol string, tf domain.Timeframe, sinceMs int64, limit int) ([]domain.Bar, error)
}
