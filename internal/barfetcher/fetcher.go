// Package barfetcher pulls missing bar ranges from the upstream exchange
// in paginated batches and writes them to the Bar Store.
package barfetcher

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/alejandrodnm/quantrail/internal/ports"
)

const defaultMaxBarsPerRequest = 1000

// Fetcher fills a [t0, t1] gap by paginating the upstream exchange and
// persisting completed batches to the Bar Store.
type Fetcher struct {
	exchange  ports.ExchangeClient
	store     ports.BarStore
	maxPerReq int
}

// New builds a Fetcher. maxPerReq <= 0 uses the default batch cap.
func New(exchange ports.ExchangeClient, store ports.BarStore, maxPerReq int) *Fetcher {
	if maxPerReq <= 0 {
		maxPerReq = defaultMaxBarsPerRequest
	}
	return &Fetcher{exchange: exchange, store: store, maxPerReq: maxPerReq}
}

// Fill fetches [t0Ms, t1Ms] (both inclusive) for source/symbol/tf and
// writes completed bars to the store.
//
// A one-batch hold-back is kept throughout: the most recently received
// batch is not written immediately because its last bar may be an open,
// non-final candle. When the next batch arrives, the held batch is
// persisted in full. At termination the held batch's last bar is dropped
// (it is the open candle) before the remainder is persisted. A batch error
// aborts the fetch; there is no retry at this layer.
func (f *Fetcher) Fill(ctx context.Context, source, symbol string, tf domain.Timeframe, t0Ms, t1Ms int64) error {
	tfMs := tf.Millis()
	if tfMs <= 0 {
		return fmt.Errorf("barfetcher.Fill: invalid timeframe %q", tf)
	}

	current := t0Ms
	var held []domain.Bar

	for current <= t1Ms {
		diffMs := t1Ms - current
		barsNeeded := int(diffMs/tfMs) + 2
		limit := barsNeeded
		if limit > f.maxPerReq {
			limit = f.maxPerReq
		}

		batch, err := f.exchange.FetchOHLCV(ctx, symbol, tf, current, limit)
		if err != nil {
			return fmt.Errorf("barfetcher.Fill: fetch %s/%s/%s since %d: %w", source, symbol, tf, current, err)
		}
		if len(batch) == 0 {
			break
		}

		if len(held) > 0 {
			if err := f.store.Insert(ctx, source, symbol, tf, held); err != nil {
				return fmt.Errorf("barfetcher.Fill: persist held batch: %w", err)
			}
		}
		held = batch

		last := batch[len(batch)-1]
		current = last.TimeMs + tfMs
	}

	if len(held) > 0 {
		held = held[:len(held)-1] // drop the open candle
		if len(held) > 0 {
			if err := f.store.Insert(ctx, source, symbol, tf, held); err != nil {
				return fmt.Errorf("barfetcher.Fill: persist final batch: %w", err)
			}
		}
	}
	return nil
}
