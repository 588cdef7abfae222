// Package client implements the Quotes Client: the thin counterpart used
// by backtesting workers to request bar ranges from the Quotes Service.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/alejandrodnm/quantrail/internal/ports"
	"github.com/alejandrodnm/quantrail/internal/quotesproto"
)

// ErrDataNotReceived is returned when the reply times out or arrives as an
// error packet.
type ErrDataNotReceived struct {
	Reason string
}

func (e ErrDataNotReceived) Error() string {
	return fmt.Sprintf("quotes client: data not received: %s", e.Reason)
}

// Client sends bar-range requests and blocks on the per-request reply slot.
type Client struct {
	bus            ports.Bus
	inboundQueue   string
	responsePrefix string
	timeout        time.Duration
}

// New builds a Client against the given bus, matching the Quotes
// Service's queue/prefix configuration.
func New(b ports.Bus, inboundQueue, responsePrefix string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{bus: b, inboundQueue: inboundQueue, responsePrefix: responsePrefix, timeout: timeout}
}

// GetQuotes requests bars in [t0Ms, t1Ms] (t1Ms nil means "until now") for
// source/symbol/tf and returns the dense series.
func (c *Client) GetQuotes(ctx context.Context, source, symbol string, tf domain.Timeframe, t0Ms int64, t1Ms *int64) (domain.BarSeries, error) {
	requestID := uuid.NewString()

	req := quotesproto.Request{
		RequestID:      requestID,
		Source:         source,
		Symbol:         symbol,
		Timeframe:      string(tf),
		HistoryStartMs: t0Ms,
		HistoryEndMs:   t1Ms,
	}
	payload, err := quotesproto.EncodeRequest(req)
	if err != nil {
		return domain.BarSeries{}, fmt.Errorf("quotes client: encode request: %w", err)
	}
	if err := c.bus.PushInbound(ctx, c.inboundQueue, payload); err != nil {
		return domain.BarSeries{}, fmt.Errorf("quotes client: push inbound: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	slot := c.responsePrefix + ":" + requestID
	raw, err := c.bus.PopReply(timeoutCtx, slot)
	if err != nil {
		return domain.BarSeries{}, ErrDataNotReceived{Reason: err.Error()}
	}

	resp, err := quotesproto.DecodeResponse(raw)
	if err != nil {
		return domain.BarSeries{}, fmt.Errorf("quotes client: decode response: %w", err)
	}
	if resp.Metadata.Status != "success" {
		return domain.BarSeries{}, ErrDataNotReceived{Reason: resp.Metadata.Error}
	}
	return resp.Series(), nil
}
