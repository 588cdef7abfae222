// Package publisher implements the Results Publisher: a periodic
// incremental snapshot of a backtest run onto an append-only result
// stream, split into scalar fields (sent in full every DATA packet) and
// growing lists (sent as tail-only deltas).
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/alejandrodnm/quantrail/internal/ports"
)

// Publisher wraps a Snapshot and a result stream, tracking how much of
// each growing list has already been sent.
type Publisher struct {
	stream   ports.ResultStream
	resultID string
	snapshot Snapshot
	logger   *slog.Logger

	initialized bool
	tradeSize   int
	orderSize   int
	dealSize    int
}

// New builds a Publisher for one backtest run's result stream.
func New(stream ports.ResultStream, resultID string, snapshot Snapshot, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{stream: stream, resultID: resultID, snapshot: snapshot, logger: logger}
}

type dataPacket struct {
	Scalars  map[string]any  `json:"scalars,omitempty"`
	Trades   []domain.Trade  `json:"trades_new,omitempty"`
	Orders   []domain.Order  `json:"orders_new,omitempty"`
	Deals    []domain.Deal   `json:"deals_new,omitempty"`
	IsFinish bool            `json:"is_finish,omitempty"`
	ResultID string          `json:"result_id"`
}

// Reset records each growing list's initial length and emits START.
func (p *Publisher) Reset(ctx context.Context) error {
	p.tradeSize = len(p.snapshot.Trades())
	p.orderSize = len(p.snapshot.Orders())
	p.dealSize = len(p.snapshot.Deals())
	p.initialized = true

	payload, err := json.Marshal(dataPacket{ResultID: p.resultID})
	if err != nil {
		return fmt.Errorf("publisher: marshal start packet: %w", err)
	}
	if _, err := p.stream.Append(ctx, p.resultID, string(domain.PacketStart), payload); err != nil {
		return fmt.Errorf("publisher: append start: %w", err)
	}
	return nil
}

// SendChanges serializes every scalar and the tail of every grown list,
// and emits DATA only if it contains something. Lists that have shrunk
// since the last call are logged and their recorded size accepted
// without emitting anything for them.
func (p *Publisher) SendChanges(ctx context.Context) error {
	if !p.initialized {
		return fmt.Errorf("publisher: Reset must be called before SendChanges")
	}

	pkt := dataPacket{Scalars: p.snapshot.Scalars(), ResultID: p.resultID}

	trades := p.snapshot.Trades()
	switch n := len(trades); {
	case n > p.tradeSize:
		pkt.Trades = trades[p.tradeSize:]
		p.tradeSize = n
	case n < p.tradeSize:
		p.logger.Warn("publisher: trade list shrank", "from", p.tradeSize, "to", n)
		p.tradeSize = n
	}

	orders := p.snapshot.Orders()
	switch n := len(orders); {
	case n > p.orderSize:
		pkt.Orders = orders[p.orderSize:]
		p.orderSize = n
	case n < p.orderSize:
		p.logger.Warn("publisher: order list shrank", "from", p.orderSize, "to", n)
		p.orderSize = n
	}

	deals := p.snapshot.Deals()
	switch n := len(deals); {
	case n > p.dealSize:
		pkt.Deals = deals[p.dealSize:]
		p.dealSize = n
	case n < p.dealSize:
		p.logger.Warn("publisher: deal list shrank", "from", p.dealSize, "to", n)
		p.dealSize = n
	}

	if len(pkt.Scalars) == 0 && len(pkt.Trades) == 0 && len(pkt.Orders) == 0 && len(pkt.Deals) == 0 {
		return nil
	}

	payload, err := json.Marshal(pkt)
	if err != nil {
		return fmt.Errorf("publisher: marshal data packet: %w", err)
	}
	if _, err := p.stream.Append(ctx, p.resultID, string(domain.PacketData), payload); err != nil {
		return fmt.Errorf("publisher: append data: %w", err)
	}
	return nil
}

// Finish snapshots final list sizes and emits END with is_finish set.
func (p *Publisher) Finish(ctx context.Context) error {
	p.tradeSize = len(p.snapshot.Trades())
	p.orderSize = len(p.snapshot.Orders())
	p.dealSize = len(p.snapshot.Deals())

	payload, err := json.Marshal(dataPacket{ResultID: p.resultID, IsFinish: true})
	if err != nil {
		return fmt.Errorf("publisher: marshal end packet: %w", err)
	}
	if _, err := p.stream.Append(ctx, p.resultID, string(domain.PacketEnd), payload); err != nil {
		return fmt.Errorf("publisher: append end: %w", err)
	}
	return nil
}

// SendErrorPacket emits an ERROR marker with an optional context blob.
// A failure to emit is logged and swallowed, so it never masks the
// original error that triggered it.
func (p *Publisher) SendErrorPacket(ctx context.Context, message string, errCtx map[string]any) {
	payload, err := json.Marshal(struct {
		Message  string         `json:"message"`
		Context  map[string]any `json:"context,omitempty"`
		ResultID string         `json:"result_id"`
	}{Message: message, Context: errCtx, ResultID: p.resultID})
	if err != nil {
		p.logger.Error("publisher: marshal error packet", "error", err)
		return
	}
	if _, err := p.stream.Append(ctx, p.resultID, string(domain.PacketError), payload); err != nil {
		p.logger.Error("publisher: append error packet", "error", err)
	}
}

// SendCancelPacket emits a CANCEL marker. A failure to emit is logged
// and swallowed.
func (p *Publisher) SendCancelPacket(ctx context.Context, message string) {
	payload, err := json.Marshal(struct {
		Message  string `json:"message"`
		ResultID string `json:"result_id"`
	}{Message: message, ResultID: p.resultID})
	if err != nil {
		p.logger.Error("publisher: marshal cancel packet", "error", err)
		return
	}
	if _, err := p.stream.Append(ctx, p.resultID, string(domain.PacketCancel), payload); err != nil {
		p.logger.Error("publisher: append cancel packet", "error", err)
	}
}

// Trim drops stream entries older than keepAfterID, bounding growth for
// a long-lived subscriber that reads slower than the stream fills.
func (p *Publisher) Trim(ctx context.Context, keepAfterID string) error {
	if err := p.stream.Trim(ctx, p.resultID, keepAfterID); err != nil {
		return fmt.Errorf("publisher: trim: %w", err)
	}
	return nil
}
