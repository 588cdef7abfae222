// Package server implements the Quotes Service: a request/response worker
// that locates gaps in the Bar Store, fills them via the Bar Fetcher, and
// returns the dense series on a per-request reply slot.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/quantrail/internal/barfetcher"
	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/alejandrodnm/quantrail/internal/ports"
	"github.com/alejandrodnm/quantrail/internal/quotesproto"
)

const (
	defaultReplyTTLSeconds = 300
	defaultWorkers         = 16
)

// Service is the Quotes Service worker.
type Service struct {
	bus     ports.Bus
	store   ports.BarStore
	fetcher *barfetcher.Fetcher

	inboundQueue   string
	responsePrefix string
	replyTTL       int
	workers        int

	// keyLocks serializes gap-filling per (source, symbol, timeframe).
	// Entries are never removed: key cardinality is bounded by the active
	// universe of instruments, so the map cannot grow unbounded in
	// practice, and removing entries would reintroduce the race the lock
	// exists to prevent. Identical overlapping requests are not
	// deduplicated: each waits for the key's lock in turn and then runs its
	// own query and gap check.
	keyLocksMu sync.Mutex
	keyLocks   map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithReplyTTL overrides the reply-slot TTL in seconds.
func WithReplyTTL(seconds int) Option {
	return func(s *Service) { s.replyTTL = seconds }
}

// WithWorkers overrides the worker-pool size.
func WithWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// New builds a Service over bus/store/fetcher, serving requests popped
// from inboundQueue and replying on keys prefixed with responsePrefix.
func New(b ports.Bus, store ports.BarStore, fetcher *barfetcher.Fetcher, inboundQueue, responsePrefix string, opts ...Option) *Service {
	s := &Service{
		bus:            b,
		store:          store,
		fetcher:        fetcher,
		inboundQueue:   inboundQueue,
		responsePrefix: responsePrefix,
		replyTTL:       defaultReplyTTLSeconds,
		workers:        defaultWorkers,
		keyLocks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run clears stale queue/reply state (the deliberate at-most-once restart
// policy: in-flight requests across restarts are dropped) and then serves
// requests until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.bus.ClearMatching(ctx, s.inboundQueue); err != nil {
		return fmt.Errorf("server.Run: clear inbound: %w", err)
	}
	if err := s.bus.ClearMatching(ctx, s.responsePrefix+":*"); err != nil {
		return fmt.Errorf("server.Run: clear replies: %w", err)
	}

	workCh := make(chan quotesproto.Request, s.workers)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range workCh {
				s.handle(ctx, req)
			}
		}()
	}
	defer func() {
		close(workCh)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		payload, err := s.bus.PopInbound(ctx, s.inboundQueue)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("quotes service: pop inbound failed", "err", err)
			continue
		}

		req, err := quotesproto.DecodeRequest(payload)
		if err != nil {
			slog.Error("quotes service: decode request failed", "err", err)
			continue
		}

		workCh <- req
	}
}

func (s *Service) handle(ctx context.Context, req quotesproto.Request) {
	slot := s.responsePrefix + ":" + req.RequestID

	tf, err := domain.ParseTimeframe(req.Timeframe)
	if err != nil {
		s.reply(ctx, slot, quotesproto.ErrResponse(req.RequestID, err.Error()))
		return
	}

	lock := s.lockFor(req.Source, req.Symbol, string(tf))
	slog.Debug("quotes service: acquiring per-key lock",
		"source", req.Source, "symbol", req.Symbol, "timeframe", tf, "request_id", req.RequestID)
	lock.Lock()
	defer lock.Unlock()

	t1 := req.HistoryEndMs
	t1Ms := nowMs()
	if t1 != nil {
		t1Ms = *t1
	}

	series, err := s.getQuotes(ctx, req.Source, req.Symbol, tf, req.HistoryStartMs, t1Ms)
	if err != nil {
		s.reply(ctx, slot, quotesproto.ErrResponse(req.RequestID, err.Error()))
		return
	}

	s.reply(ctx, slot, quotesproto.OKResponse(req.RequestID, series))
	slog.Info("quotes service: request served",
		"request_id", req.RequestID, "source", req.Source, "symbol", req.Symbol,
		"timeframe", tf, "bars", series.Len())
}

// getQuotes runs the per-request fetch algorithm: query, find gaps, fill
// each gap sequentially via the Bar Fetcher, re-query.
func (s *Service) getQuotes(ctx context.Context, source, symbol string, tf domain.Timeframe, t0Ms, t1Ms int64) (domain.BarSeries, error) {
	bars, err := s.store.Get(ctx, source, symbol, tf, t0Ms, t1Ms)
	if err != nil {
		return domain.BarSeries{}, fmt.Errorf("bar store query: %w", err)
	}

	times := make([]int64, len(bars))
	for i, b := range bars {
		times[i] = b.TimeMs
	}

	gaps := FindGaps(times, t0Ms, t1Ms, tf.Millis())
	for _, g := range gaps {
		slog.Debug("quotes service: filling gap", "source", source, "symbol", symbol, "timeframe", tf, "start", g.StartMs, "end", g.EndMs)
		if err := s.fetcher.Fill(ctx, source, symbol, tf, g.StartMs, g.EndMs); err != nil {
			return domain.BarSeries{}, fmt.Errorf("gap fill [%d,%d]: %w", g.StartMs, g.EndMs, err)
		}
	}

	if len(gaps) == 0 {
		return domain.SeriesFromBars(bars), nil
	}

	bars, err = s.store.Get(ctx, source, symbol, tf, t0Ms, t1Ms)
	if err != nil {
		return domain.BarSeries{}, fmt.Errorf("bar store re-query: %w", err)
	}
	return domain.SeriesFromBars(bars), nil
}

func (s *Service) reply(ctx context.Context, slot string, resp quotesproto.Response) {
	payload, err := quotesproto.EncodeResponse(resp)
	if err != nil {
		slog.Error("quotes service: encode response failed", "err", err)
		return
	}
	if err := s.bus.PushReply(ctx, slot, payload, s.replyTTL); err != nil {
		slog.Error("quotes service: push reply failed", "err", err)
	}
}

func (s *Service) lockFor(source, symbol, timeframe string) *sync.Mutex {
	key := source + ":" + symbol + ":" + timeframe

	s.keyLocksMu.Lock()
	defer s.keyLocksMu.Unlock()

	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	return l
}
