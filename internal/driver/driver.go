// Package driver implements the Backtesting Driver: it loads a task,
// wires a fresh Order & Deal Engine and strategy instance, iterates the
// bar loop, and orchestrates periodic publishing and duplicate-worker
// detection.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/quantrail/internal/control"
	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/alejandrodnm/quantrail/internal/engine"
	"github.com/alejandrodnm/quantrail/internal/ports"
	"github.com/alejandrodnm/quantrail/internal/publisher"
	"github.com/alejandrodnm/quantrail/internal/strategy"
)

// QuotesClient is the subset of the Quotes Client the driver needs.
type QuotesClient interface {
	GetQuotes(ctx context.Context, source, symbol string, tf domain.Timeframe, t0Ms int64, t1Ms *int64) (domain.BarSeries, error)
}

// Driver runs one backtest task end-to-end.
type Driver struct {
	tasks      ports.TaskStore
	quotes     QuotesClient
	stream     ports.ResultStream
	channel    ports.ControlChannel
	registry   strategy.Registry
	savePeriod time.Duration
	logger     *slog.Logger
}

// New builds a Driver against its collaborators. savePeriod is the
// wall-clock interval between publish+stop-poll checks during the bar
// loop.
func New(tasks ports.TaskStore, quotes QuotesClient, stream ports.ResultStream, channel ports.ControlChannel, registry strategy.Registry, savePeriod time.Duration, logger *slog.Logger) *Driver {
	if savePeriod <= 0 {
		savePeriod = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		tasks: tasks, quotes: quotes, stream: stream, channel: channel,
		registry: registry, savePeriod: savePeriod, logger: logger,
	}
}

// ErrStopped is returned when the run aborted because the task's
// isRunning flag was cleared or a newer worker claimed the result_id.
type ErrStopped struct {
	Reason string
}

func (e ErrStopped) Error() string { return fmt.Sprintf("driver: stopped: %s", e.Reason) }

// Run executes taskID end to end: loads the task, stamps a fresh
// result_id, runs the bar loop, and publishes a final snapshot. The
// returned TradingStats is the zero value whenever Run returns an error.
func (d *Driver) Run(ctx context.Context, taskID int64) (int64, domain.TradingStats, error) {
	task, err := d.tasks.Load(ctx, taskID)
	if err != nil {
		return 0, domain.TradingStats{}, fmt.Errorf("driver: load task %d: %w", taskID, err)
	}

	resultID := uuid.NewString()
	task.ResultID = resultID
	task.IsRunning = true
	if err := d.tasks.Save(ctx, task); err != nil {
		return task.ID, domain.TradingStats{}, fmt.Errorf("driver: stamp result_id: %w", err)
	}

	events := control.New(d.channel, task.ID)

	stats, err := d.run(ctx, task, resultID, events)
	if err != nil {
		publisher.New(d.stream, resultID, emptySnapshot{}, d.logger).SendErrorPacket(ctx, err.Error(), nil)
		_ = events.Errored(ctx, err.Error())
		_ = d.tasks.SendMessage(ctx, task.ID, domain.LevelError, err.Error())
		task.IsRunning = false
		_ = d.tasks.Save(ctx, task)
		return task.ID, stats, err
	}

	task.IsRunning = false
	_ = d.tasks.Save(ctx, task)
	return task.ID, stats, nil
}

func (d *Driver) run(ctx context.Context, task domain.Task, resultID string, events *control.Publisher) (domain.TradingStats, error) {
	strat, ok := d.registry.New(task.FileName)
	if !ok {
		return domain.TradingStats{}, fmt.Errorf("no strategy registered under file_name %q", task.FileName)
	}

	eng, err := engine.New(task, 0)
	if err != nil {
		return domain.TradingStats{}, fmt.Errorf("allocate engine: %w", err)
	}

	var t1 *int64
	if !task.DateEnd.IsZero() {
		v := task.DateEnd.UnixMilli()
		t1 = &v
	}
	series, err := d.quotes.GetQuotes(ctx, task.Source, task.Symbol, task.Timeframe, task.DateStart.UnixMilli(), t1)
	if err != nil {
		return domain.TradingStats{}, fmt.Errorf("fetch bars: %w", err)
	}
	if series.Len() == 0 {
		return domain.TradingStats{}, fmt.Errorf("no bars in range")
	}

	if err := strat.OnStart(ctx, task.Parameters); err != nil {
		return domain.TradingStats{}, fmt.Errorf("strategy.OnStart: %w", err)
	}

	// Built after OnStart so the indicator set reflects whatever periods
	// the strategy resolved from the task's own parameters, not a fixed
	// guess at what it might need.
	ta := strategy.NewTA(strat.RequiredIndicators())

	pub := publisher.New(d.stream, resultID, newLiveSnapshot(eng), d.logger)
	if err := pub.Reset(ctx); err != nil {
		return domain.TradingStats{}, fmt.Errorf("publisher.Reset: %w", err)
	}
	if err := events.Started(ctx); err != nil {
		d.logger.Warn("driver: publish started event failed", "error", err)
	}

	lastSave := time.Now()
	n := series.Len()
	for i := 0; i < n; i++ {
		bar := series.Bar(i)
		ta.Push(bar)
		eng.SetBar(bar.TimeMs, bar.Open, bar.High, bar.Low, bar.Close)

		if err := strat.OnBar(ctx, eng, bar, ta); err != nil {
			return domain.TradingStats{}, fmt.Errorf("strategy.OnBar at bar %d: %w", i, err)
		}

		if time.Since(lastSave) >= d.savePeriod {
			if err := pub.SendChanges(ctx); err != nil {
				d.logger.Warn("driver: publish progress failed", "error", err)
			}
			progress := float64(i+1) / float64(n)
			if err := events.Progress(ctx, progress, task.DateStart.Format(time.RFC3339), time.UnixMilli(bar.TimeMs).Format(time.RFC3339), resultID); err != nil {
				d.logger.Warn("driver: publish progress event failed", "error", err)
			}

			fresh, err := d.tasks.Load(ctx, task.ID)
			if err != nil {
				return domain.TradingStats{}, fmt.Errorf("poll task state: %w", err)
			}
			if !fresh.IsRunning {
				pub.SendCancelPacket(ctx, "stopped by request")
				return domain.TradingStats{}, ErrStopped{Reason: "isRunning cleared"}
			}
			if fresh.ResultID != resultID {
				pub.SendCancelPacket(ctx, "superseded by a newer run")
				return domain.TradingStats{}, ErrStopped{Reason: "result_id superseded"}
			}

			lastSave = time.Now()
		}
	}

	if err := eng.CloseDeals(); err != nil {
		return domain.TradingStats{}, fmt.Errorf("close remaining deals: %w", err)
	}
	if err := strat.OnFinish(ctx, eng); err != nil {
		return domain.TradingStats{}, fmt.Errorf("strategy.OnFinish: %w", err)
	}
	eng.Finish()

	if msgs := eng.CheckTradingResults(); len(msgs) > 0 {
		return domain.TradingStats{}, fmt.Errorf("post-run self-check failed: %v", msgs)
	}

	if err := pub.SendChanges(ctx); err != nil {
		d.logger.Warn("driver: publish final changes failed", "error", err)
	}
	if err := pub.Finish(ctx); err != nil {
		return domain.TradingStats{}, fmt.Errorf("publisher.Finish: %w", err)
	}
	if err := events.Completed(ctx); err != nil {
		d.logger.Warn("driver: publish completed event failed", "error", err)
	}
	return eng.Stats(), nil
}

// emptySnapshot backs the error-path publisher used when run fails
// before (or while) allocating the engine, so an ERROR packet can still
// be emitted without a real Snapshot.
type emptySnapshot struct{}

func (emptySnapshot) Scalars() map[string]any { return nil }
func (emptySnapshot) Trades() []domain.Trade  { return nil }
func (emptySnapshot) Orders() []domain.Order  { return nil }
func (emptySnapshot) Deals() []domain.Deal    { return nil }

type engineSnapshot struct{ eng *engine.Engine }

func newLiveSnapshot(eng *engine.Engine) *engineSnapshot {
	return &engineSnapshot{eng: eng}
}

func (s *engineSnapshot) Scalars() map[string]any {
	return publisher.EngineSnapshot{Stats: s.eng.Stats()}.Scalars()
}
func (s *engineSnapshot) Trades() []domain.Trade { return s.eng.Trades() }
func (s *engineSnapshot) Orders() []domain.Order { return s.eng.Orders() }
func (s *engineSnapshot) Deals() []domain.Deal   { return s.eng.Deals() }
