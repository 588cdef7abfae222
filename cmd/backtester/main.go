package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/quantrail/config"
	"github.com/alejandrodnm/quantrail/internal/barfetcher"
	"github.com/alejandrodnm/quantrail/internal/barstore"
	"github.com/alejandrodnm/quantrail/internal/bus"
	"github.com/alejandrodnm/quantrail/internal/control"
	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/alejandrodnm/quantrail/internal/driver"
	"github.com/alejandrodnm/quantrail/internal/exchange"
	"github.com/alejandrodnm/quantrail/internal/publisher"
	"github.com/alejandrodnm/quantrail/internal/quotes/client"
	"github.com/alejandrodnm/quantrail/internal/quotes/server"
	"github.com/alejandrodnm/quantrail/internal/report"
	"github.com/alejandrodnm/quantrail/internal/strategy"
	"github.com/alejandrodnm/quantrail/internal/taskstore"
)

const (
	inboundQueue  = "quotes:inbound"
	replyPrefix   = "quotes:reply"
	tasksPrefix   = "tasks"
	resultsPrefix = "results"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")

	mode := flag.String("mode", "backtest", "server | backtest | report")

	taskID := flag.Int64("task", 0, "existing task id to run or report on")
	strategyName := flag.String("strategy", "sma_cross", "strategy file_name to run a new task under")
	source := flag.String("source", "binance", "bar source")
	symbol := flag.String("symbol", "BTCUSDT", "symbol")
	timeframe := flag.String("timeframe", "1h", "timeframe")
	dateStart := flag.String("date-start", "", "RFC3339 start time")
	dateEnd := flag.String("date-end", "", "RFC3339 end time (optional, open-ended if empty)")
	feeTaker := flag.Float64("fee-taker", 0.0004, "taker fee rate")
	feeMaker := flag.Float64("fee-maker", 0.0002, "maker fee rate")
	priceStep := flag.Float64("price-step", 0.01, "price tick size")
	precisionAmount := flag.Float64("precision-amount", 0.0001, "amount rounding step")
	precisionPrice := flag.Float64("precision-price", 0.01, "price rounding step")
	slippageSteps := flag.Float64("slippage-steps", 1, "slippage in price-step units")
	fastPeriod := flag.Int("fast-period", 10, "sma_cross fast SMA period")
	slowPeriod := flag.Int("slow-period", 30, "sma_cross slow SMA period")
	orderSize := flag.Float64("order-size", 1.0, "sma_cross order size")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b := bus.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer b.Close()

	switch *mode {
	case "server":
		runServer(ctx, cfg, b)
	case "backtest":
		runBacktest(ctx, b, *taskID, *strategyName, *source, *symbol, *timeframe, *dateStart, *dateEnd,
			*feeTaker, *feeMaker, *priceStep, *precisionAmount, *precisionPrice, *slippageSteps,
			*fastPeriod, *slowPeriod, *orderSize, cfg)
	case "report":
		runReport(ctx, b, *taskID)
	default:
		slog.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg *config.Config, b *bus.Bus) {
	store, err := barstore.Open(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open bar store", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	exchangeClient := exchange.NewClient("https://api.binance.com")
	fetcher := barfetcher.New(exchangeClient, store, cfg.Engine.GapFetchBatchSize)

	svc := server.New(b, store, fetcher, inboundQueue, replyPrefix)

	slog.Info("quotes service starting", "queue", inboundQueue)
	if err := svc.Run(ctx); err != nil {
		slog.Error("quotes service exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("quotes service stopped cleanly")
}

func runBacktest(ctx context.Context, b *bus.Bus, taskID int64, strategyName, source, symbol, timeframe, dateStartStr, dateEndStr string,
	feeTaker, feeMaker, priceStep, precisionAmount, precisionPrice, slippageSteps float64,
	fastPeriod, slowPeriod int, orderSize float64, cfg *config.Config,
) {
	tasks := taskstore.New(b, tasksPrefix)

	task, err := resolveTask(ctx, tasks, taskID, strategyName, source, symbol, timeframe, dateStartStr, dateEndStr,
		feeTaker, feeMaker, priceStep, precisionAmount, precisionPrice, slippageSteps,
		fastPeriod, slowPeriod, orderSize)
	if err != nil {
		slog.Error("failed to resolve task", "err", err)
		os.Exit(1)
	}

	quotesClient := client.New(b, inboundQueue, replyPrefix, cfg.QuotesRequestTimeout())
	stream := publisher.NewRedisStream(b, resultsPrefix, 5*time.Second)
	channel := control.NewRedisChannel(b, tasksPrefix)

	registry := strategy.NewRegistry()
	registry.Register("sma_cross", strategy.NewSMACross)

	d := driver.New(tasks, quotesClient, stream, channel, registry, cfg.SavePeriod(), slog.Default())

	slog.Info("backtest starting", "task_id", task.ID, "file_name", task.FileName)
	_, stats, err := d.Run(ctx, task.ID)
	if err != nil {
		slog.Error("backtest finished with error", "err", err)
		os.Exit(1)
	}

	report.NewConsole(os.Stdout).PrintStats(task.ID, task.ResultID, stats)
}

func runReport(ctx context.Context, b *bus.Bus, taskID int64) {
	if taskID == 0 {
		slog.Error("report mode requires -task")
		os.Exit(1)
	}
	tasks := taskstore.New(b, tasksPrefix)
	task, err := tasks.Load(ctx, taskID)
	if err != nil {
		slog.Error("failed to load task", "err", err, "task_id", taskID)
		os.Exit(1)
	}
	if task.ResultID == "" {
		slog.Error("task has no result yet", "task_id", taskID)
		os.Exit(1)
	}

	stream := publisher.NewRedisStream(b, resultsPrefix, 5*time.Second)
	entries, err := stream.Read(ctx, task.ResultID, "0-0")
	if err != nil {
		slog.Error("failed to read result stream", "err", err)
		os.Exit(1)
	}

	fmt.Printf("task %d, result %s: %d packets on the stream (run a live 'backtest' for a rendered table)\n",
		task.ID, task.ResultID, len(entries))
}

func resolveTask(ctx context.Context, tasks *taskstore.Store, taskID int64, strategyName, source, symbol, timeframe, dateStartStr, dateEndStr string,
	feeTaker, feeMaker, priceStep, precisionAmount, precisionPrice, slippageSteps float64,
	fastPeriod, slowPeriod int, orderSize float64,
) (domain.Task, error) {
	if taskID != 0 {
		return tasks.Load(ctx, taskID)
	}

	tf, err := domain.ParseTimeframe(timeframe)
	if err != nil {
		return domain.Task{}, fmt.Errorf("parse timeframe: %w", err)
	}

	dateStart, err := time.Parse(time.RFC3339, dateStartStr)
	if err != nil {
		return domain.Task{}, fmt.Errorf("parse -date-start (want RFC3339): %w", err)
	}
	var dateEnd time.Time
	if dateEndStr != "" {
		dateEnd, err = time.Parse(time.RFC3339, dateEndStr)
		if err != nil {
			return domain.Task{}, fmt.Errorf("parse -date-end (want RFC3339): %w", err)
		}
	}

	task, err := tasks.New(ctx)
	if err != nil {
		return domain.Task{}, fmt.Errorf("allocate task: %w", err)
	}

	task.FileName = strategyName
	task.Source = source
	task.Symbol = symbol
	task.Timeframe = tf
	task.DateStart = dateStart
	task.DateEnd = dateEnd
	task.FeeTaker = feeTaker
	task.FeeMaker = feeMaker
	task.PriceStep = priceStep
	task.PrecisionAmount = precisionAmount
	task.PrecisionPrice = precisionPrice
	task.SlippageInSteps = slippageSteps
	task.Parameters = map[string]any{
		"fast_period": fastPeriod,
		"slow_period": slowPeriod,
		"order_size":  orderSize,
	}

	if err := tasks.Save(ctx, task); err != nil {
		return domain.Task{}, fmt.Errorf("save task: %w", err)
	}
	return task, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
