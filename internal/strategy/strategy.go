// Package strategy defines the plugin contract a backtested trading
// strategy implements, plus a registry the driver resolves a task's
// file_name against.
package strategy

import (
	"context"

	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/alejandrodnm/quantrail/internal/engine"
)

// Broker is the subset of engine.Engine a strategy is allowed to drive:
// placement primitives plus read access to its own trading history. A
// strategy never sees the engine's internal arenas directly.
type Broker interface {
	Buy(qty float64, price, triggerPrice *float64) ([]domain.Order, error)
	Sell(qty float64, price, triggerPrice *float64) ([]domain.Order, error)
	ExecuteDeal(side domain.OrderSide, entries []engine.EntryLeg, stopLosses, takeProfits []engine.ExitLeg) (*domain.Deal, error)
	CancelOrders(orderIDs []int64) []domain.Order
	CloseDeal(dealID int64) error
	Deals() []domain.Deal
	Orders() []domain.Order
	Trades() []domain.Trade
	Stats() domain.TradingStats
}

// Strategy is the typed plugin contract every backtestable strategy
// implements. OnBar is called once per bar after the engine has run its
// own matching pass for that bar, in bar-close-time order.
type Strategy interface {
	// Name is the strategy's registry identifier.
	Name() string

	// ParametersDescription documents the parameter keys a task.Parameters
	// map may set, keyed by parameter name.
	ParametersDescription() map[string]string

	// OnStart runs once before the bar loop, with the task's parameters
	// decoded into strategy-specific state.
	OnStart(ctx context.Context, params map[string]any) error

	// RequiredIndicators returns the named indicators this strategy reads
	// via TA.Value, built from whatever periods OnStart resolved out of
	// the task's parameters. Called once, right after OnStart, so the
	// driver can build a TA proxy scoped to what this run actually needs
	// instead of a fixed indicator set.
	RequiredIndicators() map[string]IndicatorFunc

	// OnBar runs once per bar, after the engine's matching pass.
	OnBar(ctx context.Context, b Broker, bar domain.Bar, ta TA) error

	// OnFinish runs once after the bar loop ends and all open deals have
	// been closed.
	OnFinish(ctx context.Context, b Broker) error
}

// TA exposes the rolling technical-analysis accessors a strategy reads
// against the bars seen so far: a registered-function lookup rather than
// reflection over named indicator implementations.
type TA interface {
	// Value returns the named indicator's current value (e.g. "sma_20",
	// "rsi_14"); ok is false if the indicator isn't registered or doesn't
	// have enough history yet.
	Value(name string) (float64, bool)
}

// Registry maps strategy names to constructors, so a fresh Strategy
// instance backs every run instead of mutable shared state leaking
// between backtests.
type Registry map[string]func() Strategy

// NewRegistry creates an empty registry.
func NewRegistry() Registry {
	return make(Registry)
}

// Register adds a strategy constructor under name.
func (r Registry) Register(name string, constructor func() Strategy) {
	r[name] = constructor
}

// New instantiates the strategy registered under name.
func (r Registry) New(name string) (Strategy, bool) {
	constructor, ok := r[name]
	if !ok {
		return nil, false
	}
	return constructor(), true
}
