// Package engine implements the Order & Deal Engine: the per-run arena of
// orders, trades and deals a strategy trades against, plus the matching,
// validation and statistics logic that turns placed orders into fills.
//
// Orders, trades and deals never hold back-pointers to the Engine or to
// each other; every cross-reference is an integer id resolved against the
// Engine's own arenas, so the three domain types stay free of cycles.
package engine

import (
	"fmt"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

// Engine owns the order/trade/deal arenas for one backtest run.
type Engine struct {
	task domain.Task

	trades []domain.Trade
	orders []domain.Order
	deals  []domain.Deal

	activeDeals     map[int64]struct{}
	lastAutoDealID  int64 // 0 means none

	price       float64
	priceIsSet  bool
	currentTime int64

	feeTaker float64
	feeMaker float64
	slippage float64

	stats domain.TradingStats

	// longOrderIDs and its short/stop counterparts index
	// ACTIVE limit and stop orders for per-bar matching. Go's matching loop
	// is a plain slice scan rather than a vectorized comparison, since the
	// arena sizes in a single backtest run never justify batching.
	longOrderIDs    []int64
	shortOrderIDs   []int64
	longStopIDs     []int64
	shortStopIDs    []int64
}

// New builds an Engine for task, with initialEquityUSD seeding the
// statistics. Fee/slippage default the same way the task's own zero value
// would be rejected by a live broker: a zero fee_taker or fee_maker falls
// back to 0.1%, and slippage is derived from slippage_in_steps * price_step.
func New(task domain.Task, initialEquityUSD float64) (*Engine, error) {
	if task.PrecisionAmount <= 0 {
		return nil, fmt.Errorf("engine: precision_amount must be > 0, got %v", task.PrecisionAmount)
	}
	if task.PrecisionPrice <= 0 {
		return nil, fmt.Errorf("engine: precision_price must be > 0, got %v", task.PrecisionPrice)
	}

	e := &Engine{task: task}
	e.reset(initialEquityUSD)
	return e, nil
}

func (e *Engine) reset(initialEquityUSD float64) {
	e.trades = nil
	e.orders = nil
	e.deals = nil
	e.activeDeals = make(map[int64]struct{})
	e.lastAutoDealID = 0
	e.price = 0
	e.priceIsSet = false
	e.currentTime = 0

	e.feeTaker = e.task.FeeTaker
	if e.feeTaker <= 0 {
		e.feeTaker = 0.001
	}
	e.feeMaker = e.task.FeeMaker
	if e.feeMaker <= 0 {
		e.feeMaker = 0.001
	}
	e.slippage = e.task.Slippage()

	e.stats = domain.TradingStats{
		InitialEquityUSD: initialEquityUSD,
		FeeTaker:         e.feeTaker,
		FeeMaker:         e.feeMaker,
		Slippage:         e.slippage,
		PriceStep:        e.task.PriceStep,
		Source:           e.task.Source,
		Symbol:           e.task.Symbol,
		Timeframe:        e.task.Timeframe,
	}

	e.longOrderIDs = nil
	e.shortOrderIDs = nil
	e.longStopIDs = nil
	e.shortStopIDs = nil
}

// Stats returns the running statistics snapshot.
func (e *Engine) Stats() domain.TradingStats {
	return e.stats
}

// SetBar advances the engine to a new bar: it records the close price and
// bar-close time, then runs matching and SLTP reconciliation for the bar's
// high/low range. The driver calls this once per bar, before handing the
// bar to the strategy.
func (e *Engine) SetBar(timeMs int64, open, high, low, close float64) {
	e.currentTime = timeMs
	e.price = close
	e.priceIsSet = true
	e.checkAndExecuteOrders(high, low)
}

// Deals returns a snapshot of every deal created so far, ordered by id.
func (e *Engine) Deals() []domain.Deal {
	out := make([]domain.Deal, len(e.deals))
	copy(out, e.deals)
	return out
}

// Orders returns a snapshot of every order created so far, ordered by id.
func (e *Engine) Orders() []domain.Order {
	out := make([]domain.Order, len(e.orders))
	copy(out, e.orders)
	return out
}

// Trades returns a snapshot of every trade created so far, ordered by id.
func (e *Engine) Trades() []domain.Trade {
	out := make([]domain.Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// GetDealByID returns the deal with the given 1-based id.
func (e *Engine) GetDealByID(dealID int64) (*domain.Deal, error) {
	idx := dealID - 1
	if idx < 0 || int(idx) >= len(e.deals) {
		return nil, fmt.Errorf("engine: deal %d does not exist (len=%d)", dealID, len(e.deals))
	}
	return &e.deals[idx], nil
}

// CreateDeal creates an empty, non-automatic deal for manual trade
// grouping and returns its id.
func (e *Engine) CreateDeal() int64 {
	id := int64(len(e.deals)) + 1
	e.deals = append(e.deals, domain.Deal{DealID: id})
	return id
}

func (e *Engine) createAutoDeal() *domain.Deal {
	id := int64(len(e.deals)) + 1
	e.deals = append(e.deals, domain.Deal{DealID: id, Auto: true})
	e.lastAutoDealID = id
	return &e.deals[id-1]
}

func (e *Engine) getLastOpenAutoDeal() *domain.Deal {
	if e.lastAutoDealID == 0 {
		return nil
	}
	deal, err := e.GetDealByID(e.lastAutoDealID)
	if err != nil {
		e.lastAutoDealID = 0
		return nil
	}
	if deal.IsClosed {
		return nil
	}
	return deal
}

// dealOrders returns the orders belonging to dealID, in creation order.
func (e *Engine) dealOrders(dealID int64) []*domain.Order {
	var out []*domain.Order
	for i := range e.orders {
		if e.orders[i].DealID == dealID {
			out = append(out, &e.orders[i])
		}
	}
	return out
}
