package publisher

import "github.com/alejandrodnm/quantrail/internal/domain"

// Snapshot is the source object the publisher tracks: a method, not field
// reflection, since the tracked entities are the engine's own domain
// types (Trade, Order, Deal) plus TradingStats' scalars.
type Snapshot interface {
	// Scalars returns the current value of every tracked scalar field,
	// keyed by name.
	Scalars() map[string]any

	// Trades, Orders and Deals are the growing lists tracked alongside
	// the scalars; Publisher sends only the tail grown since the last
	// snapshot, mirroring the original's list-vs-simple-property split.
	Trades() []domain.Trade
	Orders() []domain.Order
	Deals() []domain.Deal
}

// EngineSnapshot adapts *engine.Engine (plus its TradingStats) to
// Snapshot without the publisher package importing internal/engine, so
// unit tests can supply a fake.
type EngineSnapshot struct {
	Stats     domain.TradingStats
	TradeList []domain.Trade
	OrderList []domain.Order
	DealList  []domain.Deal
}

// Scalars implements Snapshot.
func (s EngineSnapshot) Scalars() map[string]any {
	st := s.Stats
	return map[string]any{
		"equity_symbol":     st.EquitySymbol(),
		"equity_usd":        st.EquityUSD(),
		"total_trades":      st.TotalTrades,
		"buy_trades":        st.BuyTrades,
		"sell_trades":       st.SellTrades,
		"max_market_volume": st.MaxMarketVolume,
		"total_fees":        st.TotalFees,
		"profit":            st.Profit,
		"drawdown_max":      st.DrawdownMax,
		"total_deals":       st.TotalDeals,
		"long_deals":        st.LongDeals,
		"short_deals":       st.ShortDeals,
		"profit_deals":      st.ProfitDeals,
		"loss_deals":        st.LossDeals,
		"profit_per_deal":   derefOrNil(st.ProfitPerDeal),
		"profit_gross":      derefOrNil(st.ProfitGross),
		"profit_long":       st.ProfitLong,
		"profit_short":      st.ProfitShort,
	}
}

func derefOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Trades implements Snapshot.
func (s EngineSnapshot) Trades() []domain.Trade { return s.TradeList }

// Orders implements Snapshot.
func (s EngineSnapshot) Orders() []domain.Order { return s.OrderList }

// Deals implements Snapshot.
func (s EngineSnapshot) Deals() []domain.Deal { return s.DealList }
