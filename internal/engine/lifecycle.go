package engine

import (
	"fmt"
	"sort"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

// CancelOrders cancels each ACTIVE order among orderIDs, removing it from
// the matching index; ids that are out of range are skipped, and ids of
// orders already in a terminal or NEW state are returned unchanged.
func (e *Engine) CancelOrders(orderIDs []int64) []domain.Order {
	var out []domain.Order
	for _, id := range orderIDs {
		o := e.orderByID(id)
		if o == nil {
			continue
		}
		if o.Status == domain.StatusActive {
			o.Status = domain.StatusCanceled
			o.ModifyTime = e.currentTime
			e.removeOrderFromIndex(*o)
		}
		out = append(out, *o)
	}
	return out
}

// CloseDeal cancels every active order on deal_id and, if it still holds a
// position, executes a market order to flatten it.
func (e *Engine) CloseDeal(dealID int64) error {
	deal, err := e.GetDealByID(dealID)
	if err != nil {
		return err
	}

	for _, o := range e.dealOrders(dealID) {
		if o.Status == domain.StatusActive {
			o.Status = domain.StatusCanceled
			o.ModifyTime = e.currentTime
			e.removeOrderFromIndex(*o)
		}
	}

	if absf(deal.Quantity) <= e.task.AmountEpsilon() {
		return nil
	}

	closeSide := domain.Sell
	if deal.Type != nil {
		if *deal.Type == domain.Short {
			closeSide = domain.Buy
		}
	} else if deal.Quantity < 0 {
		closeSide = domain.Buy
	}

	o := domain.Order{
		DealID:     dealID,
		Type:       domain.Market,
		CreateTime: e.currentTime,
		ModifyTime: e.currentTime,
		Side:       closeSide,
		Volume:     absf(deal.Quantity),
		Status:     domain.StatusNew,
		Group:      domain.GroupNone,
	}
	id := e.addOrder(o)
	o.OrderID = id
	e.orders[id-1] = o
	e.executeOrdersSLTP([]*domain.Order{&e.orders[id-1]})
	return nil
}

// CloseDeals closes every currently open deal.
func (e *Engine) CloseDeals() error {
	ids := make([]int64, 0, len(e.activeDeals))
	for id := range e.activeDeals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := e.CloseDeal(id); err != nil {
			return err
		}
	}
	return nil
}

// Finish derives ProfitPerDeal/ProfitGross from the run's accumulated
// totals; the driver calls it once after the bar loop ends and all open
// deals have been closed.
func (e *Engine) Finish() {
	e.stats.CalcStat()
}

// CheckTradingResults is the post-run self-check: it recomputes every
// deal's aggregates from its trades and flags any divergence from what
// incremental bookkeeping produced, along with deal/trade-id structural
// invariants. An empty result means the run is internally consistent.
func (e *Engine) CheckTradingResults() []string {
	if len(e.deals) == 0 {
		return nil
	}

	var errs []string

	for i, deal := range e.deals {
		if deal.DealID != int64(i)+1 {
			errs = append(errs, fmt.Sprintf("deal at index %d has deal_id=%d, expected %d", i, deal.DealID, i+1))
		}
	}

	var allTrades []domain.Trade
	for _, deal := range e.deals {
		allTrades = append(allTrades, e.dealTrades(deal.DealID)...)
	}
	if len(allTrades) == 0 {
		return errs
	}

	seen := make(map[int64]int)
	for _, t := range allTrades {
		if t.TradeID <= 0 {
			errs = append(errs, fmt.Sprintf("found trade_id <= 0: %d", t.TradeID))
		}
		seen[t.TradeID]++
	}
	var dupes []int64
	for id, count := range seen {
		if count > 1 {
			dupes = append(dupes, id)
		}
	}
	if len(dupes) > 0 {
		sort.Slice(dupes, func(i, j int) bool { return dupes[i] < dupes[j] })
		errs = append(errs, fmt.Sprintf("duplicate trade_id found: %v", dupes))
	}

	var autoTrades []domain.Trade
	for _, deal := range e.deals {
		if deal.Auto {
			autoTrades = append(autoTrades, e.dealTrades(deal.DealID)...)
		}
	}
	if len(autoTrades) > 0 {
		sorted := append([]domain.Trade(nil), autoTrades...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TimeMs < sorted[j].TimeMs })
		for i := range sorted {
			if sorted[i].TradeID != autoTrades[i].TradeID {
				errs = append(errs, "trade_id are not in ascending order by time in automatic deals")
				break
			}
		}
	}

	var unclosed []int64
	for _, deal := range e.deals {
		if !deal.IsClosed {
			unclosed = append(unclosed, deal.DealID)
		}
	}
	if len(unclosed) > 0 {
		errs = append(errs, fmt.Sprintf("unclosed deals found: %v", unclosed))
	}

	volumeTolerance := e.task.PrecisionAmount / 10.0
	priceTolerance := e.priceEpsilon()

	for _, deal := range e.deals {
		trades := e.dealTrades(deal.DealID)
		if len(trades) == 0 {
			continue
		}

		var buyQty, buyCost, sellQty, sellProceeds, fee float64
		for _, t := range trades {
			fee += t.Fee
			if t.Side == domain.Buy {
				buyQty += t.Qty
				buyCost += t.Sum
			} else {
				sellQty += t.Qty
				sellProceeds += t.Sum
			}
		}

		var recalcBuyAvg, recalcSellAvg *float64
		if buyQty > 0 {
			v := buyCost / buyQty
			recalcBuyAvg = &v
		}
		if sellQty > 0 {
			v := sellProceeds / sellQty
			recalcSellAvg = &v
		}
		var recalcProfit *float64
		if deal.IsClosed {
			v := sellProceeds - buyCost - fee
			recalcProfit = &v
		}

		if absf(deal.BuyQuantity-buyQty) > volumeTolerance {
			errs = append(errs, fmt.Sprintf("deal %d: buy_quantity mismatch (stored=%v, recalc=%v)", deal.DealID, deal.BuyQuantity, buyQty))
		}
		if absf(deal.SellQuantity-sellQty) > volumeTolerance {
			errs = append(errs, fmt.Sprintf("deal %d: sell_quantity mismatch (stored=%v, recalc=%v)", deal.DealID, deal.SellQuantity, sellQty))
		}
		if absf(deal.BuyCost-buyCost) > priceTolerance {
			errs = append(errs, fmt.Sprintf("deal %d: buy_cost mismatch (stored=%v, recalc=%v)", deal.DealID, deal.BuyCost, buyCost))
		}
		if absf(deal.SellProceeds-sellProceeds) > priceTolerance {
			errs = append(errs, fmt.Sprintf("deal %d: sell_proceeds mismatch (stored=%v, recalc=%v)", deal.DealID, deal.SellProceeds, sellProceeds))
		}
		if absf(deal.Fee-fee) > priceTolerance {
			errs = append(errs, fmt.Sprintf("deal %d: fee mismatch (stored=%v, recalc=%v)", deal.DealID, deal.Fee, fee))
		}

		errs = append(errs, comparePtr(deal.DealID, "avg_buy_price", deal.AvgBuyPrice, recalcBuyAvg, priceTolerance)...)
		errs = append(errs, comparePtr(deal.DealID, "avg_sell_price", deal.AvgSellPrice, recalcSellAvg, priceTolerance)...)
		if deal.IsClosed {
			errs = append(errs, comparePtr(deal.DealID, "profit", deal.Profit, recalcProfit, priceTolerance)...)
		}
	}

	return errs
}

func comparePtr(dealID int64, field string, stored, recalc *float64, tolerance float64) []string {
	switch {
	case stored != nil && recalc != nil:
		if absf(*stored-*recalc) > tolerance {
			return []string{fmt.Sprintf("deal %d: %s mismatch (stored=%v, recalc=%v)", dealID, field, *stored, *recalc)}
		}
	case stored == nil && recalc == nil:
		// both unset, consistent
	default:
		return []string{fmt.Sprintf("deal %d: %s mismatch (stored=%v, recalc=%v)", dealID, field, stored, recalc)}
	}
	return nil
}
