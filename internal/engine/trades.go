package engine

import "github.com/alejandrodnm/quantrail/internal/domain"

// createTrade assigns a trade_id and appends to the trade arena.
func (e *Engine) createTrade(side domain.OrderSide, qty, price, fee float64, orderID int64) domain.Trade {
	t := domain.Trade{
		TradeID: int64(len(e.trades)) + 1,
		OrderID: orderID,
		TimeMs:  e.currentTime,
		Side:    side,
		Price:   price,
		Qty:     qty,
		Fee:     fee,
		Sum:     qty * price,
	}
	e.trades = append(e.trades, t)
	return t
}

// regBuy registers a buy fill, applying the flip-aware deal bookkeeping of
// registerTrade. See regSell for the symmetric case.
func (e *Engine) regBuy(qty, fee, price float64, dealID, orderID int64) ([]int64, []int64) {
	t := e.createTrade(domain.Buy, qty, price, fee, orderID)
	return e.registerTrade(t, dealID)
}

// regSell registers a sell fill. See regBuy.
func (e *Engine) regSell(qty, fee, price float64, dealID, orderID int64) ([]int64, []int64) {
	t := e.createTrade(domain.Sell, qty, price, fee, orderID)
	return e.registerTrade(t, dealID)
}

// addTradeToDeal is the only path by which a trade is folded into a deal:
// it updates the deal's running totals, the run's statistics, and the
// deal/active-deal bookkeeping that follows from a possible closure.
func (e *Engine) addTradeToDeal(deal *domain.Deal, t domain.Trade) {
	e.trades[t.TradeID-1].DealID = deal.DealID
	deal.AddTrade(t)
	e.stats.AddTrade(t)
	e.checkClosed(deal)
}

// checkClosed mirrors the Broker-level check_closed: it asks the deal
// whether it just closed, and if so retires it from activeDeals, cancels
// any orders still resting on it, and folds its outcome into stats.
func (e *Engine) checkClosed(deal *domain.Deal) {
	wasJustClosed := e.dealCheckClosed(deal)
	if wasJustClosed {
		delete(e.activeDeals, deal.DealID)
		e.cancelDealOrders(deal)
		e.stats.AddDeal(*deal)
		if deal.DealID == e.lastAutoDealID {
			e.lastAutoDealID = 0
		}
	} else if !deal.IsClosed {
		e.activeDeals[deal.DealID] = struct{}{}
	}
}

// dealCheckClosed implements Deal.check_closed: a deal closes once its net
// quantity is flat and it has no active bare entry orders left resting.
// Returns whether the deal transitioned from open to closed.
func (e *Engine) dealCheckClosed(deal *domain.Deal) bool {
	if deal.Quantity != 0 {
		return false
	}

	for _, o := range e.dealOrders(deal.DealID) {
		if o.Group == domain.GroupNone && o.Status == domain.StatusActive {
			return false
		}
	}

	wasClosed := deal.IsClosed
	deal.IsClosed = true

	trades := e.dealTrades(deal.DealID)
	closeType := domain.GroupNone
	if len(trades) > 0 {
		last := trades[0]
		for _, t := range trades[1:] {
			if t.TimeMs > last.TimeMs || (t.TimeMs == last.TimeMs && t.TradeID > last.TradeID) {
				last = t
			}
		}
		if last.OrderID != 0 {
			for i := range e.orders {
				if e.orders[i].OrderID == last.OrderID {
					if e.orders[i].Group != domain.GroupNone {
						closeType = e.orders[i].Group
					}
					break
				}
			}
		}
	}
	deal.CloseType = &closeType

	return !wasClosed
}

// dealTrades returns the trades belonging to dealID.
func (e *Engine) dealTrades(dealID int64) []domain.Trade {
	var out []domain.Trade
	for _, t := range e.trades {
		if t.DealID == dealID {
			out = append(out, t)
		}
	}
	return out
}

// cancelDealOrders cancels every ACTIVE or NEW order still resting on
// deal, removing canceled limit/stop orders from the matching index.
func (e *Engine) cancelDealOrders(deal *domain.Deal) {
	for _, o := range e.dealOrders(deal.DealID) {
		if o.Status != domain.StatusActive && o.Status != domain.StatusNew {
			continue
		}
		o.Status = domain.StatusCanceled
		o.ModifyTime = e.currentTime
		if o.Type == domain.Limit || o.Type == domain.Stop {
			e.removeOrderFromIndex(*o)
		}
	}
}

// registerTrade implements the flip-handling core of reg_buy/reg_sell: a
// trade against an explicit deal_id is added directly; otherwise it flows
// into the last open automatic deal, splitting into a closing leg and an
// opening leg when it would flip the position's sign.
func (e *Engine) registerTrade(t domain.Trade, dealID int64) ([]int64, []int64) {
	if dealID > 0 {
		deal, err := e.GetDealByID(dealID)
		if err != nil {
			panic(err)
		}
		e.addTradeToDeal(deal, t)
		return []int64{t.TradeID}, []int64{deal.DealID}
	}

	if len(e.deals) == 0 {
		deal := e.createAutoDeal()
		e.addTradeToDeal(deal, t)
		return []int64{t.TradeID}, []int64{deal.DealID}
	}

	lastDeal := e.getLastOpenAutoDeal()
	if lastDeal == nil {
		deal := e.createAutoDeal()
		e.addTradeToDeal(deal, t)
		return []int64{t.TradeID}, []int64{deal.DealID}
	}

	currentQty := lastDeal.Quantity
	tradeQty := t.Qty
	var newQty float64
	if t.Side == domain.Buy {
		newQty = currentQty + tradeQty
	} else {
		newQty = currentQty - tradeQty
	}

	noFlip := currentQty == 0 || newQty == 0 || (currentQty > 0 && newQty > 0) || (currentQty < 0 && newQty < 0)
	if noFlip {
		e.addTradeToDeal(lastDeal, t)
		return []int64{t.TradeID}, []int64{lastDeal.DealID}
	}

	// Flip: remove the original trade and split it into a leg that closes
	// the current position and a remainder that opens a fresh auto deal.
	for i, existing := range e.trades {
		if existing.TradeID == t.TradeID {
			e.trades = append(e.trades[:i], e.trades[i+1:]...)
			break
		}
	}

	closeVolume := absf(currentQty)
	remainderQuantity := tradeQty - closeVolume

	closeRatio := closeVolume / t.Qty
	closingTrade := t
	closingTrade.TradeID = int64(len(e.trades)) + 1
	closingTrade.Qty = closeVolume
	closingTrade.Fee = t.Fee * closeRatio
	closingTrade.Sum = t.Price * closeVolume
	e.trades = append(e.trades, closingTrade)
	e.addTradeToDeal(lastDeal, closingTrade)

	newDeal := e.createAutoDeal()
	remainderRatio := remainderQuantity / t.Qty
	openingTrade := t
	openingTrade.TradeID = int64(len(e.trades)) + 1
	openingTrade.Qty = remainderQuantity
	openingTrade.Fee = t.Fee * remainderRatio
	openingTrade.Sum = t.Price * remainderQuantity
	e.trades = append(e.trades, openingTrade)
	e.addTradeToDeal(newDeal, openingTrade)

	return []int64{closingTrade.TradeID, openingTrade.TradeID}, []int64{lastDeal.DealID, newDeal.DealID}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
