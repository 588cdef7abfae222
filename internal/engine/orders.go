package engine

import (
	"fmt"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

// addOrder assigns an order_id, appends the order to the arena, and
// returns its id. The deal's membership is implicit: dealOrders resolves
// it by scanning DealID, so no separate back-reference needs updating.
func (e *Engine) addOrder(o domain.Order) int64 {
	o.OrderID = int64(len(e.orders)) + 1
	e.orders = append(e.orders, o)
	if o.DealID != 0 {
		if deal, err := e.GetDealByID(o.DealID); err == nil {
			deal.OrderIDs = append(deal.OrderIDs, o.OrderID)
		}
	}
	return o.OrderID
}

func (e *Engine) orderByID(id int64) *domain.Order {
	if id <= 0 || int(id) > len(e.orders) {
		return nil
	}
	return &e.orders[id-1]
}

// executeTrade is the common path behind every fill: it applies slippage
// and the taker/maker fee split, updates equity, and registers the
// resulting trade against a deal (explicit or via flip logic).
func (e *Engine) executeTrade(side domain.OrderSide, qty, price float64, dealID, orderID int64, isMarketOrder bool) ([]int64, []int64) {
	executionPrice := price
	if isMarketOrder && e.slippage > 0 {
		if side == domain.Buy {
			executionPrice = price + e.slippage
		} else {
			executionPrice = price - e.slippage
		}
	}

	feeRate := e.feeMaker
	if isMarketOrder {
		feeRate = e.feeTaker
	}

	tradeAmount := qty * executionPrice
	tradeFee := tradeAmount * feeRate

	if side == domain.Buy {
		return e.regBuy(qty, tradeFee, executionPrice, dealID, orderID)
	}
	return e.regSell(qty, tradeFee, executionPrice, dealID, orderID)
}

// validateOrders checks each order against its type-specific placement
// rules, appending to order.Errors and marking StatusError on failure.
// Returns the number of validation errors found (an order can contribute
// more than one).
func (e *Engine) validateOrders(orders []*domain.Order) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}
	if !e.priceIsSet {
		return 0, fmt.Errorf("engine: cannot validate orders: current price is not set")
	}

	eps := e.priceEpsilon()
	errCount := 0

	for _, order := range orders {
		if order.Volume <= 0 {
			order.HasError(fmt.Sprintf("order quantity must be greater than 0, got %v", order.Volume))
			errCount++
		}
		if order.Price != nil && order.TriggerPrice != nil {
			order.HasError("cannot specify both price and trigger_price")
			errCount++
		}

		switch order.Type {
		case domain.Market:
			if order.Price != nil {
				order.HasError("market order cannot have price set")
				errCount++
			}
			if order.TriggerPrice != nil {
				order.HasError("market order cannot have trigger_price set")
				errCount++
			}
		case domain.Limit:
			if order.TriggerPrice != nil {
				order.HasError("limit order cannot have trigger_price set")
				errCount++
			}
			if order.Price == nil {
				order.HasError("limit order must have price set")
				errCount++
			} else {
				if order.Side == domain.Buy {
					if lt(e.price, *order.Price, eps) {
						order.HasError(fmt.Sprintf("buy limit order price (%v) must be below or equal to current price (%v)", *order.Price, e.price))
						errCount++
					}
				} else {
					if gt(e.price, *order.Price, eps) {
						order.HasError(fmt.Sprintf("sell limit order price (%v) must be above or equal to current price (%v)", *order.Price, e.price))
						errCount++
					}
				}
			}
		case domain.Stop:
			if order.Price != nil {
				order.HasError("stop order cannot have price set")
				errCount++
			}
			if order.TriggerPrice == nil {
				order.HasError("stop order must have trigger_price set")
				errCount++
			} else {
				if order.Side == domain.Buy {
					if gteq(e.price, *order.TriggerPrice, eps) {
						order.HasError(fmt.Sprintf("buy stop order trigger_price (%v) must be above current price (%v)", *order.TriggerPrice, e.price))
						errCount++
					}
				} else {
					if lteq(e.price, *order.TriggerPrice, eps) {
						order.HasError(fmt.Sprintf("sell stop order trigger_price (%v) must be below current price (%v)", *order.TriggerPrice, e.price))
						errCount++
					}
				}
			}
		}
	}

	return errCount, nil
}

// addOrderToIndex registers an ACTIVE limit/stop order in the per-bar
// matching index.
func (e *Engine) addOrderToIndex(o domain.Order) {
	switch o.Type {
	case domain.Stop:
		if o.Side == domain.Buy {
			e.longStopIDs = append(e.longStopIDs, o.OrderID)
		} else {
			e.shortStopIDs = append(e.shortStopIDs, o.OrderID)
		}
	case domain.Limit:
		if o.Side == domain.Buy {
			e.longOrderIDs = append(e.longOrderIDs, o.OrderID)
		} else {
			e.shortOrderIDs = append(e.shortOrderIDs, o.OrderID)
		}
	}
}

// removeOrderFromIndex drops an order from the per-bar matching index.
func (e *Engine) removeOrderFromIndex(o domain.Order) {
	drop := func(ids []int64) []int64 {
		out := ids[:0]
		for _, id := range ids {
			if id != o.OrderID {
				out = append(out, id)
			}
		}
		return out
	}
	switch o.Type {
	case domain.Stop:
		if o.Side == domain.Buy {
			e.longStopIDs = drop(e.longStopIDs)
		} else {
			e.shortStopIDs = drop(e.shortStopIDs)
		}
	case domain.Limit:
		if o.Side == domain.Buy {
			e.longOrderIDs = drop(e.longOrderIDs)
		} else {
			e.shortOrderIDs = drop(e.shortOrderIDs)
		}
	}
}

// executeOrders places or fills each order in turn: market orders fill
// immediately, limit/stop orders become ACTIVE and join the matching
// index. Returns a snapshot copy of every order processed.
func (e *Engine) executeOrders(orders []*domain.Order) ([]domain.Order, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	out := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		switch order.Type {
		case domain.Market:
			if !e.priceIsSet {
				return nil, fmt.Errorf("engine: cannot execute market order: price is not set")
			}
			p := e.price
			order.Price = &p
			order.ModifyTime = e.currentTime
			id := e.addOrder(*order)
			order.OrderID = id

			e.executeTrade(order.Side, order.Volume, e.price, order.DealID, order.OrderID, true)

			if len(e.trades) > 0 {
				last := e.trades[len(e.trades)-1]
				executed := last.Price
				order.Price = &executed
			}
			order.FilledVolume = order.Volume
			order.Status = domain.StatusExecuted
			e.orders[id-1] = *order

		case domain.Limit, domain.Stop:
			order.Status = domain.StatusActive
			id := e.addOrder(*order)
			order.OrderID = id
			e.orders[id-1] = *order
			e.addOrderToIndex(*order)
		}
		out = append(out, *order)
	}
	return out, nil
}

// executeTriggeredOrder fills one ACTIVE limit/stop order that matching
// has determined should trigger on the current bar: a stop fills at its
// trigger price as a market order (slippage, taker fee); a limit fills at
// its own price with no slippage and the maker fee.
func (e *Engine) executeTriggeredOrder(order *domain.Order) {
	if order.Status != domain.StatusActive {
		return
	}

	var executionPrice float64
	var isMarketOrder bool
	switch order.Type {
	case domain.Stop:
		executionPrice = *order.TriggerPrice
		isMarketOrder = true
	case domain.Limit:
		executionPrice = *order.Price
		isMarketOrder = false
	default:
		return
	}

	e.executeTrade(order.Side, order.Volume, executionPrice, order.DealID, order.OrderID, isMarketOrder)

	order.FilledVolume = order.Volume
	order.Price = &executionPrice
	order.Status = domain.StatusExecuted
	order.ModifyTime = e.currentTime
	e.orders[order.OrderID-1] = *order

	e.removeOrderFromIndex(*order)
}

// executeTriggeredOrders scans the matching index for orders that trigger
// against the current bar's high/low range:
//
//	LIMIT  BUY  triggers when low  <= price
//	LIMIT  SELL triggers when high >  price
//	STOP   BUY  triggers when high >= trigger_price
//	STOP   SELL triggers when low  <= trigger_price
func (e *Engine) executeTriggeredOrders(high, low float64) {
	for _, id := range append([]int64(nil), e.longOrderIDs...) {
		o := e.orderByID(id)
		if o != nil && low <= *o.Price {
			e.executeTriggeredOrder(o)
		}
	}
	for _, id := range append([]int64(nil), e.shortOrderIDs...) {
		o := e.orderByID(id)
		if o != nil && high > *o.Price {
			e.executeTriggeredOrder(o)
		}
	}
	for _, id := range append([]int64(nil), e.longStopIDs...) {
		o := e.orderByID(id)
		if o != nil && high >= *o.TriggerPrice {
			e.executeTriggeredOrder(o)
		}
	}
	for _, id := range append([]int64(nil), e.shortStopIDs...) {
		o := e.orderByID(id)
		if o != nil && low <= *o.TriggerPrice {
			e.executeTriggeredOrder(o)
		}
	}
}

// executeOrdersSLTP processes orders already added to the arena via
// addOrder (used for SLTP legs, which must exist in the arena before their
// sibling legs' volumes can reference them): market orders fill
// immediately, limit/stop orders become ACTIVE and join the matching
// index.
func (e *Engine) executeOrdersSLTP(orders []*domain.Order) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		switch order.Type {
		case domain.Market:
			p := e.price
			order.Price = &p
			order.ModifyTime = e.currentTime

			e.executeTrade(order.Side, order.Volume, e.price, order.DealID, order.OrderID, true)

			if len(e.trades) > 0 {
				last := e.trades[len(e.trades)-1]
				executed := last.Price
				order.Price = &executed
			}
			order.FilledVolume = order.Volume
			order.Status = domain.StatusExecuted

		case domain.Limit, domain.Stop:
			order.Status = domain.StatusActive
			order.ModifyTime = e.currentTime
			e.addOrderToIndex(*order)
		}
		e.orders[order.OrderID-1] = *order
		out = append(out, *order)
	}
	return out
}

// Buy places a buy order: trigger_price set makes it a stop, price set
// (without trigger_price) makes it a limit, neither makes it a market
// order. Returns a snapshot of the placed/executed order(s), which may
// carry validation errors instead of having been placed.
func (e *Engine) Buy(qty float64, price, triggerPrice *float64) ([]domain.Order, error) {
	return e.placeOrder(domain.Buy, qty, price, triggerPrice)
}

// Sell places a sell order. See Buy.
func (e *Engine) Sell(qty float64, price, triggerPrice *float64) ([]domain.Order, error) {
	return e.placeOrder(domain.Sell, qty, price, triggerPrice)
}

func (e *Engine) placeOrder(side domain.OrderSide, qty float64, price, triggerPrice *float64) ([]domain.Order, error) {
	if !e.priceIsSet {
		return nil, fmt.Errorf("engine: cannot place order: current price is not set")
	}

	order := domain.Order{
		Side:       side,
		Volume:     qty,
		CreateTime: e.currentTime,
		ModifyTime: e.currentTime,
		Status:     domain.StatusNew,
	}
	switch {
	case triggerPrice != nil:
		order.Type = domain.Stop
		order.TriggerPrice = triggerPrice
	case price != nil:
		order.Type = domain.Limit
		order.Price = price
	default:
		order.Type = domain.Market
	}

	orders := []*domain.Order{&order}
	errCount, err := e.validateOrders(orders)
	if err != nil {
		return nil, err
	}
	if errCount > 0 {
		return []domain.Order{order}, nil
	}

	return e.executeOrders(orders)
}
