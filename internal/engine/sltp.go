package engine

import (
	"fmt"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

// EntryLeg is one leg of a deal's entry: Price nil means a market entry,
// which must be the deal's only entry leg.
type EntryLeg struct {
	Volume float64
	Price  *float64
}

// ExitLeg is one stop-loss or take-profit leg: Fraction is the share of
// the deal's target volume this leg covers, in (0, 1]. The leg whose
// price is most extreme (farthest from entry) instead absorbs whatever
// volume the other legs' rounding leaves over.
type ExitLeg struct {
	Fraction float64
	Price    float64
}

// ExecuteDeal opens a deal with one or more entry orders plus optional
// stop-loss and take-profit legs sized as fractions of the filled entry
// volume. A market entry's take-profit legs
// activate immediately; a limit entry's take-profit legs stay pending
// until updateSLTPOrders sees the position open. Returns nil if any leg
// failed validation, after canceling and closing the partially-built deal.
func (e *Engine) ExecuteDeal(side domain.OrderSide, entries []EntryLeg, stopLosses, takeProfits []ExitLeg) (*domain.Deal, error) {
	if !e.priceIsSet {
		return nil, fmt.Errorf("engine: cannot execute deal: current price is not set")
	}

	dealID := e.CreateDeal()

	marketEntryCount := 0
	totalEntryVolume := 0.0
	for _, leg := range entries {
		if leg.Price == nil {
			marketEntryCount++
		}
		totalEntryVolume += leg.Volume
	}
	if marketEntryCount > 0 && len(entries) != 1 {
		return nil, fmt.Errorf("engine: market entry (price=nil) must be the only entry, got %d entries", len(entries))
	}
	if totalEntryVolume <= 0 {
		return nil, fmt.Errorf("engine: total entry volume must be positive, got %v", totalEntryVolume)
	}
	isMarketEntry := marketEntryCount > 0

	// Order ids are collected rather than pointers: every further
	// addOrder call below can grow and reallocate e.orders, which would
	// leave any pointer taken before the last append dangling.
	var entryIDs, stopIDs, takeIDs []int64

	for _, leg := range entries {
		o := domain.Order{
			DealID:     dealID,
			Side:       side,
			Volume:     leg.Volume,
			CreateTime: e.currentTime,
			ModifyTime: e.currentTime,
			Status:     domain.StatusNew,
			Group:      domain.GroupNone,
		}
		if leg.Price == nil {
			o.Type = domain.Market
		} else {
			o.Type = domain.Limit
			price := *leg.Price
			o.Price = &price
		}
		entryIDs = append(entryIDs, e.addOrder(o))
	}

	deal, _ := e.GetDealByID(dealID)
	dealType := domain.Long
	opposite := domain.Sell
	if side == domain.Sell {
		dealType = domain.Short
		opposite = domain.Buy
	}
	deal.Type = &dealType
	deal.EnterVolume = totalEntryVolume

	for _, leg := range stopLosses {
		if leg.Fraction <= 0 || leg.Fraction > 1.0 {
			return nil, fmt.Errorf("engine: stop loss fraction must be in (0, 1], got %v", leg.Fraction)
		}
		fraction := leg.Fraction
		trigger := leg.Price
		o := domain.Order{
			DealID:       dealID,
			Side:         opposite,
			Type:         domain.Stop,
			CreateTime:   e.currentTime,
			ModifyTime:   e.currentTime,
			TriggerPrice: &trigger,
			Volume:       0,
			Status:       domain.StatusNew,
			Group:        domain.GroupStopLoss,
			Fraction:     &fraction,
		}
		stopIDs = append(stopIDs, e.addOrder(o))
	}

	for _, leg := range takeProfits {
		if leg.Fraction <= 0 || leg.Fraction > 1.0 {
			return nil, fmt.Errorf("engine: take profit fraction must be in (0, 1], got %v", leg.Fraction)
		}
		fraction := leg.Fraction
		price := leg.Price
		o := domain.Order{
			DealID:     dealID,
			Side:       opposite,
			Type:       domain.Limit,
			CreateTime: e.currentTime,
			ModifyTime: e.currentTime,
			Price:      &price,
			Volume:     0,
			Status:     domain.StatusNew,
			Group:      domain.GroupTakeProfit,
			Fraction:   &fraction,
		}
		takeIDs = append(takeIDs, e.addOrder(o))
	}

	if len(stopIDs) > 0 {
		e.updateStopLossVolumes(deal, totalEntryVolume)
	}
	if len(takeIDs) > 0 {
		e.updateTakeProfitVolumes(deal, totalEntryVolume)
	}

	var toExecute []*domain.Order
	for _, id := range entryIDs {
		toExecute = append(toExecute, e.orderByID(id))
	}
	for _, id := range stopIDs {
		toExecute = append(toExecute, e.orderByID(id))
	}
	if isMarketEntry {
		for _, id := range takeIDs {
			toExecute = append(toExecute, e.orderByID(id))
		}
	}

	errCount, err := e.validateOrders(toExecute)
	if err != nil {
		return nil, err
	}
	if errCount > 0 {
		e.CloseDeal(dealID)
		return nil, nil
	}

	executed := e.executeOrdersSLTP(toExecute)

	for _, o := range executed {
		if o.Status == domain.StatusError {
			e.CloseDeal(dealID)
			return nil, nil
		}
	}

	return e.GetDealByID(dealID)
}

// findExtremeStopOrder returns the stop-loss leg farthest from the deal's
// entry price (lowest trigger for a LONG, highest for a SHORT): the leg
// that absorbs the rounding remainder.
func (e *Engine) findExtremeStopOrder(deal *domain.Deal) *domain.Order {
	var extreme *domain.Order
	for _, o := range e.dealOrders(deal.DealID) {
		if o.Group != domain.GroupStopLoss {
			continue
		}
		if extreme == nil {
			extreme = o
			continue
		}
		if *deal.Type == domain.Long {
			if *o.TriggerPrice < *extreme.TriggerPrice {
				extreme = o
			}
		} else {
			if *o.TriggerPrice > *extreme.TriggerPrice {
				extreme = o
			}
		}
	}
	return extreme
}

// findExtremeTakeOrder returns the take-profit leg farthest from the
// deal's entry price (highest price for a LONG, lowest for a SHORT).
func (e *Engine) findExtremeTakeOrder(deal *domain.Deal) *domain.Order {
	var extreme *domain.Order
	for _, o := range e.dealOrders(deal.DealID) {
		if o.Group != domain.GroupTakeProfit {
			continue
		}
		if extreme == nil {
			extreme = o
			continue
		}
		if *deal.Type == domain.Long {
			if *o.Price > *extreme.Price {
				extreme = o
			}
		} else {
			if *o.Price < *extreme.Price {
				extreme = o
			}
		}
	}
	return extreme
}

// unexecutedEntryLimitVolume sums the volume of this deal's still-pending
// entry limit orders priced between the current price and the extreme
// stop's trigger, i.e. the volume a stop-loss must still cover if those
// entries eventually fill.
func (e *Engine) unexecutedEntryLimitVolume(deal *domain.Deal, currentPrice, extremeStopPrice float64) float64 {
	volume := 0.0
	for _, o := range e.dealOrders(deal.DealID) {
		if o.Group != domain.GroupNone || o.Type != domain.Limit || o.Price == nil {
			continue
		}
		if o.Status != domain.StatusNew && o.Status != domain.StatusActive {
			continue
		}
		if *deal.Type == domain.Long {
			if currentPrice >= *o.Price && *o.Price >= extremeStopPrice {
				volume += o.Volume
			}
		} else {
			if currentPrice <= *o.Price && *o.Price <= extremeStopPrice {
				volume += o.Volume
			}
		}
	}
	return volume
}

// updateStopLossVolumes resizes every stop-loss leg to fraction*target,
// rounded to the amount precision, except the extreme leg which absorbs
// whatever remainder keeps the legs summing exactly to target.
func (e *Engine) updateStopLossVolumes(deal *domain.Deal, targetVolume float64) {
	stopOrders := e.groupOrders(deal.DealID, domain.GroupStopLoss)
	if len(stopOrders) == 0 {
		return
	}
	extreme := e.findExtremeStopOrder(deal)
	if extreme == nil {
		return
	}
	e.resizeExitLegs(stopOrders, extreme, targetVolume)
}

// updateTakeProfitVolumes resizes take-profit legs the same way
// updateStopLossVolumes resizes stop legs, and returns the legs still in
// NEW status so the caller can activate them.
func (e *Engine) updateTakeProfitVolumes(deal *domain.Deal, targetVolume float64) []*domain.Order {
	takeOrders := e.groupOrders(deal.DealID, domain.GroupTakeProfit)
	if len(takeOrders) == 0 {
		return nil
	}
	extreme := e.findExtremeTakeOrder(deal)
	if extreme == nil {
		return nil
	}
	e.resizeExitLegs(takeOrders, extreme, targetVolume)

	var newOrders []*domain.Order
	for _, o := range takeOrders {
		if o.Status == domain.StatusNew {
			newOrders = append(newOrders, o)
		}
	}
	return newOrders
}

func (e *Engine) groupOrders(dealID int64, group domain.OrderGroup) []*domain.Order {
	var out []*domain.Order
	for _, o := range e.dealOrders(dealID) {
		if o.Group == group {
			out = append(out, o)
		}
	}
	return out
}

func (e *Engine) resizeExitLegs(legs []*domain.Order, extreme *domain.Order, targetVolume float64) {
	volumes := make([]float64, len(legs))
	sum := 0.0
	extremeIdx := -1
	for i, o := range legs {
		if o.OrderID == extreme.OrderID {
			extremeIdx = i
			continue
		}
		v := roundToPrecision(*o.Fraction*targetVolume, e.task.PrecisionAmount)
		volumes[i] = v
		sum += v
	}
	volumes[extremeIdx] = targetVolume - sum

	for i, o := range legs {
		o.Volume = volumes[i]
		o.ModifyTime = e.currentTime
	}
}

// updateSLTPOrders resyncs every active deal's stop-loss and take-profit
// legs to the deal's current (and still-pending-entry) position size, and
// activates any take-profit legs a limit entry has just filled into.
func (e *Engine) updateSLTPOrders() {
	dealIDs := make([]int64, 0, len(e.activeDeals))
	for id := range e.activeDeals {
		dealIDs = append(dealIDs, id)
	}
	for _, dealID := range dealIDs {
		deal, err := e.GetDealByID(dealID)
		if err != nil {
			continue
		}

		if extreme := e.findExtremeStopOrder(deal); extreme != nil && extreme.TriggerPrice != nil {
			unexecuted := e.unexecutedEntryLimitVolume(deal, e.price, *extreme.TriggerPrice)
			target := absf(deal.Quantity) + unexecuted
			e.updateStopLossVolumes(deal, target)
		}

		if absf(deal.Quantity) > 0 {
			newTakes := e.updateTakeProfitVolumes(deal, absf(deal.Quantity))
			if len(newTakes) > 0 {
				e.executeOrdersSLTP(newTakes)
			}
		}
	}
}

// checkAndExecuteOrders runs the per-bar matching pass: first fills any
// triggered limit/stop orders, then reconciles SLTP leg sizes against the
// resulting position.
func (e *Engine) checkAndExecuteOrders(high, low float64) {
	e.executeTriggeredOrders(high, low)
	e.updateSLTPOrders()
}
