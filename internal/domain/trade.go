package domain

// Trade is one fill. Immutable once created; trade_id is unique and
// monotonically assigned within the engine that produced it.
type Trade struct {
	TradeID int64 // > 0
	DealID  int64 // 0 until added to a deal
	OrderID int64
	TimeMs  int64
	Side    OrderSide
	Price   float64
	Qty     float64 // > 0
	Fee     float64
	Sum     float64 // Qty * Price
}
