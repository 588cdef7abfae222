package domain

// Order is a resting or terminal order. OrderID is assigned by the Engine
// when the order is added to its arena; orders never hold a back-pointer
// to the engine that owns them.
type Order struct {
	OrderID    int64
	DealID     int64 // 0 means no deal yet
	Type       OrderType
	Side       OrderSide
	CreateTime int64
	ModifyTime int64

	Price        *float64 // set for LIMIT
	TriggerPrice *float64 // set for STOP

	Volume       float64
	FilledVolume float64

	Status OrderStatus
	Group  OrderGroup
	// Fraction is set iff Group != GroupNone: the fraction of the SLTP
	// group's target volume this leg is responsible for, except for the
	// extreme leg which absorbs the rounding remainder.
	Fraction *float64

	Errors []string
}

// IsFinal reports whether the order can no longer change state.
func (o Order) IsFinal() bool {
	return o.Status == StatusExecuted || o.Status == StatusCanceled || o.Status == StatusError
}

// HasError appends msg to Errors and marks the order ERROR.
func (o *Order) HasError(msg string) {
	o.Errors = append(o.Errors, msg)
	o.Status = StatusError
}
