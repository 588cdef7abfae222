package domain

// OrderSide is buy or sell.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OrderType distinguishes market, limit and stop orders.
type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
	Stop   OrderType = "stop"
)

// OrderStatus is the order lifecycle state.
type OrderStatus int

const (
	StatusNew      OrderStatus = iota // created, not processed
	StatusActive                      // validated and active (limit/stop only)
	StatusExecuted                    // executed (market immediately, limit/stop after trigger)
	StatusCanceled                    // was active, canceled
	StatusError                       // failed validation
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusActive:
		return "ACTIVE"
	case StatusExecuted:
		return "EXECUTED"
	case StatusCanceled:
		return "CANCELED"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// OrderGroup tags whether an order is a bare entry, a stop-loss leg or a
// take-profit leg of an SLTP deal.
type OrderGroup int

const (
	GroupNone OrderGroup = iota
	GroupStopLoss
	GroupTakeProfit
)

func (g OrderGroup) String() string {
	switch g {
	case GroupNone:
		return "NONE"
	case GroupStopLoss:
		return "STOP_LOSS"
	case GroupTakeProfit:
		return "TAKE_PROFIT"
	default:
		return "UNKNOWN"
	}
}

// DealType is fixed by the side of the first trade that opened the deal.
type DealType string

const (
	Long  DealType = "long"
	Short DealType = "short"
)

// PacketType tags the envelopes the Results Publisher emits on the
// append-only result stream.
type PacketType string

const (
	PacketStart PacketType = "START"
	PacketData  PacketType = "DATA"
	PacketEnd   PacketType = "END"
	PacketError PacketType = "ERROR"
	PacketCancel PacketType = "CANCEL"
)

// MessageLevel tags MESSAGE envelopes on the progress/control channel.
type MessageLevel string

const (
	LevelInfo    MessageLevel = "info"
	LevelWarning MessageLevel = "warning"
	LevelError   MessageLevel = "error"
	LevelSuccess MessageLevel = "success"
	LevelDebug   MessageLevel = "debug"
)
