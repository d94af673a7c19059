package enum

type OrderSide uint8

const (
	_orderSide_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_orderSide_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _orderSide_beg && s < _orderSide_end
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return ""
	}
}

// Opposite returns the other side, or the zero value for an unknown side.
func (s OrderSide) Opposite() OrderSide {
	switch s {
	case OrderSideBuy:
		return OrderSideSell
	case OrderSideSell:
		return OrderSideBuy
	default:
		return _orderSide_beg
	}
}

func ParseOrderSide(s string) OrderSide {
	for v := _orderSide_beg + 1; v < _orderSide_end; v++ {
		if v.String() == s {
			return v
		}
	}
	return _orderSide_beg
}

// OrderType is the tagged order kind. Market orders carry their direction in
// the order side.
type OrderType uint8

const (
	_orderType_beg OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
	OrderTypeStopLoss
	OrderTypeStopLossLimit
	OrderTypeTakeProfit
	OrderTypeTakeProfitLimit
	OrderTypeTrailingStop
	OrderTypeTrailingStopLimit
	_orderType_end
)

func (t OrderType) IsAvailable() bool {
	return t > _orderType_beg && t < _orderType_end
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	case OrderTypeStopLoss:
		return "stop_loss"
	case OrderTypeStopLossLimit:
		return "stop_loss_limit"
	case OrderTypeTakeProfit:
		return "take_profit"
	case OrderTypeTakeProfitLimit:
		return "take_profit_limit"
	case OrderTypeTrailingStop:
		return "trailing_stop"
	case OrderTypeTrailingStopLimit:
		return "trailing_stop_limit"
	default:
		return ""
	}
}

func ParseOrderType(s string) OrderType {
	for v := _orderType_beg + 1; v < _orderType_end; v++ {
		if v.String() == s {
			return v
		}
	}
	return _orderType_beg
}

// IsStop reports whether the order waits for a trigger price before acting.
func (t OrderType) IsStop() bool {
	switch t {
	case OrderTypeStopLoss, OrderTypeStopLossLimit, OrderTypeTakeProfit, OrderTypeTakeProfitLimit,
		OrderTypeTrailingStop, OrderTypeTrailingStopLimit:
		return true
	default:
		return false
	}
}

// CreatesLimitOnTrigger reports whether a trigger hands over to a new limit order.
func (t OrderType) CreatesLimitOnTrigger() bool {
	switch t {
	case OrderTypeStopLossLimit, OrderTypeTakeProfitLimit, OrderTypeTrailingStopLimit:
		return true
	default:
		return false
	}
}

type OrderStatus uint8

const (
	_orderStatus_beg OrderStatus = iota
	OrderStatusOpen
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusExpired
	OrderStatusRejected
	OrderStatusPendingCreation
	OrderStatusPendingCancel
	OrderStatusClosed
	_orderStatus_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _orderStatus_beg && s < _orderStatus_end
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOpen:
		return "open"
	case OrderStatusPartiallyFilled:
		return "partially_filled"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusCanceled:
		return "canceled"
	case OrderStatusExpired:
		return "expired"
	case OrderStatusRejected:
		return "rejected"
	case OrderStatusPendingCreation:
		return "pending_creation"
	case OrderStatusPendingCancel:
		return "pending_cancel"
	case OrderStatusClosed:
		return "closed"
	default:
		return ""
	}
}

func ParseOrderStatus(s string) OrderStatus {
	for v := _orderStatus_beg + 1; v < _orderStatus_end; v++ {
		if v.String() == s {
			return v
		}
	}
	return _orderStatus_beg
}

// IsCanceledFamily covers every status that ends an order without a full fill.
func (s OrderStatus) IsCanceledFamily() bool {
	return s == OrderStatusCanceled || s == OrderStatusExpired || s == OrderStatusRejected
}

// OrderState is the lifecycle state held by an order's state machine.
type OrderState uint8

const (
	_orderState_beg OrderState = iota
	OrderStateOpen
	OrderStateFilling
	OrderStateFilled
	OrderStatePartiallyFilled
	OrderStateCanceling
	OrderStateCanceled
	OrderStateClosing
	OrderStateClosed
	OrderStatePendingCreation
	OrderStatePendingCancel
	OrderStateRefreshing
	_orderState_end
)

// OrderStateNew is the state of an order that was never initialized.
const OrderStateNew = _orderState_beg

func (s OrderState) IsAvailable() bool {
	return s > _orderState_beg && s < _orderState_end
}

func (s OrderState) String() string {
	switch s {
	case OrderStateNew:
		return "new"
	case OrderStateOpen:
		return "open"
	case OrderStateFilling:
		return "filling"
	case OrderStateFilled:
		return "filled"
	case OrderStatePartiallyFilled:
		return "partially_filled"
	case OrderStateCanceling:
		return "canceling"
	case OrderStateCanceled:
		return "canceled"
	case OrderStateClosing:
		return "closing"
	case OrderStateClosed:
		return "closed"
	case OrderStatePendingCreation:
		return "pending_creation"
	case OrderStatePendingCancel:
		return "pending_cancel"
	case OrderStateRefreshing:
		return "refreshing"
	default:
		return ""
	}
}

type OrderEvent uint8

const (
	_orderEvent_beg OrderEvent = iota
	OrderEventOpen
	OrderEventAwaitCreation
	OrderEventStartFill
	OrderEventPartialFill
	OrderEventCompleteFill
	OrderEventRequestCancel
	OrderEventStartCancel
	OrderEventCompleteCancel
	OrderEventRefresh
	OrderEventRefreshDone
	OrderEventStartClose
	OrderEventClose
	_orderEvent_end
)

func (e OrderEvent) IsAvailable() bool {
	return e > _orderEvent_beg && e < _orderEvent_end
}

func (e OrderEvent) String() string {
	switch e {
	case OrderEventOpen:
		return "open"
	case OrderEventAwaitCreation:
		return "await_creation"
	case OrderEventStartFill:
		return "start_fill"
	case OrderEventPartialFill:
		return "partial_fill"
	case OrderEventCompleteFill:
		return "complete_fill"
	case OrderEventRequestCancel:
		return "request_cancel"
	case OrderEventStartCancel:
		return "start_cancel"
	case OrderEventCompleteCancel:
		return "complete_cancel"
	case OrderEventRefresh:
		return "refresh"
	case OrderEventRefreshDone:
		return "refresh_done"
	case OrderEventStartClose:
		return "start_close"
	case OrderEventClose:
		return "close"
	default:
		return ""
	}
}

type GroupKind uint8

const (
	_groupKind_beg GroupKind = iota
	GroupKindOneCancelsTheOther
	GroupKindBalanced
	_groupKind_end
)

func (k GroupKind) IsAvailable() bool {
	return k > _groupKind_beg && k < _groupKind_end
}

func (k GroupKind) String() string {
	switch k {
	case GroupKindOneCancelsTheOther:
		return "one_cancels_the_other"
	case GroupKindBalanced:
		return "balanced"
	default:
		return ""
	}
}

// CancelFilter selects orders for a bulk cancel.
type CancelFilter uint8

const (
	_cancelFilter_beg CancelFilter = iota
	CancelFilterAll
	CancelFilterBuy
	CancelFilterSell
	CancelFilterTag
	_cancelFilter_end
)

func (f CancelFilter) IsAvailable() bool {
	return f > _cancelFilter_beg && f < _cancelFilter_end
}

type ChainedStatus uint8

const (
	_chainedStatus_beg ChainedStatus = iota
	ChainedStatusDisarmed
	ChainedStatusCreated
	ChainedStatusRejected
	ChainedStatusDropped
	_chainedStatus_end
)

func (s ChainedStatus) IsAvailable() bool {
	return s > _chainedStatus_beg && s < _chainedStatus_end
}

func (s ChainedStatus) String() string {
	switch s {
	case ChainedStatusDisarmed:
		return "disarmed"
	case ChainedStatusCreated:
		return "created"
	case ChainedStatusRejected:
		return "rejected"
	case ChainedStatusDropped:
		return "dropped"
	default:
		return ""
	}
}
