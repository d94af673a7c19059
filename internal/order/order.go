package order

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/market"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
)

// Order is a single order and its lifecycle state. Status and state only change
// together, under the order lock.
type Order struct {
	mu     sync.RWMutex
	engine Engine

	id         string
	exchangeID string
	symbol     string
	side       enum.OrderSide
	typ        enum.OrderType
	status     enum.OrderStatus
	state      enum.OrderState

	originQuantity   decimal.Decimal
	filledQuantity   decimal.Decimal
	originPrice      decimal.Decimal
	filledPrice      decimal.Decimal
	stopPrice        decimal.Decimal
	limitPrice       decimal.Decimal
	trailingPercent  decimal.Decimal
	createdLastPrice decimal.Decimal
	totalCost        decimal.Decimal
	fee              model.Fee

	creationTime float64
	canceledTime float64
	executedTime float64

	reduceOnly          bool
	fromExchangeData    bool
	associatedOrders    bool
	countedInAvailable  bool
	sharedSignalOrderID string
	tag                 string
	groupID             string
	replacedBy          string

	events   []*market.PriceEvent
	trailing *trailingState
}

// New builds an order from p. The order does nothing until Initialize.
func New(engine Engine, p Params) (*Order, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	o := &Order{
		engine:              engine,
		id:                  id,
		exchangeID:          p.ExchangeID,
		symbol:              p.Symbol,
		side:                p.Side,
		typ:                 p.Type,
		status:              p.Status,
		originQuantity:      p.Quantity,
		filledQuantity:      p.FilledQuantity,
		filledPrice:         p.FilledPrice,
		fee:                 p.Fee,
		creationTime:        p.Timestamp,
		reduceOnly:          p.ReduceOnly,
		fromExchangeData:    p.IsFromExchangeData,
		associatedOrders:    !p.DisableAssociatedOrdersCreation,
		countedInAvailable:  p.AlreadyCountedInAvailableFunds,
		sharedSignalOrderID: p.SharedSignalOrderID,
		tag:                 p.Tag,
	}
	if !o.status.IsAvailable() {
		o.status = enum.OrderStatusOpen
	}
	if o.creationTime == 0 {
		o.creationTime = model.Timestamp(engine.Clock().Now())
	}
	switch p.Type {
	case enum.OrderTypeLimit, enum.OrderTypeMarket:
		o.originPrice = p.Price
	case enum.OrderTypeStopLoss, enum.OrderTypeTakeProfit:
		o.stopPrice = p.TriggerPrice()
		o.originPrice = o.stopPrice
	case enum.OrderTypeStopLossLimit, enum.OrderTypeTakeProfitLimit:
		o.stopPrice = p.StopPrice
		o.limitPrice = p.limitPrice()
		o.originPrice = o.limitPrice
	case enum.OrderTypeTrailingStop, enum.OrderTypeTrailingStopLimit:
		o.originPrice = p.Price
		o.trailingPercent = p.trailingPercent()
		o.limitPrice = p.LimitPrice
	}
	if data, err := engine.SymbolData(p.Symbol); err == nil {
		if mark, ok := data.MarkPrice(); ok {
			o.createdLastPrice = mark
		}
	}
	if o.createdLastPrice.IsZero() {
		o.createdLastPrice = o.originPrice
	}
	if o.typ == enum.OrderTypeMarket && o.originPrice.IsZero() {
		o.originPrice = o.createdLastPrice
	}
	return o, nil
}

func (o *Order) ID() string { return o.id }

func (o *Order) ExchangeID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.exchangeID
}

func (o *Order) Symbol() string       { return o.symbol }
func (o *Order) Side() enum.OrderSide { return o.side }
func (o *Order) Type() enum.OrderType { return o.typ }
func (o *Order) ReduceOnly() bool     { return o.reduceOnly }
func (o *Order) Tag() string          { return o.tag }
func (o *Order) SharedSignalOrderID() string {
	return o.sharedSignalOrderID
}
func (o *Order) IsFromExchangeData() bool { return o.fromExchangeData }

// EnableAssociatedOrdersCreation reports whether chained orders may be created
// from this order's fills.
func (o *Order) EnableAssociatedOrdersCreation() bool { return o.associatedOrders }

// IsAlreadyCountedInAvailableFunds reports whether the order funds were locked
// before the order entered the session.
func (o *Order) IsAlreadyCountedInAvailableFunds() bool { return o.countedInAvailable }

func (o *Order) Status() enum.OrderStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

func (o *Order) State() enum.OrderState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// StatusAndState reads both values atomically.
func (o *Order) StatusAndState() (enum.OrderStatus, enum.OrderState) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status, o.state
}

func (o *Order) OriginQuantity() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.originQuantity
}

func (o *Order) FilledQuantity() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.filledQuantity
}

// Remaining returns origin quantity minus filled quantity.
func (o *Order) Remaining() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.originQuantity.Sub(o.filledQuantity)
}

func (o *Order) OriginPrice() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.originPrice
}

func (o *Order) FilledPrice() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.filledPrice
}

// StopPrice returns the trigger price of stop orders and the current stop of a
// trailing stop.
func (o *Order) StopPrice() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.trailing != nil {
		return o.trailing.stopPrice
	}
	return o.stopPrice
}

func (o *Order) LimitPrice() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.limitPrice
}

func (o *Order) TrailingPercent() decimal.Decimal { return o.trailingPercent }

// CreatedLastPrice is the mark price seen when the order was created.
func (o *Order) CreatedLastPrice() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.createdLastPrice
}

// TotalCost is filled price times filled quantity.
func (o *Order) TotalCost() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.totalCost
}

func (o *Order) Fee() model.Fee {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fee
}

func (o *Order) CreationTime() float64 { return o.creationTime }

func (o *Order) CanceledTime() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.canceledTime
}

func (o *Order) ExecutedTime() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.executedTime
}

func (o *Order) GroupID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.groupID
}

// ReplacedBy returns the id of the order that took over this triggered stop.
func (o *Order) ReplacedBy() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.replacedBy
}

func (o *Order) IsFilled() bool {
	return o.Status() == enum.OrderStatusFilled
}

func (o *Order) IsCanceled() bool {
	return o.Status().IsCanceledFamily()
}

// IsOpen reports whether the order may still fill.
func (o *Order) IsOpen() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return isFillable(o.state)
}

// IsTerminal reports whether the order can no longer fill or be canceled.
func (o *Order) IsTerminal() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return IsTerminalState(o.state)
}

func (o *Order) IsClosed() bool {
	return o.State() == enum.OrderStateClosed
}

// setGroup binds the order to a group. An order belongs to one group at most.
func (o *Order) setGroup(groupID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.groupID != "" && o.groupID != groupID {
		return false
	}
	o.groupID = groupID
	return true
}

// SetExchangeID records the id assigned by the exchange.
func (o *Order) SetExchangeID(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exchangeID = id
}

// Dict is the serializable view of an order.
type Dict struct {
	ID                  string  `json:"id"`
	ExchangeID          string  `json:"exchangeId,omitempty"`
	Timestamp           float64 `json:"timestamp"`
	Symbol              string  `json:"symbol"`
	Type                string  `json:"type"`
	Side                string  `json:"side"`
	Price               string  `json:"price"`
	StopPrice           string  `json:"stopPrice,omitempty"`
	FilledPrice         string  `json:"filledPrice"`
	Amount              string  `json:"amount"`
	Filled              string  `json:"filled"`
	Remaining           string  `json:"remaining"`
	Status              string  `json:"status"`
	State               string  `json:"state"`
	ReduceOnly          bool    `json:"reduceOnly"`
	Fee                 string  `json:"fee"`
	FeeCurrency         string  `json:"feeCurrency,omitempty"`
	Tag                 string  `json:"tag,omitempty"`
	SharedSignalOrderID string  `json:"sharedSignalOrderId,omitempty"`
	GroupID             string  `json:"groupId,omitempty"`
}

// ToDict returns a consistent snapshot of the order.
func (o *Order) ToDict() Dict {
	o.mu.RLock()
	defer o.mu.RUnlock()
	stop := o.stopPrice
	if o.trailing != nil {
		stop = o.trailing.stopPrice
	}
	d := Dict{
		ID:                  o.id,
		ExchangeID:          o.exchangeID,
		Timestamp:           o.creationTime,
		Symbol:              o.symbol,
		Type:                o.typ.String(),
		Side:                o.side.String(),
		Price:               o.originPrice.String(),
		FilledPrice:         o.filledPrice.String(),
		Amount:              o.originQuantity.String(),
		Filled:              o.filledQuantity.String(),
		Remaining:           o.originQuantity.Sub(o.filledQuantity).String(),
		Status:              o.status.String(),
		State:               o.state.String(),
		ReduceOnly:          o.reduceOnly,
		Fee:                 o.fee.Cost.String(),
		FeeCurrency:         o.fee.Currency,
		Tag:                 o.tag,
		SharedSignalOrderID: o.sharedSignalOrderID,
		GroupID:             o.groupID,
	}
	if !stop.IsZero() {
		d.StopPrice = stop.String()
	}
	return d
}
