package order

import (
	"slices"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/market"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/exception"
)

func (o *Order) transitionLocked(event enum.OrderEvent) error {
	next, err := Transition(o.state, event)
	if err != nil {
		return errors.Wrapf(err, "order: %s", o.id)
	}
	o.state = next
	o.status = statusFor(next, o.status)
	return nil
}

func (o *Order) apply(event enum.OrderEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transitionLocked(event)
}

func (o *Order) now() float64 {
	return model.Timestamp(o.engine.Clock().Now())
}

// Initialize moves a new order into the state matching its status. Open orders
// that trigger locally register their price events.
func (o *Order) Initialize() error {
	o.mu.RLock()
	state, status := o.state, o.status
	o.mu.RUnlock()
	if state != enum.OrderStateNew {
		return errors.Wrapf(exception.ErrInvalidTransition, "order %s already initialized, state: %s", o.id, state)
	}

	switch status {
	case enum.OrderStatusOpen:
		if err := o.apply(enum.OrderEventOpen); err != nil {
			return err
		}
		return o.arm()
	case enum.OrderStatusPartiallyFilled:
		if err := o.apply(enum.OrderEventPartialFill); err != nil {
			return err
		}
		return o.arm()
	case enum.OrderStatusPendingCancel:
		if err := o.apply(enum.OrderEventOpen); err != nil {
			return err
		}
		return o.apply(enum.OrderEventRequestCancel)
	case enum.OrderStatusFilled, enum.OrderStatusClosed:
		o.mu.RLock()
		price := o.filledPrice
		fee := o.fee
		o.mu.RUnlock()
		if price.IsZero() {
			price = o.OriginPrice()
		}
		o.mu.Lock()
		o.filledQuantity = decimal.Zero
		o.fee = model.Fee{}
		o.mu.Unlock()
		return o.applyFill(o.OriginQuantity(), price, &fee)
	case enum.OrderStatusCanceled, enum.OrderStatusExpired, enum.OrderStatusRejected:
		return o.Cancel(status)
	case enum.OrderStatusPendingCreation:
		return o.apply(enum.OrderEventAwaitCreation)
	default:
		return errors.Wrapf(exception.ErrInvalidArgument, "cannot initialize order %s with status %s", o.id, status)
	}
}

// Open acknowledges an order awaiting creation and arms its triggers.
func (o *Order) Open() error {
	if err := o.apply(enum.OrderEventOpen); err != nil {
		return err
	}
	return o.arm()
}

// Fill applies an execution of quantity at price. A fill covering the
// remaining quantity completes the order. A nil fee is computed by the engine.
func (o *Order) Fill(quantity, price decimal.Decimal, fee *model.Fee) error {
	return o.applyFill(quantity, price, fee)
}

func (o *Order) applyFill(quantity, price decimal.Decimal, fee *model.Fee) error {
	if quantity.Sign() <= 0 || price.Sign() <= 0 {
		return errors.Wrapf(exception.ErrInvalidFill, "order: %s, quantity: %s, price: %s", o.id, quantity, price)
	}
	o.mu.Lock()
	if !isFillable(o.state) && o.state != enum.OrderStateNew {
		state := o.state
		o.mu.Unlock()
		return errors.Wrapf(exception.ErrInvalidTransition, "order %s cannot fill in state %s", o.id, state)
	}
	remaining := o.originQuantity.Sub(o.filledQuantity)
	complete := quantity.GreaterThanOrEqual(remaining)
	if complete {
		quantity = remaining
	}
	var events []*market.PriceEvent
	if complete {
		events = o.takeEventsLocked()
	}
	o.mu.Unlock()
	o.removeEvents(events)

	var paid model.Fee
	if fee != nil {
		paid = *fee
	} else {
		paid = o.engine.Fee(o, quantity, price)
	}

	o.mu.Lock()
	event := enum.OrderEventPartialFill
	if complete {
		event = enum.OrderEventStartFill
	}
	if err := o.transitionLocked(event); err != nil {
		o.mu.Unlock()
		return err
	}
	filled := o.filledQuantity.Add(quantity)
	o.filledPrice = model.Div(o.filledQuantity.Mul(o.filledPrice).Add(quantity.Mul(price)), filled)
	o.filledQuantity = filled
	o.totalCost = o.filledPrice.Mul(filled)
	o.fee.Cost = o.fee.Cost.Add(paid.Cost)
	if o.fee.Currency == "" {
		o.fee.Currency = paid.Currency
	}
	o.fee.IsTaker = o.fee.IsTaker || paid.IsTaker
	if complete {
		if err := o.transitionLocked(enum.OrderEventCompleteFill); err != nil {
			o.mu.Unlock()
			return err
		}
		o.executedTime = o.now()
	}
	o.mu.Unlock()

	if !complete {
		o.engine.OnPartialFill(o, quantity, price, paid)
		return nil
	}
	logs.Infof("order filled, id: %s, symbol: %s, side: %s, type: %s, quantity: %s, price: %s", o.id, o.symbol, o.side, o.typ, quantity, price)
	o.engine.OnFill(o, quantity, price, paid)
	return o.close()
}

// CompleteAsReplaced ends a triggered stop whose execution was handed to the
// order replacementID. No funds move for this order.
func (o *Order) CompleteAsReplaced(replacementID string, price decimal.Decimal) error {
	o.mu.Lock()
	if !isFillable(o.state) {
		state := o.state
		o.mu.Unlock()
		return errors.Wrapf(exception.ErrInvalidTransition, "order %s cannot be replaced in state %s", o.id, state)
	}
	events := o.takeEventsLocked()
	quantity := o.originQuantity.Sub(o.filledQuantity)
	if err := o.transitionLocked(enum.OrderEventStartFill); err != nil {
		o.mu.Unlock()
		return err
	}
	o.replacedBy = replacementID
	o.filledPrice = model.Div(o.filledQuantity.Mul(o.filledPrice).Add(quantity.Mul(price)), o.originQuantity)
	o.filledQuantity = o.originQuantity
	o.totalCost = o.filledPrice.Mul(o.filledQuantity)
	if err := o.transitionLocked(enum.OrderEventCompleteFill); err != nil {
		o.mu.Unlock()
		return err
	}
	o.executedTime = o.now()
	o.mu.Unlock()
	o.removeEvents(events)

	logs.Infof("order replaced, id: %s, replacement: %s, symbol: %s", o.id, replacementID, o.symbol)
	o.engine.OnFill(o, quantity, price, model.Fee{})
	return o.close()
}

// Cancel ends the order with status, which must be canceled, expired or
// rejected. Price events are removed before the state changes. Canceling a
// terminal order is a no-op.
func (o *Order) Cancel(status enum.OrderStatus) error {
	if !status.IsCanceledFamily() {
		status = enum.OrderStatusCanceled
	}
	o.mu.Lock()
	if IsTerminalState(o.state) {
		o.mu.Unlock()
		return nil
	}
	events := o.takeEventsLocked()
	o.mu.Unlock()
	o.removeEvents(events)

	o.mu.Lock()
	if err := o.transitionLocked(enum.OrderEventStartCancel); err != nil {
		o.mu.Unlock()
		return err
	}
	if err := o.transitionLocked(enum.OrderEventCompleteCancel); err != nil {
		o.mu.Unlock()
		return err
	}
	o.status = status
	o.canceledTime = o.now()
	o.mu.Unlock()

	logs.Infof("order %s, id: %s, symbol: %s, filled: %s", status, o.id, o.symbol, o.FilledQuantity())
	o.engine.OnCancel(o)
	return o.close()
}

// RequestCancel marks a cancel as sent to the exchange and not yet confirmed.
func (o *Order) RequestCancel() error {
	return o.apply(enum.OrderEventRequestCancel)
}

func (o *Order) close() error {
	if err := o.apply(enum.OrderEventClose); err != nil {
		return err
	}
	o.engine.OnClose(o)
	return nil
}

// Refresh runs the local fill check of every armed trigger against the last
// handled price. Fired triggers act on the next scheduling turn.
func (o *Order) Refresh() error {
	o.mu.Lock()
	if err := o.transitionLocked(enum.OrderEventRefresh); err != nil {
		o.mu.Unlock()
		return err
	}
	events := slices.Clone(o.events)
	o.mu.Unlock()

	if len(events) != 0 {
		data, err := o.engine.SymbolData(o.symbol)
		if err == nil {
			for _, e := range events {
				data.Events.Check(e)
			}
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != enum.OrderStateRefreshing {
		return nil
	}
	if err := o.transitionLocked(enum.OrderEventRefreshDone); err != nil {
		return err
	}
	if o.filledQuantity.Sign() > 0 {
		return o.transitionLocked(enum.OrderEventPartialFill)
	}
	return nil
}

// Edit changes the quantity and, for limit orders, the price of an open order.
// Zero values keep the current ones. Limit triggers are re-armed at the new
// price.
func (o *Order) Edit(quantity, price decimal.Decimal) error {
	o.mu.Lock()
	if !isFillable(o.state) {
		state := o.state
		o.mu.Unlock()
		return errors.Wrapf(exception.ErrOrderNotOpen, "order: %s, state: %s", o.id, state)
	}
	if quantity.Sign() > 0 {
		if quantity.LessThanOrEqual(o.filledQuantity) {
			o.mu.Unlock()
			return errors.Wrapf(exception.ErrInvalidArgument, "order %s quantity %s must exceed filled %s", o.id, quantity, o.filledQuantity)
		}
		o.originQuantity = quantity
	}
	var events []*market.PriceEvent
	if price.Sign() > 0 && !price.Equal(o.originPrice) && o.typ == enum.OrderTypeLimit {
		o.originPrice = price
		events = o.takeEventsLocked()
	}
	o.mu.Unlock()

	if len(events) == 0 {
		return nil
	}
	o.removeEvents(events)
	return o.arm()
}

// UpdatePriceIfOutdated moves the price of a limit order that would fill
// immediately at the current mark price by allowance, snapped to the market
// tick. It reports whether the price changed.
func (o *Order) UpdatePriceIfOutdated(ms model.MarketStatus, allowance decimal.Decimal) bool {
	if o.typ != enum.OrderTypeLimit {
		return false
	}
	data, err := o.engine.SymbolData(o.symbol)
	if err != nil {
		return false
	}
	mark, ok := data.MarkPrice()
	if !ok {
		return false
	}
	o.mu.RLock()
	next, changed := outdatedPrice(o.side, o.originPrice, mark, ms, allowance)
	o.mu.RUnlock()
	if !changed {
		return false
	}
	if err := o.Edit(decimal.Zero, next); err != nil {
		o.mu.Lock()
		o.originPrice = next
		o.mu.Unlock()
	}
	return true
}

func (o *Order) takeEventsLocked() []*market.PriceEvent {
	events := o.events
	o.events = nil
	if o.trailing != nil {
		o.trailing.stopEvent = nil
		o.trailing.trailEvent = nil
	}
	return events
}

func (o *Order) removeEvents(events []*market.PriceEvent) {
	if len(events) == 0 {
		return
	}
	data, err := o.engine.SymbolData(o.symbol)
	if err != nil {
		return
	}
	for _, e := range events {
		data.Events.RemoveEvent(e)
	}
}

func (o *Order) hasEvent(e *market.PriceEvent) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return e != nil && isFillable(o.state) && slices.Contains(o.events, e)
}

// ArmedEvents returns the price events the order currently waits on.
func (o *Order) ArmedEvents() []*market.PriceEvent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.events)
}
