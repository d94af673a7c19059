package order

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/market"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// trailingState tracks the best price seen since the stop was last moved.
type trailingState struct {
	reference  decimal.Decimal
	stopPrice  decimal.Decimal
	stopEvent  *market.PriceEvent
	trailEvent *market.PriceEvent
}

// TrailingStopPrice returns the stop that trails reference by percent.
func TrailingStopPrice(side enum.OrderSide, reference, percent decimal.Decimal) decimal.Decimal {
	if side == enum.OrderSideSell {
		return reference.Sub(model.Percent(reference, percent))
	}
	return reference.Add(model.Percent(reference, percent))
}

func (o *Order) armTrailing(data *market.SymbolData) error {
	o.mu.RLock()
	reference := o.originPrice
	o.mu.RUnlock()
	if reference.Sign() <= 0 {
		reference, _ = data.MarkPrice()
	}
	if reference.Sign() <= 0 {
		return errors.Wrapf(exception.ErrNoPrice, "trailing order %s has no reference price", o.id)
	}
	o.installTrailing(data, reference, o.creationTime)
	return nil
}

// installTrailing registers the stop event and the event that moves it.
func (o *Order) installTrailing(data *market.SymbolData, reference decimal.Decimal, minTimestamp float64) {
	stop := TrailingStopPrice(o.side, reference, o.TrailingPercent())
	o.mu.Lock()
	o.trailing = &trailingState{reference: reference, stopPrice: stop}
	o.mu.Unlock()

	var stopEvent, trailEvent *market.PriceEvent
	stopEvent = data.Events.NewEvent(stop, minTimestamp, o.side == enum.OrderSideBuy, false, func() { o.onTrailingStop(stopEvent) })
	trailEvent = data.Events.NewEvent(reference, minTimestamp, o.side == enum.OrderSideSell, false, func() { o.onTrailingMove(trailEvent) })

	o.mu.Lock()
	o.trailing.stopEvent = stopEvent
	o.trailing.trailEvent = trailEvent
	o.events = []*market.PriceEvent{stopEvent, trailEvent}
	o.mu.Unlock()
}

// onTrailingMove follows a favorable price. The reference only moves in the
// favorable direction.
func (o *Order) onTrailingMove(e *market.PriceEvent) {
	if !o.hasEvent(e) {
		return
	}
	data, err := o.engine.SymbolData(o.symbol)
	if err != nil {
		return
	}
	o.mu.Lock()
	reference := o.trailing.reference
	events := o.takeEventsLocked()
	o.mu.Unlock()
	o.removeEvents(events)

	if mark, ok := data.MarkPrice(); ok {
		if o.side == enum.OrderSideSell {
			reference = decimal.Max(reference, mark)
		} else {
			reference = decimal.Min(reference, mark)
		}
	}
	o.installTrailing(data, reference, o.now())
}

func (o *Order) onTrailingStop(e *market.PriceEvent) {
	if !o.hasEvent(e) {
		return
	}
	o.mu.RLock()
	stop := o.trailing.stopPrice
	o.mu.RUnlock()
	o.trigger(stop)
}

// TrailingReference returns the price the trailing stop currently follows.
func (o *Order) TrailingReference() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.trailing == nil {
		return decimal.Zero
	}
	return o.trailing.reference
}
