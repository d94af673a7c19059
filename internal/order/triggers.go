package order

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/market"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// arm registers the price events the order waits on. Orders managed by the
// exchange are left alone.
func (o *Order) arm() error {
	if !o.engine.ArmsLocally(o) {
		return nil
	}
	data, err := o.engine.SymbolData(o.symbol)
	if err != nil {
		return err
	}

	o.mu.RLock()
	origin, stop := o.originPrice, o.stopPrice
	o.mu.RUnlock()

	switch o.typ {
	case enum.OrderTypeMarket:
		o.engine.Scheduler().Schedule(o.onMarketTurn)
	case enum.OrderTypeLimit:
		o.register(data, origin, o.side == enum.OrderSideSell, true, o.onLimitHit)
	case enum.OrderTypeStopLoss, enum.OrderTypeStopLossLimit:
		o.register(data, stop, o.side == enum.OrderSideBuy, false, o.onStopHit)
	case enum.OrderTypeTakeProfit, enum.OrderTypeTakeProfitLimit:
		o.register(data, stop, o.side == enum.OrderSideSell, false, o.onStopHit)
	case enum.OrderTypeTrailingStop, enum.OrderTypeTrailingStopLimit:
		return o.armTrailing(data)
	default:
		return errors.Wrapf(exception.ErrOrderUnsupported, "order type: %s", o.typ)
	}
	return nil
}

func (o *Order) register(data *market.SymbolData, price decimal.Decimal, above, instant bool, hook func(e *market.PriceEvent)) {
	var e *market.PriceEvent
	e = data.Events.NewEvent(price, o.creationTime, above, instant, func() { hook(e) })
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
}

func (o *Order) onMarketTurn() {
	if !o.IsOpen() {
		return
	}
	price := o.CreatedLastPrice()
	if price.Sign() <= 0 {
		if data, err := o.engine.SymbolData(o.symbol); err == nil {
			price, _ = data.MarkPrice()
		}
	}
	if price.Sign() <= 0 {
		logs.Errorf("market order %s has no price to fill at, err: %+v", o.id, exception.ErrNoPrice)
		return
	}
	if err := o.applyFill(o.Remaining(), price, nil); err != nil {
		logs.Errorf("fill market order %s, err: %+v", o.id, err)
	}
}

func (o *Order) onLimitHit(e *market.PriceEvent) {
	if !o.hasEvent(e) {
		return
	}
	if err := o.applyFill(o.Remaining(), o.OriginPrice(), nil); err != nil {
		logs.Errorf("fill limit order %s, err: %+v", o.id, err)
	}
}

func (o *Order) onStopHit(e *market.PriceEvent) {
	if !o.hasEvent(e) {
		return
	}
	o.mu.RLock()
	stop := o.stopPrice
	o.mu.RUnlock()
	o.trigger(stop)
}

// trigger executes a stop whose trigger price was reached.
func (o *Order) trigger(stop decimal.Decimal) {
	switch {
	case o.typ.CreatesLimitOnTrigger():
		limit := o.LimitPrice()
		if limit.Sign() <= 0 {
			limit = stop
		}
		o.replace(enum.OrderTypeLimit, limit, stop)
	case o.engine.SynthesizesOnTrigger(o):
		o.replace(enum.OrderTypeMarket, stop, stop)
	default:
		if err := o.applyFill(o.Remaining(), stop, nil); err != nil {
			logs.Errorf("fill triggered order %s, err: %+v", o.id, err)
		}
	}
}

func (o *Order) replace(typ enum.OrderType, price, stop decimal.Decimal) {
	o.mu.Lock()
	events := o.takeEventsLocked()
	p := Params{
		Symbol:              o.symbol,
		Side:                o.side,
		Type:                typ,
		Quantity:            o.originQuantity.Sub(o.filledQuantity),
		Price:               price,
		ReduceOnly:          o.reduceOnly,
		Tag:                 o.tag,
		SharedSignalOrderID: o.sharedSignalOrderID,
		Timestamp:           o.now(),
	}
	o.mu.Unlock()
	o.removeEvents(events)

	next, err := o.engine.Replace(o, p)
	if err != nil {
		logs.Errorf("replace triggered order %s with %s, err: %+v", o.id, typ, err)
		if err := o.Cancel(enum.OrderStatusCanceled); err != nil {
			logs.Errorf("cancel triggered order %s, err: %+v", o.id, err)
		}
		return
	}
	if err := o.CompleteAsReplaced(next.ID(), stop); err != nil {
		logs.Errorf("complete replaced order %s, err: %+v", o.id, err)
	}
}
