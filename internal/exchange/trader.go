package exchange

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/internal/portfolio"
	"github.com/yanun0323/trading-core/internal/position"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// Trader is the surface strategies use to act on an exchange session.
type Trader struct {
	m *Manager
}

func NewTrader(m *Manager) *Trader {
	return &Trader{m: m}
}

func (t *Trader) Manager() *Manager { return t.m }
func (t *Trader) Name() string      { return t.m.Name() }
func (t *Trader) Now() float64      { return t.m.Now() }

// Drain runs the pending scheduling turns of the session.
func (t *Trader) Drain() int { return t.m.Drain() }

// SubmitOrder creates an order after the risk checks. An order with GroupID
// joins that group with its quantity as ratio.
func (t *Trader) SubmitOrder(ctx context.Context, p order.Params) (*order.Order, error) {
	o, err := t.m.createOrder(ctx, p, true)
	if err != nil {
		return nil, err
	}
	if p.GroupID != "" {
		if err := t.m.groups.Add(o, p.GroupID, decimal.Zero); err != nil {
			return o, err
		}
	}
	return o, nil
}

// CancelOrder cancels o. Canceling a terminal order is a no-op.
func (t *Trader) CancelOrder(ctx context.Context, o *order.Order) error {
	return t.m.cancelOrder(ctx, o)
}

// CancelOrders cancels the open orders selected by filter on symbols, or on
// every symbol when symbols is empty. tag is only used by CancelFilterTag.
func (t *Trader) CancelOrders(ctx context.Context, filter enum.CancelFilter, symbols []string, tag string) (int, error) {
	if !filter.IsAvailable() {
		return 0, errors.Wrapf(exception.ErrInvalidArgument, "unknown cancel filter: %d", filter)
	}
	var targets []*order.Order
	if len(symbols) == 0 {
		targets = t.m.orders.Open("")
	} else {
		for _, s := range symbols {
			targets = append(targets, t.m.orders.Open(s)...)
		}
	}

	canceled := 0
	var firstErr error
	for _, o := range targets {
		if !matches(o, filter, tag) || o.IsTerminal() {
			continue
		}
		if err := t.m.cancelOrder(ctx, o); err != nil {
			logs.Errorf("cancel order %s, err: %+v", o.ID(), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		canceled++
	}
	return canceled, firstErr
}

func matches(o *order.Order, filter enum.CancelFilter, tag string) bool {
	switch filter {
	case enum.CancelFilterBuy:
		return o.Side() == enum.OrderSideBuy
	case enum.CancelFilterSell:
		return o.Side() == enum.OrderSideSell
	case enum.CancelFilterTag:
		return o.Tag() == tag
	default:
		return true
	}
}

// EditOrder changes the quantity and limit price of o. Zero values keep the
// current ones. It returns the order carrying the edit, which is a new order
// when the exchange has no native edit.
func (t *Trader) EditOrder(ctx context.Context, o *order.Order, quantity, price decimal.Decimal) (*order.Order, error) {
	return t.m.editOrder(ctx, o, quantity, price)
}

// ChainOrder creates p once trigger reaches on.
func (t *Trader) ChainOrder(trigger *order.Order, on enum.OrderStatus, p order.Params) (*order.Chained, error) {
	return t.m.chained.Add(trigger, on, p)
}

func (t *Trader) CreateGroup(kind enum.GroupKind) (*order.Group, error) {
	return t.m.groups.Create(kind)
}

// AddToGroup puts o in group groupID. A zero ratio uses the order quantity.
func (t *Trader) AddToGroup(o *order.Order, groupID string, ratio decimal.Decimal) error {
	return t.m.groups.Add(o, groupID, ratio)
}

// GetOpenOrders returns the open orders of symbol, or of every symbol when
// symbol is empty.
func (t *Trader) GetOpenOrders(symbol string) []*order.Order {
	return t.m.orders.Open(symbol)
}

func (t *Trader) ClosedOrders() []*order.Order {
	return t.m.orders.Closed()
}

func (t *Trader) GetOrder(id string) (*order.Order, error) {
	return t.m.orders.Get(id)
}

// GetPositions returns the positions of symbol, or of every symbol when
// symbol is empty.
func (t *Trader) GetPositions(symbol string) []*position.Position {
	return t.m.positions.Positions(symbol)
}

func (t *Trader) GetPosition(symbol string, side enum.PositionSide) (*position.Position, error) {
	return t.m.positions.Find(symbol, side)
}

func (t *Trader) Assets() map[string]portfolio.Asset {
	return t.m.portfolio.Portfolio().Assets()
}

// PortfolioValue values the portfolio in the reference market.
func (t *Trader) PortfolioValue() decimal.Decimal {
	return t.m.portfolio.Value()
}

// Subscribe delivers the events published on channel to handler on the
// following scheduling turns.
func (t *Trader) Subscribe(channel enum.Channel, handler bus.Handler) (func(), error) {
	if !channel.IsAvailable() {
		return nil, errors.Wrapf(exception.ErrUnknownChannel, "channel: %d", channel)
	}
	if handler == nil {
		return nil, exception.ErrNilSubscriber
	}
	return t.m.broker.Subscribe(channel, handler), nil
}

// cancelOrder cancels o locally in simulated sessions and for orders the
// exchange does not know, and on the exchange otherwise. A failed exchange
// cancel leaves the order untouched.
func (m *Manager) cancelOrder(ctx context.Context, o *order.Order) error {
	if o.IsTerminal() {
		return nil
	}
	if m.cfg.Simulated || o.ExchangeID() == "" || m.ArmsLocally(o) {
		return o.Cancel(enum.OrderStatusCanceled)
	}

	status, err := m.adapter.CancelOrder(ctx, o.ExchangeID(), o.Symbol(), o.Type())
	switch {
	case err == nil:
	case errors.Is(err, exception.ErrOrderNotFound):
		logs.Infof("order %s not found on %s, treated as canceled", o.ID(), m.Name())
		status = enum.OrderStatusCanceled
	case errors.Is(err, exception.ErrFailedRequest):
		return err
	default:
		return errors.Wrapf(exception.ErrFailedRequest, "cancel order %s, err: %s", o.ID(), err)
	}

	switch {
	case status == enum.OrderStatusPendingCancel:
		return o.RequestCancel()
	case status == enum.OrderStatusFilled || status == enum.OrderStatusClosed:
		return m.UpdateOrderStatus(ctx, o, true)
	default:
		return o.Cancel(status)
	}
}

// editOrder edits o in place when possible, and otherwise cancels it and
// creates its replacement in the same group.
func (m *Manager) editOrder(ctx context.Context, o *order.Order, quantity, price decimal.Decimal) (*order.Order, error) {
	if m.cfg.Simulated || o.ExchangeID() == "" || m.ArmsLocally(o) {
		if err := o.Edit(quantity, price); err != nil {
			return nil, err
		}
		m.relock(o)
		m.publish(enum.ChannelOrders, o.Symbol(), o.ToDict())
		return o, nil
	}

	eo, err := m.adapter.EditOrder(ctx, o.ExchangeID(), o.Symbol(), quantity, price)
	switch {
	case err == nil:
		if err := o.Edit(quantity, price); err != nil {
			return nil, err
		}
		m.relock(o)
		if eo.ExchangeID != "" {
			if err := m.HandleExchangeOrder(eo); err != nil {
				logs.Errorf("reconcile edited order %s, err: %+v", o.ID(), err)
			}
		}
		m.publish(enum.ChannelOrders, o.Symbol(), o.ToDict())
		return o, nil
	case errors.Is(err, exception.ErrNotSupported):
		return m.recreate(ctx, o, quantity, price)
	default:
		return nil, err
	}
}

// relock moves the reserved funds of an edited order to its new size.
func (m *Manager) relock(o *order.Order) {
	if o.IsAlreadyCountedInAvailableFunds() {
		return
	}
	m.portfolio.Release(o)
	if err := m.reserve(o); err != nil {
		logs.Errorf("reserve funds of edited order %s, err: %+v", o.ID(), err)
	}
}

func (m *Manager) recreate(ctx context.Context, o *order.Order, quantity, price decimal.Decimal) (*order.Order, error) {
	remaining := o.Remaining()
	if quantity.Sign() > 0 {
		remaining = quantity.Sub(o.FilledQuantity())
	}
	if price.Sign() <= 0 {
		price = o.OriginPrice()
	}
	p := order.Params{
		Symbol:              o.Symbol(),
		Side:                o.Side(),
		Type:                o.Type(),
		Quantity:            remaining,
		Price:               price,
		StopPrice:           o.StopPrice(),
		LimitPrice:          o.LimitPrice(),
		TrailingPercent:     o.TrailingPercent(),
		ReduceOnly:          o.ReduceOnly(),
		Tag:                 o.Tag(),
		SharedSignalOrderID: o.SharedSignalOrderID(),
	}
	group, ratio := o.GroupID(), m.groups.Ratio(o)
	chained := m.chained.Detach(o)

	if err := m.cancelOrder(ctx, o); err != nil {
		m.chained.Attach(o, chained)
		return nil, err
	}
	next, err := m.createOrder(ctx, p, false)
	if err != nil {
		m.chained.Attach(o, chained)
		m.chained.OnStatus(o, o.Status())
		return nil, err
	}
	m.chained.Attach(next, chained)
	if group != "" {
		if _, err := m.groups.Get(group); err == nil {
			if err := m.groups.Add(next, group, ratio); err != nil {
				logs.Errorf("add recreated order %s to group %s, err: %+v", next.ID(), group, err)
			}
		}
	}
	logs.Infof("order %s recreated as %s, quantity: %s, price: %s", o.ID(), next.ID(), remaining, price)
	return next, nil
}
