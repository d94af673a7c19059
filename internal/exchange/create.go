package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/obs"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/internal/portfolio"
	"github.com/yanun0323/trading-core/internal/position"
	"github.com/yanun0323/trading-core/internal/risk"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// createOrder runs the creation path shared by strategies, chained orders and
// triggered stops. Orders failing any check never enter the orders manager.
func (m *Manager) createOrder(ctx context.Context, p order.Params, checkRisk bool) (*order.Order, error) {
	start := time.Now()
	defer func() { m.metrics.ObserveOrderFlow(time.Since(start)) }()

	sym, err := model.ParseSymbol(p.Symbol)
	if err != nil {
		return nil, m.rejected(p.Symbol, err)
	}
	p.Symbol = sym.String()
	if p.TrailingPercent.IsZero() && m.cfg.TrailingPercent.Sign() > 0 {
		switch p.Type {
		case enum.OrderTypeTrailingStop, enum.OrderTypeTrailingStopLimit:
			p.TrailingPercent = m.cfg.TrailingPercent
		}
	}
	if _, err := m.registry.Add(p.Symbol); err != nil {
		return nil, m.rejected(p.Symbol, err)
	}
	o, err := order.New(m, p)
	if err != nil {
		return nil, m.rejected(p.Symbol, err)
	}

	ms, err := m.MarketStatus(p.Symbol)
	if err != nil {
		return nil, m.rejected(p.Symbol, err)
	}
	if !ms.Active {
		return nil, m.rejected(p.Symbol, errors.Wrapf(exception.ErrMarketClosed, "symbol: %s", p.Symbol))
	}
	if err := ms.Check(o.OriginQuantity(), checkedPrice(o)); err != nil {
		return nil, m.rejected(p.Symbol, err)
	}
	if checkRisk {
		if err := m.checkRisk(o); err != nil {
			return nil, m.rejected(p.Symbol, err)
		}
	}

	if m.cfg.Simulated || m.ArmsLocally(o) {
		if err := m.reserve(o); err != nil {
			return nil, m.rejected(p.Symbol, err)
		}
		if err := m.start(o); err != nil {
			return nil, m.rejected(p.Symbol, err)
		}
		return o, nil
	}
	return m.createOnExchange(ctx, o, p)
}

// checkedPrice is the price market rules apply to at creation.
func checkedPrice(o *order.Order) decimal.Decimal {
	if o.Type() == enum.OrderTypeLimit {
		return o.OriginPrice()
	}
	return decimal.Zero
}

func (m *Manager) rejected(symbol string, err error) error {
	m.metrics.Inc(obs.EventOrderRejected)
	logs.Errorf("create order on %s, err: %+v", symbol, err)
	return &exception.OrderCreationError{Symbol: symbol, Cause: err}
}

// start registers o and initializes it. Funds must already be reserved.
func (m *Manager) start(o *order.Order) error {
	m.orders.Add(o)
	m.metrics.Inc(obs.EventOrderCreated)
	logs.Infof("order created, id: %s, symbol: %s, side: %s, type: %s, quantity: %s, price: %s, status: %s",
		o.ID(), o.Symbol(), o.Side(), o.Type(), o.OriginQuantity(), o.OriginPrice(), o.Status())
	if err := o.Initialize(); err != nil {
		m.portfolio.Release(o)
		m.orders.Remove(o)
		return err
	}
	m.publish(enum.ChannelOrders, o.Symbol(), o.ToDict())
	return nil
}

func (m *Manager) createOnExchange(ctx context.Context, o *order.Order, p order.Params) (*order.Order, error) {
	if err := m.canReserve(o); err != nil {
		return nil, m.rejected(p.Symbol, err)
	}
	req := CreateOrderRequest{
		ClientOrderID: o.ID(),
		Symbol:        o.Symbol(),
		Side:          o.Side(),
		Type:          o.Type(),
		Quantity:      o.OriginQuantity(),
		Price:         p.Price,
		StopPrice:     o.StopPrice(),
		ReduceOnly:    o.ReduceOnly(),
	}
	eo, err := m.sendOrder(ctx, req)
	if err != nil {
		return nil, m.rejected(p.Symbol, err)
	}

	p.ID = o.ID()
	p.ExchangeID = eo.ExchangeID
	if eo.IsComplete() {
		p.Status = eo.Status
		p.Timestamp = eo.Timestamp
		p.Quantity = eo.amount()
		if price := eo.price(); price.Sign() > 0 {
			p.Price = price
		}
	} else {
		p.Status = enum.OrderStatusPendingCreation
	}
	next, err := m.track(p, eo)
	if err != nil {
		return nil, m.rejected(p.Symbol, err)
	}
	return next, nil
}

// sendOrder sends req to the exchange. A market rules violation reloads the
// rules and retries once, as does a retriable network error.
func (m *Manager) sendOrder(ctx context.Context, req CreateOrderRequest) (ExchangeOrder, error) {
	eo, err := m.adapter.CreateOrder(ctx, req)
	if err == nil {
		return eo, nil
	}
	switch {
	case errors.Is(err, exception.ErrMarketRulesViolation):
		logs.Errorf("order on %s violates market rules, reloading rules, err: %+v", req.Symbol, err)
		ms, lerr := m.LoadMarket(ctx, req.Symbol)
		if lerr != nil {
			return ExchangeOrder{}, lerr
		}
		if cerr := ms.Check(req.Quantity, req.Price); cerr != nil {
			return ExchangeOrder{}, cerr
		}
	case exception.IsRetriable(err):
		logs.Errorf("create order on %s failed, retrying once, err: %+v", req.Symbol, err)
	default:
		return ExchangeOrder{}, err
	}
	return m.adapter.CreateOrder(ctx, req)
}

// track starts a local order mirroring an exchange order built from p. Fills
// the exchange already reported are applied after initialization.
func (m *Manager) track(p order.Params, eo ExchangeOrder) (*order.Order, error) {
	partial := p.Status == enum.OrderStatusPartiallyFilled
	if partial {
		p.Status = enum.OrderStatusOpen
	}
	if p.Status == enum.OrderStatusFilled || p.Status == enum.OrderStatusClosed {
		p.FilledQuantity = p.Quantity
		if p.FilledPrice.IsZero() {
			p.FilledPrice = eo.fillPrice(decimal.Zero, decimal.Zero)
		}
		p.Fee = eo.Fee
	}
	o, err := order.New(m, p)
	if err != nil {
		return nil, err
	}
	if err := m.reserve(o); err != nil {
		logs.Errorf("reserve funds of exchange order %s, err: %+v", eo.ExchangeID, err)
	}
	if err := m.start(o); err != nil {
		return nil, err
	}
	if partial && eo.Filled.Sign() > 0 {
		fee := eo.Fee
		if err := o.Fill(eo.Filled, eo.fillPrice(decimal.Zero, decimal.Zero), &fee); err != nil {
			logs.Errorf("apply reported fill of order %s, err: %+v", o.ID(), err)
		}
	}
	return o, nil
}

func (m *Manager) checkRisk(o *order.Order) error {
	start := time.Now()
	d := m.risk.Evaluate(risk.Intent{
		Symbol:     o.Symbol(),
		Side:       o.Side(),
		Type:       o.Type(),
		Quantity:   o.OriginQuantity(),
		Price:      o.OriginPrice(),
		ReduceOnly: o.ReduceOnly(),
	}, m.riskState(o))
	m.metrics.ObserveRiskEval(time.Since(start))
	if d.Allowed {
		return nil
	}
	m.metrics.IncRiskReason(d.Reason)
	return d.Err()
}

// riskState reports the exposure of the order symbol: position size for
// futures, base balance for spot.
func (m *Manager) riskState(o *order.Order) risk.StateView {
	var exposure decimal.Decimal
	if m.isFuture(o.Symbol()) {
		for _, p := range m.positions.Positions(o.Symbol()) {
			exposure = exposure.Add(p.Size())
		}
	} else if sym, err := model.ParseSymbol(o.Symbol()); err == nil {
		exposure = m.portfolio.Portfolio().Asset(sym.Base).Total
	}
	ref, ok := m.registry.MarkPrice(o.Symbol())
	if !ok {
		ref = portfolio.ReferencePrice(o)
	}
	return risk.StateView{Position: exposure, ReferencePrice: ref, Now: m.clock.Now()}
}

// futuresFunds returns the margin and opening fee a futures order locks.
func (m *Manager) futuresFunds(o *order.Order) (string, decimal.Decimal, error) {
	pos, err := m.positions.For(o.Symbol(), o.Side(), o.ReduceOnly())
	if err != nil {
		return "", decimal.Zero, err
	}
	price := portfolio.ReferencePrice(o)
	if price.Sign() <= 0 {
		return "", decimal.Zero, errors.Wrapf(exception.ErrNoPrice, "order: %s", o.ID())
	}
	qty := o.Remaining()
	return pos.Contract().SettlementCurrency(), pos.MarginFor(qty, price).Add(pos.FeeToOpen(qty, price)), nil
}

// reserve locks the funds of o. Reduce only futures orders lock nothing.
func (m *Manager) reserve(o *order.Order) error {
	if o.IsAlreadyCountedInAvailableFunds() {
		return nil
	}
	if !m.isFuture(o.Symbol()) {
		return m.portfolio.Reserve(o)
	}
	if o.ReduceOnly() {
		return nil
	}
	currency, amount, err := m.futuresFunds(o)
	if err != nil {
		return err
	}
	return m.portfolio.Portfolio().Lock(o.ID(), currency, amount, o.Remaining())
}

func (m *Manager) canReserve(o *order.Order) error {
	if !m.isFuture(o.Symbol()) {
		return m.portfolio.CanReserve(o)
	}
	if o.ReduceOnly() {
		return nil
	}
	currency, amount, err := m.futuresFunds(o)
	if err != nil {
		return err
	}
	if available := m.portfolio.Portfolio().Asset(currency).Available; available.LessThan(amount) {
		return errors.Wrapf(exception.ErrMissingFunds, "need %s %s, available: %s", amount, currency, available)
	}
	return nil
}

// settle applies a fill to the portfolio, and to the position of futures
// orders. Position transactions reach the portfolio through the ledger.
func (m *Manager) settle(o *order.Order, quantity, price decimal.Decimal, fee model.Fee) error {
	if !m.isFuture(o.Symbol()) {
		if err := m.portfolio.SettleSpotFill(o, quantity, price, fee); err != nil {
			return err
		}
		m.publish(enum.ChannelPortfolio, o.Symbol(), m.portfolio.Portfolio().Assets())
		return nil
	}

	m.portfolio.Portfolio().Settle(o.ID(), quantity)
	pos, err := m.positions.For(o.Symbol(), o.Side(), o.ReduceOnly())
	if err != nil {
		return err
	}
	if _, err := pos.UpdateFromFill(position.Fill{
		OrderID:    o.ID(),
		Side:       o.Side(),
		Quantity:   quantity,
		Price:      price,
		Fee:        fee,
		ReduceOnly: o.ReduceOnly(),
	}); err != nil {
		return err
	}
	m.syncMargin(pos)
	return nil
}

// syncMargin holds the initial margin of pos out of the available funds.
func (m *Manager) syncMargin(pos *position.Position) {
	owner := pos.Symbol() + "|" + pos.Side().String()
	m.portfolio.Portfolio().SetMargin(owner, pos.Contract().SettlementCurrency(), pos.InitialMargin())
	m.publish(enum.ChannelPositions, pos.Symbol(), pos.ToDict())
	m.publish(enum.ChannelPortfolio, pos.Symbol(), m.portfolio.Portfolio().Assets())
}
