package exchange

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/market"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/obs"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/internal/portfolio"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// feed runs handle against the data of symbol and follows up on the mark
// price. It returns the number of price events handle fired.
func (m *Manager) feed(symbol string, handle func(d *market.SymbolData)) (int, error) {
	data, err := m.registry.Add(symbol)
	if err != nil {
		return 0, err
	}
	prevMark, _ := data.MarkPrice()
	pending := data.Events.Pending()

	handle(data)

	fired := max(pending-data.Events.Pending(), 0)
	m.metrics.Add(obs.EventPriceFired, uint64(fired))
	if mark, ok := data.MarkPrice(); ok && !mark.Equal(prevMark) {
		m.onMarkPrice(data.Symbol.String(), mark)
	}
	return fired, nil
}

// onMarkPrice updates positions and portfolio valuation after the mark price
// of symbol changed. Liquidations reach the portfolio through the ledger.
func (m *Manager) onMarkPrice(symbol string, mark decimal.Decimal) {
	if _, err := m.positions.SetMarkPrice(symbol, mark); err != nil {
		logs.Errorf("set mark price of %s positions, err: %+v", symbol, err)
	}
	for _, p := range m.positions.Positions(symbol) {
		m.syncMargin(p)
	}
	m.portfolio.ValueHolder().OnMarkPrice()
	m.publish(enum.ChannelMarkPrice, symbol, mark)
}

// HandleRecentTrades feeds public trades of symbol. Price events satisfied by
// the trades fire before it returns; their orders act on the next turn.
func (m *Manager) HandleRecentTrades(symbol string, trades []model.RecentTrade) (int, error) {
	var added []model.RecentTrade
	fired, err := m.feed(symbol, func(d *market.SymbolData) {
		added = d.HandleRecentTrades(trades)
	})
	if err != nil {
		return 0, err
	}
	if len(added) != 0 {
		last := added[len(added)-1]
		m.metrics.ObserveFeed(model.ToTime(last.Timestamp), m.clock.Now())
		m.publish(enum.ChannelRecentTrades, symbol, added)
	}
	return fired, nil
}

// HandleMarkPrice feeds a mark price of symbol from source.
func (m *Manager) HandleMarkPrice(symbol string, price decimal.Decimal, source enum.MarkPriceSource) (bool, error) {
	if !source.IsAvailable() {
		return false, errors.Wrapf(exception.ErrUnknownPriceSource, "source: %d", source)
	}
	var changed bool
	_, err := m.feed(symbol, func(d *market.SymbolData) {
		changed = d.HandleMarkPrice(price, source)
	})
	return changed, err
}

func (m *Manager) HandleTicker(symbol string, t model.Ticker) (bool, error) {
	var changed bool
	_, err := m.feed(symbol, func(d *market.SymbolData) {
		changed = d.HandleTicker(t)
	})
	if err != nil {
		return false, err
	}
	m.publish(enum.ChannelTicker, symbol, t)
	return changed, nil
}

// HandleOrderBook replaces the book of symbol.
func (m *Manager) HandleOrderBook(symbol string, snapshot model.OrderBookSnapshot) error {
	data, err := m.registry.Add(symbol)
	if err != nil {
		return err
	}
	data.Book.HandleSnapshot(snapshot)
	m.publish(enum.ChannelOrderBook, symbol, snapshot)
	return nil
}

// HandleOrderBookDelta applies level updates to one side of the book of symbol.
func (m *Manager) HandleOrderBookDelta(symbol string, side enum.OrderSide, levels []model.BookLevel, timestamp float64) error {
	data, err := m.registry.Add(symbol)
	if err != nil {
		return err
	}
	data.Book.HandleDelta(side, levels, timestamp)
	m.publish(enum.ChannelOrderBook, symbol, levels)
	return nil
}

func (m *Manager) HandleKline(symbol string, c model.Candle) error {
	data, err := m.registry.Add(symbol)
	if err != nil {
		return err
	}
	data.HandleKline(c)
	m.publish(enum.ChannelKline, symbol, c)
	return nil
}

// HandleFundingRate records the funding rate of symbol. With settle set the
// open positions pay or receive funding at rate.
func (m *Manager) HandleFundingRate(symbol string, rate decimal.Decimal, settle bool) error {
	data, err := m.registry.Add(symbol)
	if err != nil {
		return err
	}
	data.SetFundingRate(rate)
	if settle {
		txs := m.positions.ApplyFunding(symbol, rate)
		if len(txs) != 0 {
			logs.Infof("funding settled on %s, rate: %s, positions: %d", symbol, rate, len(txs))
		}
	} else {
		for _, p := range m.positions.Positions(symbol) {
			p.SetFundingRate(rate)
		}
	}
	for _, p := range m.positions.Positions(symbol) {
		m.syncMargin(p)
	}
	return nil
}

// HandleBalance applies an exchange balance. forceReplace swaps every
// balance and drops local reservations.
func (m *Manager) HandleBalance(balances map[string]portfolio.Asset, forceReplace bool) {
	m.portfolio.Portfolio().UpdateFromBalance(balances, forceReplace)
	m.portfolio.ValueHolder().OnMarkPrice()
	m.publish(enum.ChannelPortfolio, "", m.portfolio.Portfolio().Assets())
}

// HandlePositions replaces local positions with the exchange view.
func (m *Manager) HandlePositions(positions []ExchangePosition) error {
	for _, ep := range positions {
		side := ep.Side
		if !side.IsAvailable() {
			side = enum.PositionSideBoth
		}
		p, err := m.positions.Get(ep.Symbol, side)
		if err != nil {
			return err
		}
		if ep.Leverage.Sign() > 0 && !ep.Leverage.Equal(p.Contract().Leverage) {
			if err := p.SetLeverage(ep.Leverage); err != nil {
				return err
			}
		}
		p.Sync(ep.Size, ep.EntryPrice, ep.MarkPrice)
		m.syncMargin(p)
	}
	return nil
}

// HandleExchangeOrder applies an order update reported by the exchange.
// Orders are matched by exchange id, then by client order id. Unknown complete
// orders are adopted with their funds already counted.
func (m *Manager) HandleExchangeOrder(eo ExchangeOrder) error {
	if eo.ExchangeID == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "exchange order without id")
	}
	o, err := m.orders.GetByExchangeID(eo.ExchangeID)
	if err != nil && eo.ClientOrderID != "" {
		if o, err = m.orders.Get(eo.ClientOrderID); err == nil {
			m.orders.BindExchangeID(o, eo.ExchangeID)
		}
	}
	if err != nil {
		if !errors.Is(err, exception.ErrOrderNotFound) {
			return err
		}
		if !eo.IsComplete() {
			return errors.Wrapf(exception.ErrOrderNotFound, "incomplete unknown order %s", eo.ExchangeID)
		}
		p := eo.Params()
		p.AlreadyCountedInAvailableFunds = true
		if _, err := m.registry.Add(p.Symbol); err != nil {
			return err
		}
		_, err := m.track(p, eo)
		return err
	}
	return m.reconcile(o, eo)
}

// reconcile moves o to the state reported by the exchange: acknowledges a
// pending creation, applies the filled quantity delta at its weighted price
// and ends canceled orders.
func (m *Manager) reconcile(o *order.Order, eo ExchangeOrder) error {
	if o.IsTerminal() {
		return nil
	}
	if o.Status() == enum.OrderStatusPendingCreation {
		if !eo.IsComplete() {
			return nil
		}
		if err := o.Open(); err != nil {
			return err
		}
		logs.Infof("pending order %s acknowledged by %s as %s", o.ID(), m.Name(), eo.ExchangeID)
	}

	filled := eo.Filled
	if (eo.Status == enum.OrderStatusFilled || eo.Status == enum.OrderStatusClosed) && filled.IsZero() {
		filled = o.OriginQuantity()
	}
	if delta := filled.Sub(o.FilledQuantity()); delta.Sign() > 0 {
		price := eo.fillPrice(o.FilledQuantity(), o.FilledPrice())
		if price.Sign() <= 0 {
			price = o.OriginPrice()
		}
		fee := eo.Fee
		fee.Cost = model.MaxDecimal(fee.Cost.Sub(o.Fee().Cost), decimal.Zero)
		if err := o.Fill(delta, price, &fee); err != nil {
			return err
		}
	}
	if eo.Status.IsCanceledFamily() {
		return o.Cancel(eo.Status)
	}
	return nil
}
