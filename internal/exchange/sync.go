package exchange

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/internal/position"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// DefaultKlineTimeFrame is the candle loaded by LoadMarketData.
const DefaultKlineTimeFrame = "1m"

func (m *Manager) live() error {
	if m.adapter == nil {
		return errors.Wrapf(exception.ErrNoAdapter, "exchange: %s", m.Name())
	}
	return nil
}

// UpdateOrderStatus refreshes o. Orders living locally run their fill check
// against the last handled price; exchange orders are queried. Without force,
// orders waiting for a cancel confirmation are left alone.
func (m *Manager) UpdateOrderStatus(ctx context.Context, o *order.Order, force bool) error {
	if o.IsTerminal() {
		return nil
	}
	if m.cfg.Simulated || m.ArmsLocally(o) || o.ExchangeID() == "" {
		if o.Status() == enum.OrderStatusPendingCreation {
			return nil
		}
		return o.Refresh()
	}
	if !force && o.Status() == enum.OrderStatusPendingCancel {
		return nil
	}

	eo, err := m.adapter.GetOrder(ctx, o.ExchangeID(), o.Symbol())
	if err != nil {
		if errors.Is(err, exception.ErrOrderNotFound) {
			logs.Infof("order %s not found on %s yet, kept as %s", o.ID(), m.Name(), o.Status())
			return nil
		}
		return err
	}
	return m.reconcile(o, eo)
}

// RefreshPendingOrders queries every order awaiting its creation
// acknowledgement. It returns how many left the pending state.
func (m *Manager) RefreshPendingOrders(ctx context.Context) (int, error) {
	var (
		acknowledged int
		firstErr     error
	)
	for _, o := range m.orders.Open("") {
		if o.Status() != enum.OrderStatusPendingCreation {
			continue
		}
		if err := m.UpdateOrderStatus(ctx, o, true); err != nil {
			logs.Errorf("refresh pending order %s, err: %+v", o.ID(), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if o.Status() != enum.OrderStatusPendingCreation {
			acknowledged++
		}
	}
	return acknowledged, firstErr
}

// LoadMarket fetches and stores the trading rules of symbol.
func (m *Manager) LoadMarket(ctx context.Context, symbol string) (model.MarketStatus, error) {
	if err := m.live(); err != nil {
		return model.MarketStatus{}, err
	}
	ms, err := m.adapter.GetMarketStatus(ctx, symbol)
	if err != nil {
		return model.MarketStatus{}, err
	}
	if ms.Symbol == "" {
		ms.Symbol = symbol
	}
	if err := m.SetMarketStatus(ms); err != nil {
		return model.MarketStatus{}, err
	}
	stored, _ := m.marketStatus(model.MustParseSymbol(ms.Symbol).String())
	return stored, nil
}

// LoadBalance fetches the account balance. Without forceReplace locally
// reserved funds stay unavailable.
func (m *Manager) LoadBalance(ctx context.Context, forceReplace bool) error {
	if err := m.live(); err != nil {
		return err
	}
	balances, err := m.adapter.GetBalance(ctx)
	if err != nil {
		return err
	}
	m.HandleBalance(balances, forceReplace)
	return nil
}

// LoadContract applies the contract settings on the exchange, when live, and
// registers the contract. Settings the exchange does not support are skipped.
func (m *Manager) LoadContract(ctx context.Context, c position.Contract) error {
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return err
	}
	if !m.cfg.Simulated {
		if err := m.live(); err != nil {
			return err
		}
		steps := []func() error{
			func() error { return m.adapter.SetSymbolLeverage(ctx, c.Symbol, c.Leverage) },
			func() error { return m.adapter.SetSymbolMarginType(ctx, c.Symbol, c.MarginType) },
			func() error { return m.adapter.SetSymbolPositionMode(ctx, c.Symbol, c.PositionMode) },
		}
		for _, step := range steps {
			if err := step(); err != nil && !errors.Is(err, exception.ErrNotSupported) {
				return err
			}
		}
	}
	if err := m.positions.LoadContract(c); err != nil {
		return err
	}
	_, err := m.registry.Add(c.Symbol)
	return err
}

// LoadPositions fetches the positions of symbols and replaces the local ones.
func (m *Manager) LoadPositions(ctx context.Context, symbols []string) error {
	if err := m.live(); err != nil {
		return err
	}
	positions, err := m.adapter.GetPositions(ctx, symbols)
	if err != nil {
		return err
	}
	return m.HandlePositions(positions)
}

// LoadMarketData seeds the mirror of symbol with the exchange order book,
// recent trades, ticker and latest candle. Unsupported endpoints are skipped.
func (m *Manager) LoadMarketData(ctx context.Context, symbol string, limit int) error {
	if err := m.live(); err != nil {
		return err
	}
	skip := func(err error) bool { return err == nil || errors.Is(err, exception.ErrNotSupported) }

	book, err := m.adapter.GetOrderBook(ctx, symbol, limit)
	if !skip(err) {
		return err
	}
	if err == nil {
		if err := m.HandleOrderBook(symbol, book); err != nil {
			return err
		}
	}

	trades, err := m.adapter.GetRecentTrades(ctx, symbol, limit)
	if !skip(err) {
		return err
	}
	if err == nil {
		if _, err := m.HandleRecentTrades(symbol, trades); err != nil {
			return err
		}
	}

	ticker, err := m.adapter.GetPriceTicker(ctx, symbol)
	if !skip(err) {
		return err
	}
	if err == nil {
		if _, err := m.HandleTicker(symbol, ticker); err != nil {
			return err
		}
	}

	candles, err := m.adapter.GetSymbolPrices(ctx, symbol, DefaultKlineTimeFrame, 1, 0)
	if !skip(err) {
		return err
	}
	if len(candles) != 0 {
		return m.HandleKline(symbol, candles[len(candles)-1])
	}
	return nil
}
