package exchange

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/portfolio"
)

type mockExchange struct {
	mock.Mock
}

var _ Exchange = (*mockExchange)(nil)

func (m *mockExchange) Name() string { return "mock" }

func (m *mockExchange) GetMarketStatus(ctx context.Context, symbol string) (model.MarketStatus, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(model.MarketStatus), args.Error(1)
}

func (m *mockExchange) GetBalance(ctx context.Context) (map[string]portfolio.Asset, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]portfolio.Asset), args.Error(1)
}

func (m *mockExchange) GetSymbolPrices(ctx context.Context, symbol, timeFrame string, limit int, since float64) ([]model.Candle, error) {
	args := m.Called(ctx, symbol, timeFrame, limit, since)
	return args.Get(0).([]model.Candle), args.Error(1)
}

func (m *mockExchange) GetOrderBook(ctx context.Context, symbol string, limit int) (model.OrderBookSnapshot, error) {
	args := m.Called(ctx, symbol, limit)
	return args.Get(0).(model.OrderBookSnapshot), args.Error(1)
}

func (m *mockExchange) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]model.RecentTrade, error) {
	args := m.Called(ctx, symbol, limit)
	return args.Get(0).([]model.RecentTrade), args.Error(1)
}

func (m *mockExchange) GetPriceTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(model.Ticker), args.Error(1)
}

func (m *mockExchange) CreateOrder(ctx context.Context, req CreateOrderRequest) (ExchangeOrder, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ExchangeOrder), args.Error(1)
}

func (m *mockExchange) CancelOrder(ctx context.Context, exchangeID, symbol string, typ enum.OrderType) (enum.OrderStatus, error) {
	args := m.Called(ctx, exchangeID, symbol, typ)
	return args.Get(0).(enum.OrderStatus), args.Error(1)
}

func (m *mockExchange) EditOrder(ctx context.Context, exchangeID, symbol string, quantity, price decimal.Decimal) (ExchangeOrder, error) {
	args := m.Called(ctx, exchangeID, symbol, quantity, price)
	return args.Get(0).(ExchangeOrder), args.Error(1)
}

func (m *mockExchange) GetOrder(ctx context.Context, exchangeID, symbol string) (ExchangeOrder, error) {
	args := m.Called(ctx, exchangeID, symbol)
	return args.Get(0).(ExchangeOrder), args.Error(1)
}

func (m *mockExchange) GetPositions(ctx context.Context, symbols []string) ([]ExchangePosition, error) {
	args := m.Called(ctx, symbols)
	return args.Get(0).([]ExchangePosition), args.Error(1)
}

func (m *mockExchange) SetSymbolLeverage(ctx context.Context, symbol string, leverage decimal.Decimal) error {
	return m.Called(ctx, symbol, leverage).Error(0)
}

func (m *mockExchange) SetSymbolMarginType(ctx context.Context, symbol string, marginType enum.MarginType) error {
	return m.Called(ctx, symbol, marginType).Error(0)
}

func (m *mockExchange) SetSymbolPositionMode(ctx context.Context, symbol string, mode enum.PositionMode) error {
	return m.Called(ctx, symbol, mode).Error(0)
}
