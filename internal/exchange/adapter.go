package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/portfolio"
)

// Exchange is the adapter of a real exchange. Implementations translate
// symbols and wire formats; every error they return should match one of the
// pkg/exception sentinels.
type Exchange interface {
	Name() string

	GetMarketStatus(ctx context.Context, symbol string) (model.MarketStatus, error)
	GetBalance(ctx context.Context) (map[string]portfolio.Asset, error)
	GetSymbolPrices(ctx context.Context, symbol, timeFrame string, limit int, since float64) ([]model.Candle, error)
	GetOrderBook(ctx context.Context, symbol string, limit int) (model.OrderBookSnapshot, error)
	GetRecentTrades(ctx context.Context, symbol string, limit int) ([]model.RecentTrade, error)
	GetPriceTicker(ctx context.Context, symbol string) (model.Ticker, error)

	CreateOrder(ctx context.Context, req CreateOrderRequest) (ExchangeOrder, error)
	CancelOrder(ctx context.Context, exchangeID, symbol string, typ enum.OrderType) (enum.OrderStatus, error)
	// EditOrder returns exception.ErrNotSupported when the exchange has no
	// native edit.
	EditOrder(ctx context.Context, exchangeID, symbol string, quantity, price decimal.Decimal) (ExchangeOrder, error)
	GetOrder(ctx context.Context, exchangeID, symbol string) (ExchangeOrder, error)

	GetPositions(ctx context.Context, symbols []string) ([]ExchangePosition, error)
	SetSymbolLeverage(ctx context.Context, symbol string, leverage decimal.Decimal) error
	SetSymbolMarginType(ctx context.Context, symbol string, marginType enum.MarginType) error
	SetSymbolPositionMode(ctx context.Context, symbol string, mode enum.PositionMode) error
}

// CreateOrderRequest is an order sent to the exchange.
type CreateOrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          enum.OrderSide
	Type          enum.OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	ReduceOnly    bool
}

// ExchangePosition is a position as reported by the exchange. Size is signed.
type ExchangePosition struct {
	Symbol     string
	Side       enum.PositionSide
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	MarkPrice  decimal.Decimal
	Leverage   decimal.Decimal
}
