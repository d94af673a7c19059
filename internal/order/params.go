package order

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// DefaultTrailingPercent is used by trailing stops created without a percent.
var DefaultTrailingPercent = decimal.NewFromInt(5)

// Params describes an order to create, either placed by a strategy or built
// from exchange data.
type Params struct {
	// ID is the local order id, also sent to exchanges as the client order id.
	// A new one is generated when empty.
	ID       string
	Symbol   string
	Side     enum.OrderSide
	Type     enum.OrderType
	Quantity decimal.Decimal
	// Price is the limit price, the reference of a trailing stop, or the trigger
	// of a stop order created without StopPrice.
	Price     decimal.Decimal
	StopPrice decimal.Decimal
	// LimitPrice is the price of the limit order created when a limit variant
	// of a stop triggers.
	LimitPrice      decimal.Decimal
	TrailingPercent decimal.Decimal

	ReduceOnly          bool
	Tag                 string
	SharedSignalOrderID string
	GroupID             string

	ExchangeID                      string
	Status                          enum.OrderStatus
	FilledQuantity                  decimal.Decimal
	FilledPrice                     decimal.Decimal
	Timestamp                       float64
	Fee                             model.Fee
	IsFromExchangeData              bool
	DisableAssociatedOrdersCreation bool
	AlreadyCountedInAvailableFunds  bool
}

// Validate checks the fields each order type requires.
func (p Params) Validate() error {
	if p.Symbol == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "empty symbol")
	}
	if !p.Side.IsAvailable() {
		return errors.Wrapf(exception.ErrInvalidArgument, "unknown side, symbol: %s", p.Symbol)
	}
	if !p.Type.IsAvailable() {
		return errors.Wrapf(exception.ErrOrderUnsupported, "symbol: %s", p.Symbol)
	}
	if p.Quantity.Sign() <= 0 {
		return errors.Wrapf(exception.ErrInvalidArgument, "quantity must be > 0, quantity: %s", p.Quantity)
	}
	if p.FilledQuantity.GreaterThan(p.Quantity) {
		return errors.Wrapf(exception.ErrInvalidArgument, "filled %s exceeds quantity %s", p.FilledQuantity, p.Quantity)
	}
	switch p.Type {
	case enum.OrderTypeLimit:
		if p.Price.Sign() <= 0 {
			return errors.Wrap(exception.ErrInvalidArgument, "limit order requires a price")
		}
	case enum.OrderTypeStopLoss, enum.OrderTypeTakeProfit:
		if p.TriggerPrice().Sign() <= 0 {
			return errors.Wrapf(exception.ErrInvalidArgument, "%s order requires a trigger price", p.Type)
		}
	case enum.OrderTypeStopLossLimit, enum.OrderTypeTakeProfitLimit:
		if p.StopPrice.Sign() <= 0 {
			return errors.Wrapf(exception.ErrInvalidArgument, "%s order requires a stop price", p.Type)
		}
	case enum.OrderTypeTrailingStop, enum.OrderTypeTrailingStopLimit:
		pct := p.trailingPercent()
		if pct.Sign() <= 0 || pct.GreaterThanOrEqual(model.Hundred) {
			return errors.Wrapf(exception.ErrInvalidArgument, "trailing percent must be in (0, 100), percent: %s", pct)
		}
	}
	return nil
}

// TriggerPrice returns the price a stop order waits for.
func (p Params) TriggerPrice() decimal.Decimal {
	if p.StopPrice.Sign() > 0 {
		return p.StopPrice
	}
	return p.Price
}

// limitPrice returns the price of the limit order created on trigger.
func (p Params) limitPrice() decimal.Decimal {
	if p.LimitPrice.Sign() > 0 {
		return p.LimitPrice
	}
	if p.StopPrice.Sign() > 0 && p.Price.Sign() > 0 {
		return p.Price
	}
	return p.TriggerPrice()
}

func (p Params) trailingPercent() decimal.Decimal {
	if p.TrailingPercent.IsZero() {
		return DefaultTrailingPercent
	}
	return p.TrailingPercent
}

// UpdatePriceIfOutdated moves the price of a limit order that would fill
// immediately at mark to mark shifted by allowance, snapped to the market tick.
// It reports whether the price changed.
func (p *Params) UpdatePriceIfOutdated(mark decimal.Decimal, ms model.MarketStatus, allowance decimal.Decimal) bool {
	if p.Type != enum.OrderTypeLimit || mark.Sign() <= 0 {
		return false
	}
	next, ok := outdatedPrice(p.Side, p.Price, mark, ms, allowance)
	if !ok {
		return false
	}
	p.Price = next
	return true
}

func outdatedPrice(side enum.OrderSide, price, mark decimal.Decimal, ms model.MarketStatus, allowance decimal.Decimal) (decimal.Decimal, bool) {
	switch side {
	case enum.OrderSideBuy:
		if price.LessThanOrEqual(mark) {
			return price, false
		}
		return ms.FloorPrice(mark.Mul(model.One.Sub(allowance))), true
	case enum.OrderSideSell:
		if price.GreaterThanOrEqual(mark) {
			return price, false
		}
		return ms.CeilPrice(mark.Mul(model.One.Add(allowance))), true
	default:
		return price, false
	}
}
