package exchange

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/order"
)

var validate = validator.New()

// ExchangeOrder is an order as reported by the exchange. Pointer fields are
// unset when the exchange left them out.
type ExchangeOrder struct {
	ExchangeID string           `validate:"required"`
	Timestamp  float64          `validate:"required,gt=0"`
	Symbol     string           `validate:"required"`
	Type       enum.OrderType   `validate:"required"`
	Side       enum.OrderSide   `validate:"required"`
	Price      *decimal.Decimal `validate:"required"`
	Amount     *decimal.Decimal `validate:"required"`
	Status     enum.OrderStatus `validate:"required"`
	Remaining  *decimal.Decimal `validate:"required"`

	ClientOrderID string
	StopPrice     decimal.Decimal
	Filled        decimal.Decimal
	Average       decimal.Decimal
	Fee           model.Fee
	ReduceOnly    bool
	Tag           string
}

// IsComplete reports whether every field needed to track the order is
// populated. Remaining may be zero.
func (eo ExchangeOrder) IsComplete() bool {
	if err := validate.Struct(eo); err != nil {
		return false
	}
	return eo.Amount.Sign() > 0 && eo.Type.IsAvailable() && eo.Side.IsAvailable() && eo.Status.IsAvailable()
}

func (eo ExchangeOrder) price() decimal.Decimal {
	if eo.Price == nil {
		return decimal.Zero
	}
	return *eo.Price
}

func (eo ExchangeOrder) amount() decimal.Decimal {
	if eo.Amount == nil {
		return decimal.Zero
	}
	return *eo.Amount
}

// fillPrice returns the price of the part of the order filled beyond
// filled at filledPrice.
func (eo ExchangeOrder) fillPrice(filled, filledPrice decimal.Decimal) decimal.Decimal {
	if eo.Average.Sign() <= 0 {
		if p := eo.price(); p.Sign() > 0 {
			return p
		}
		return filledPrice
	}
	delta := eo.Filled.Sub(filled)
	if delta.Sign() <= 0 || filled.IsZero() {
		return eo.Average
	}
	price := model.Div(eo.Filled.Mul(eo.Average).Sub(filled.Mul(filledPrice)), delta)
	if price.Sign() <= 0 {
		return eo.Average
	}
	return price
}

// Params builds the params of a local order mirroring eo.
func (eo ExchangeOrder) Params() order.Params {
	p := order.Params{
		ID:                 eo.ClientOrderID,
		Symbol:             eo.Symbol,
		Side:               eo.Side,
		Type:               eo.Type,
		Quantity:           eo.amount(),
		Price:              eo.price(),
		StopPrice:          eo.StopPrice,
		ReduceOnly:         eo.ReduceOnly,
		Tag:                eo.Tag,
		ExchangeID:         eo.ExchangeID,
		Status:             eo.Status,
		Timestamp:          eo.Timestamp,
		IsFromExchangeData: true,
	}
	if eo.Status == enum.OrderStatusFilled || eo.Status == enum.OrderStatusClosed {
		p.FilledQuantity = p.Quantity
		p.FilledPrice = eo.Average
		p.Fee = eo.Fee
	}
	if !eo.IsComplete() {
		p.Status = enum.OrderStatusPendingCreation
	}
	return p
}
