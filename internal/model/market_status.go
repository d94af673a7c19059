package model

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/pkg/exception"
)

// DefaultPrecision is used when a market status does not define precisions.
const DefaultPrecision int32 = 8

func (m MarketStatus) pricePlaces() int32 {
	if m.PricePrecision <= 0 {
		return DefaultPrecision
	}
	return m.PricePrecision
}

func (m MarketStatus) amountPlaces() int32 {
	if m.AmountPrecision <= 0 {
		return DefaultPrecision
	}
	return m.AmountPrecision
}

// FloorPrice snaps a price down to the tick precision.
func (m MarketStatus) FloorPrice(p decimal.Decimal) decimal.Decimal {
	return FloorTo(p, m.pricePlaces())
}

// CeilPrice snaps a price up to the tick precision.
func (m MarketStatus) CeilPrice(p decimal.Decimal) decimal.Decimal {
	return CeilTo(p, m.pricePlaces())
}

// FloorAmount snaps a quantity down to the amount precision.
func (m MarketStatus) FloorAmount(q decimal.Decimal) decimal.Decimal {
	return FloorTo(q, m.amountPlaces())
}

// Check validates a quantity and price against the market limits. A zero price
// skips price and cost checks.
func (m MarketStatus) Check(quantity, price decimal.Decimal) error {
	if quantity.Sign() <= 0 {
		return errors.Wrapf(exception.ErrMarketRulesViolation, "quantity must be > 0, quantity: %s", quantity)
	}
	if err := checkLimits("amount", quantity, m.Amount); err != nil {
		return err
	}
	if price.IsZero() {
		return nil
	}
	if err := checkLimits("price", price, m.Price); err != nil {
		return err
	}
	return checkLimits("cost", quantity.Mul(price), m.Cost)
}

func checkLimits(name string, v decimal.Decimal, l Limits) error {
	if l.Min.Sign() > 0 && v.LessThan(l.Min) {
		return errors.Wrapf(exception.ErrMarketRulesViolation, "%s %s below min %s", name, v, l.Min)
	}
	if l.Max.Sign() > 0 && v.GreaterThan(l.Max) {
		return errors.Wrapf(exception.ErrMarketRulesViolation, "%s %s above max %s", name, v, l.Max)
	}
	return nil
}
