package position

import (
	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/model"
)

// calculator holds the contract specific formulas. Sizes are in contracts and
// signed; contract sizes are applied by the callers.
type calculator interface {
	// averagePrice merges a flow of qty at price into an average over total.
	averagePrice(total, average, qty, price decimal.Decimal) decimal.Decimal
	pnl(size, entry, mark decimal.Decimal) decimal.Decimal
	value(size, mark decimal.Decimal) decimal.Decimal
	liquidationPrice(long bool, entry, leverage, mmr, fundingRate decimal.Decimal) decimal.Decimal
	bankruptcyPrice(long bool, entry, leverage decimal.Decimal) decimal.Decimal
	fee(rate, quantity, price decimal.Decimal) decimal.Decimal
}

type linear struct{}

func (linear) averagePrice(total, average, qty, price decimal.Decimal) decimal.Decimal {
	total, qty = total.Abs(), qty.Abs()
	return model.Div(total.Mul(average).Add(qty.Mul(price)), total.Add(qty))
}

func (linear) pnl(size, entry, mark decimal.Decimal) decimal.Decimal {
	return mark.Sub(entry).Mul(size)
}

func (linear) value(size, mark decimal.Decimal) decimal.Decimal {
	return size.Abs().Mul(mark)
}

func (linear) liquidationPrice(long bool, entry, leverage, mmr, fundingRate decimal.Decimal) decimal.Decimal {
	inv := model.Inv(leverage)
	if long {
		return decimal.Max(decimal.Zero, entry.Mul(model.One.Sub(inv).Add(mmr).Add(fundingRate)))
	}
	return entry.Mul(model.One.Add(inv).Sub(mmr).Sub(fundingRate))
}

func (linear) bankruptcyPrice(long bool, entry, leverage decimal.Decimal) decimal.Decimal {
	inv := model.Inv(leverage)
	if long {
		return decimal.Max(decimal.Zero, entry.Mul(model.One.Sub(inv)))
	}
	return entry.Mul(model.One.Add(inv))
}

func (linear) fee(rate, quantity, price decimal.Decimal) decimal.Decimal {
	return rate.Mul(quantity.Abs()).Mul(price)
}

type inverse struct{}

func (inverse) averagePrice(total, average, qty, price decimal.Decimal) decimal.Decimal {
	total, qty = total.Abs(), qty.Abs()
	return model.Div(total.Add(qty), model.Div(total, average).Add(model.Div(qty, price)))
}

func (inverse) pnl(size, entry, mark decimal.Decimal) decimal.Decimal {
	return size.Mul(model.Inv(entry).Sub(model.Inv(mark)))
}

func (inverse) value(size, mark decimal.Decimal) decimal.Decimal {
	return model.Div(size.Abs(), mark)
}

// liquidationPrice returns zero when the position cannot be liquidated.
func (inverse) liquidationPrice(long bool, entry, leverage, mmr, fundingRate decimal.Decimal) decimal.Decimal {
	inv := model.Inv(leverage)
	var denominator decimal.Decimal
	if long {
		denominator = model.One.Add(inv).Sub(mmr).Sub(fundingRate)
	} else {
		denominator = model.One.Sub(inv).Add(mmr).Add(fundingRate)
	}
	if denominator.Sign() <= 0 {
		return decimal.Zero
	}
	return model.Div(entry, denominator)
}

func (inverse) bankruptcyPrice(long bool, entry, leverage decimal.Decimal) decimal.Decimal {
	inv := model.Inv(leverage)
	denominator := model.One.Sub(inv)
	if long {
		denominator = model.One.Add(inv)
	}
	if denominator.Sign() <= 0 {
		return decimal.Zero
	}
	return model.Div(entry, denominator)
}

func (inverse) fee(rate, quantity, price decimal.Decimal) decimal.Decimal {
	return rate.Mul(model.Div(quantity.Abs(), price))
}
