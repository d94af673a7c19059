package portfolio

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// Manager applies order events to the spot portfolio and values it.
type Manager struct {
	portfolio *Portfolio
	value     *ValueHolder
}

func NewManager(p *Portfolio, value *ValueHolder) *Manager {
	return &Manager{portfolio: p, value: value}
}

func (m *Manager) Portfolio() *Portfolio     { return m.portfolio }
func (m *Manager) ValueHolder() *ValueHolder { return m.value }

// Value returns the portfolio value in the reference market.
func (m *Manager) Value() decimal.Decimal {
	return m.value.Value(m.portfolio.Assets())
}

// ReferencePrice returns the price funds of o are reserved at.
func ReferencePrice(o *order.Order) decimal.Decimal {
	price := o.OriginPrice()
	if o.Type().IsStop() && o.StopPrice().GreaterThan(price) {
		price = o.StopPrice()
	}
	if price.Sign() <= 0 {
		price = o.CreatedLastPrice()
	}
	return price
}

// RequiredFunds returns the currency and amount a spot order reserves: quote
// for buys, base for sells.
func RequiredFunds(o *order.Order) (string, decimal.Decimal, error) {
	symbol, err := model.ParseSymbol(o.Symbol())
	if err != nil {
		return "", decimal.Zero, err
	}
	quantity := o.Remaining()
	if o.Side() == enum.OrderSideSell {
		return symbol.Base, quantity, nil
	}
	price := ReferencePrice(o)
	if price.Sign() <= 0 {
		return "", decimal.Zero, errors.Wrapf(exception.ErrNoPrice, "order: %s", o.ID())
	}
	return symbol.Quote, quantity.Mul(price), nil
}

// Reserve locks the funds of a new spot order. Orders already counted by the
// exchange reserve nothing.
func (m *Manager) Reserve(o *order.Order) error {
	if o.IsAlreadyCountedInAvailableFunds() {
		return nil
	}
	currency, amount, err := RequiredFunds(o)
	if err != nil {
		return err
	}
	return m.portfolio.Lock(o.ID(), currency, amount, o.Remaining())
}

// CanReserve reports whether a spot order could reserve its funds.
func (m *Manager) CanReserve(o *order.Order) error {
	currency, amount, err := RequiredFunds(o)
	if err != nil {
		return err
	}
	if available := m.portfolio.Asset(currency).Available; available.LessThan(amount) {
		return errors.Wrapf(exception.ErrMissingFunds, "need %s %s, available: %s", amount, currency, available)
	}
	return nil
}

// SettleSpotFill applies a fill of o: the paid currency decreases, the bought
// one increases and the fee is taken from the received currency.
func (m *Manager) SettleSpotFill(o *order.Order, quantity, price decimal.Decimal, fee model.Fee) error {
	symbol, err := model.ParseSymbol(o.Symbol())
	if err != nil {
		return err
	}
	cost := quantity.Mul(price)
	var deltas []Delta
	receive := symbol.Base
	if o.Side() == enum.OrderSideBuy {
		deltas = append(deltas, Delta{Currency: symbol.Quote, Amount: cost.Neg()}, Delta{Currency: symbol.Base, Amount: quantity})
	} else {
		receive = symbol.Quote
		deltas = append(deltas, Delta{Currency: symbol.Base, Amount: quantity.Neg()}, Delta{Currency: symbol.Quote, Amount: cost})
	}
	if fee.Cost.Sign() != 0 {
		currency := fee.Currency
		if currency == "" {
			currency = receive
		}
		deltas = append(deltas, Delta{Currency: currency, Amount: fee.Cost.Neg()})
	}
	m.portfolio.Settle(o.ID(), quantity, deltas...)
	return nil
}

// Release frees the funds of a canceled order.
func (m *Manager) Release(o *order.Order) {
	m.portfolio.Release(o.ID())
}
