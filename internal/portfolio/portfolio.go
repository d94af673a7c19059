package portfolio

import (
	"maps"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// Asset is the balance of one currency.
type Asset struct {
	Currency  string          `json:"currency"`
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
}

// Locked returns the part of the total that is not available.
func (a Asset) Locked() decimal.Decimal {
	return a.Total.Sub(a.Available)
}

type lock struct {
	currency string
	amount   decimal.Decimal
	// quantity is the order quantity the amount covers.
	quantity decimal.Decimal
}

// margin is the margin a position asked for and the part of it actually taken
// from available funds.
type margin struct {
	currency string
	amount   decimal.Decimal
	held     decimal.Decimal
}

// Portfolio holds the balances of an account. Funds reserved by open orders
// and position margins are tracked per owner so they can be released exactly.
type Portfolio struct {
	mu      sync.RWMutex
	assets  map[string]Asset
	locks   map[string]lock
	margins map[string]margin

	filled  *UpdateEvent
	balance *UpdateEvent
}

func New(initial map[string]decimal.Decimal) *Portfolio {
	p := &Portfolio{
		assets:  make(map[string]Asset, len(initial)),
		locks:   make(map[string]lock),
		margins: make(map[string]margin),
		filled:  newUpdateEvent(),
		balance: newUpdateEvent(),
	}
	for currency, amount := range initial {
		p.assets[currency] = Asset{Currency: currency, Total: amount, Available: amount}
	}
	return p
}

// FilledEvent is set after each fill settled in the portfolio.
func (p *Portfolio) FilledEvent() *UpdateEvent { return p.filled }

// BalanceEvent is set after each balance update from the exchange.
func (p *Portfolio) BalanceEvent() *UpdateEvent { return p.balance }

func (p *Portfolio) Asset(currency string) Asset {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.assets[currency]
	if !ok {
		return Asset{Currency: currency}
	}
	return a
}

// Assets returns a copy of every balance.
func (p *Portfolio) Assets() map[string]Asset {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.assets)
}

// Currencies returns the held currencies, sorted.
func (p *Portfolio) Currencies() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Sorted(maps.Keys(p.assets))
}

// Lock reserves amount of currency for the order orderID covering quantity.
func (p *Portfolio) Lock(orderID, currency string, amount, quantity decimal.Decimal) error {
	if amount.Sign() < 0 {
		return errors.Wrapf(exception.ErrInvalidArgument, "lock amount: %s", amount)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.locks[orderID]; ok {
		return nil
	}
	a := p.assets[currency]
	if a.Available.LessThan(amount) {
		return errors.Wrapf(exception.ErrMissingFunds, "order: %s, need %s %s, available: %s", orderID, amount, currency, a.Available)
	}
	a.Currency = currency
	a.Available = a.Available.Sub(amount)
	p.assets[currency] = a
	p.locks[orderID] = lock{currency: currency, amount: amount, quantity: quantity}
	return nil
}

// Locked returns the funds reserved for orderID.
func (p *Portfolio) Locked(orderID string) (string, decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	l, ok := p.locks[orderID]
	return l.currency, l.amount, ok
}

// Release returns the funds reserved for orderID.
func (p *Portfolio) Release(orderID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked(orderID)
}

func (p *Portfolio) releaseLocked(orderID string) decimal.Decimal {
	l, ok := p.locks[orderID]
	if !ok {
		return decimal.Zero
	}
	delete(p.locks, orderID)
	a := p.assets[l.currency]
	a.Available = a.Available.Add(l.amount)
	p.assets[l.currency] = p.checkedLocked(a)
	return l.amount
}

// consumeLocked frees the part of the order lock covering quantity.
func (p *Portfolio) consumeLocked(orderID string, quantity decimal.Decimal) decimal.Decimal {
	l, ok := p.locks[orderID]
	if !ok {
		return decimal.Zero
	}
	if quantity.GreaterThanOrEqual(l.quantity) {
		delete(p.locks, orderID)
		return l.amount
	}
	part := model.Div(l.amount.Mul(quantity), l.quantity)
	l.amount = l.amount.Sub(part)
	l.quantity = l.quantity.Sub(quantity)
	p.locks[orderID] = l
	return part
}

// Delta is a signed change of one currency.
type Delta struct {
	Currency string
	Amount   decimal.Decimal
}

// Settle applies the balance changes of a fill of orderID covering quantity.
// The part of the order lock covering quantity is released first.
func (p *Portfolio) Settle(orderID string, quantity decimal.Decimal, deltas ...Delta) {
	p.mu.Lock()
	l, hasLock := p.locks[orderID]
	if hasLock {
		released := p.consumeLocked(orderID, quantity)
		a := p.assets[l.currency]
		a.Available = a.Available.Add(released)
		p.assets[l.currency] = a
	}
	for _, d := range deltas {
		p.applyLocked(d)
	}
	p.mu.Unlock()
	p.filled.set()
}

// Apply changes balances outside of order fills: realized PnL, fees and
// funding of positions.
func (p *Portfolio) Apply(deltas ...Delta) {
	p.mu.Lock()
	for _, d := range deltas {
		p.applyLocked(d)
	}
	p.mu.Unlock()
	p.filled.set()
}

func (p *Portfolio) applyLocked(d Delta) {
	if d.Amount.IsZero() || d.Currency == "" {
		return
	}
	a := p.assets[d.Currency]
	a.Currency = d.Currency
	a.Total = a.Total.Add(d.Amount)
	a.Available = a.Available.Add(d.Amount)
	p.assets[d.Currency] = p.checkedLocked(a)
}

// checkedLocked keeps available within [0, total] and totals non negative.
func (p *Portfolio) checkedLocked(a Asset) Asset {
	if a.Total.Sign() < 0 {
		logs.Errorf("negative %s total %s clamped to zero", a.Currency, a.Total)
		a.Total = decimal.Zero
	}
	if a.Available.GreaterThan(a.Total) {
		a.Available = a.Total
	}
	if a.Available.Sign() < 0 {
		a.Available = decimal.Zero
	}
	return a
}

// SetMargin sets the margin held by a position. Available funds move by the
// change, never below zero: a shortfall stays unheld and is taken by a later
// call once funds are available.
func (p *Portfolio) SetMargin(owner, currency string, amount decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.margins[owner]
	if prev.currency != "" && prev.currency != currency {
		a := p.assets[prev.currency]
		a.Available = a.Available.Add(prev.held)
		p.assets[prev.currency] = p.checkedLocked(a)
		prev = margin{}
	}
	a := p.assets[currency]
	a.Currency = currency
	held := amount
	if diff := amount.Sub(prev.held); diff.Sign() > 0 {
		take := decimal.Min(diff, decimal.Max(a.Available, decimal.Zero))
		held = prev.held.Add(take)
		a.Available = a.Available.Sub(take)
	} else {
		a.Available = a.Available.Sub(diff)
	}
	p.assets[currency] = p.checkedLocked(a)
	if amount.IsZero() {
		delete(p.margins, owner)
		return
	}
	p.margins[owner] = margin{currency: currency, amount: amount, held: held}
}

// Margin returns the margin held by owner.
func (p *Portfolio) Margin(owner string) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.margins[owner].amount
}

// UpdateFromBalance applies an exchange balance. forceReplace swaps every
// balance; otherwise currencies are merged and locally reserved funds stay
// unavailable.
func (p *Portfolio) UpdateFromBalance(balances map[string]Asset, forceReplace bool) {
	p.mu.Lock()
	if forceReplace {
		p.assets = make(map[string]Asset, len(balances))
		clear(p.locks)
		clear(p.margins)
	}
	reserved := make(map[string]decimal.Decimal)
	for _, l := range p.locks {
		reserved[l.currency] = reserved[l.currency].Add(l.amount)
	}
	for _, m := range p.margins {
		reserved[m.currency] = reserved[m.currency].Add(m.held)
	}
	for currency, b := range balances {
		available := decimal.Min(b.Available, b.Total.Sub(reserved[currency]))
		p.assets[currency] = p.checkedLocked(Asset{Currency: currency, Total: b.Total, Available: available})
	}
	p.mu.Unlock()
	p.balance.set()
}
