package portfolio

import (
	"maps"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/model"
)

// DefaultHopCurrency is tried first when no direct pair prices a currency.
const DefaultHopCurrency = "BTC"

// PriceSource provides mark prices of the traded symbols.
type PriceSource interface {
	Symbols() []string
	MarkPrice(symbol string) (decimal.Decimal, bool)
}

// ValueHolder values holdings in the reference market. Currencies that cannot
// be priced are remembered until a price for them arrives.
type ValueHolder struct {
	reference string
	prices    PriceSource

	mu      sync.Mutex
	missing map[string]struct{}
}

func NewValueHolder(reference string, prices PriceSource) *ValueHolder {
	return &ValueHolder{
		reference: reference,
		prices:    prices,
		missing:   make(map[string]struct{}),
	}
}

func (v *ValueHolder) Reference() string { return v.reference }

// Value returns the total value of assets in the reference market. Holdings
// that cannot be priced count as zero and are reported by Missing.
func (v *ValueHolder) Value(assets map[string]Asset) decimal.Decimal {
	total := decimal.Zero
	for _, currency := range slices.Sorted(maps.Keys(assets)) {
		a := assets[currency]
		if a.Total.IsZero() {
			continue
		}
		if value, ok := v.Convert(currency, a.Total); ok {
			total = total.Add(value)
		}
	}
	return total
}

// Convert values amount of currency in the reference market.
func (v *ValueHolder) Convert(currency string, amount decimal.Decimal) (decimal.Decimal, bool) {
	rate, ok := v.Rate(currency, v.reference)
	v.mu.Lock()
	defer v.mu.Unlock()
	if !ok {
		v.missing[currency] = struct{}{}
		return decimal.Zero, false
	}
	delete(v.missing, currency)
	return amount.Mul(rate), true
}

// Rate returns the price of one unit of from in to, directly or through one
// intermediate currency.
func (v *ValueHolder) Rate(from, to string) (decimal.Decimal, bool) {
	if from == to {
		return model.One, true
	}
	pairs := v.pairs()
	if rate, ok := directRate(pairs, from, to); ok {
		return rate, true
	}
	for _, hop := range hops(pairs, from) {
		if hop == to {
			continue
		}
		first, ok := directRate(pairs, from, hop)
		if !ok {
			continue
		}
		second, ok := directRate(pairs, hop, to)
		if !ok {
			continue
		}
		return first.Mul(second), true
	}
	return decimal.Zero, false
}

// Missing returns the currencies that could not be valued, sorted.
func (v *ValueHolder) Missing() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Sorted(maps.Keys(v.missing))
}

// OnMarkPrice retries the missing currencies once a new price arrived. It
// returns the currencies that became priceable.
func (v *ValueHolder) OnMarkPrice() []string {
	var resolved []string
	for _, currency := range v.Missing() {
		if _, ok := v.Rate(currency, v.reference); ok {
			resolved = append(resolved, currency)
		}
	}
	if len(resolved) == 0 {
		return nil
	}
	v.mu.Lock()
	for _, currency := range resolved {
		delete(v.missing, currency)
	}
	v.mu.Unlock()
	return resolved
}

type pair struct {
	symbol model.Symbol
	price  decimal.Decimal
}

func (v *ValueHolder) pairs() []pair {
	if v.prices == nil {
		return nil
	}
	var pairs []pair
	for _, s := range v.prices.Symbols() {
		symbol, err := model.ParseSymbol(s)
		if err != nil {
			continue
		}
		price, ok := v.prices.MarkPrice(s)
		if !ok || price.Sign() <= 0 {
			continue
		}
		pairs = append(pairs, pair{symbol: symbol, price: price})
	}
	return pairs
}

func directRate(pairs []pair, from, to string) (decimal.Decimal, bool) {
	for _, p := range pairs {
		switch {
		case p.symbol.Base == from && p.symbol.Quote == to:
			return p.price, true
		case p.symbol.Base == to && p.symbol.Quote == from:
			return model.Inv(p.price), true
		}
	}
	return decimal.Zero, false
}

// hops lists the intermediate currencies tried for from: BTC first, then the
// counter currencies of the pairs involving from.
func hops(pairs []pair, from string) []string {
	candidates := []string{DefaultHopCurrency}
	for _, p := range pairs {
		switch from {
		case p.symbol.Base:
			candidates = append(candidates, p.symbol.Quote)
		case p.symbol.Quote:
			candidates = append(candidates, p.symbol.Base)
		}
	}
	return slices.Compact(candidates)
}
