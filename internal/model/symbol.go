package model

import (
	"strings"

	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/pkg/exception"
)

// Symbol is the canonical BASE/QUOTE[:SETTLE] pair identifier.
type Symbol struct {
	Base   string
	Quote  string
	Settle string
}

// ParseSymbol splits a canonical symbol. Futures carry a settlement currency
// after a colon.
func ParseSymbol(s string) (Symbol, error) {
	pair, settle, _ := strings.Cut(s, ":")
	base, quote, ok := strings.Cut(pair, "/")
	if !ok || base == "" || quote == "" {
		return Symbol{}, errors.Wrapf(exception.ErrInvalidSymbol, "symbol: %s", s)
	}
	if strings.Contains(s, ":") && settle == "" {
		return Symbol{}, errors.Wrapf(exception.ErrInvalidSymbol, "empty settlement currency, symbol: %s", s)
	}
	return Symbol{Base: base, Quote: quote, Settle: settle}, nil
}

// MustParseSymbol panics on malformed input. Only for constants and tests.
func MustParseSymbol(s string) Symbol {
	sym, err := ParseSymbol(s)
	if err != nil {
		panic(err)
	}
	return sym
}

func (s Symbol) String() string {
	if s.Settle == "" {
		return s.Base + "/" + s.Quote
	}
	return s.Base + "/" + s.Quote + ":" + s.Settle
}

func (s Symbol) IsFuture() bool {
	return s.Settle != ""
}

// SettlementCurrency is the currency margin and PnL are expressed in. Spot pairs
// settle in their quote currency.
func (s Symbol) SettlementCurrency() string {
	if s.Settle != "" {
		return s.Settle
	}
	return s.Quote
}

// IsInverse reports whether the pair settles in its base currency.
func (s Symbol) IsInverse() bool {
	return s.Settle != "" && s.Settle == s.Base
}
