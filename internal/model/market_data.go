package model

import (
	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/model/enum"
)

// RecentTrade is a public trade observed on the exchange. Cost may be zero and
// ID may be empty when the exchange does not provide them.
type RecentTrade struct {
	ID        string          `json:"id,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Cost      decimal.Decimal `json:"cost"`
	Timestamp float64         `json:"timestamp"`
	Side      enum.OrderSide  `json:"side,omitempty"`
}

// Candle is a (time, open, high, low, close, volume) price index where time is
// the candle open timestamp.
type Candle struct {
	Time   float64         `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

type Ticker struct {
	Symbol    string          `json:"symbol"`
	Last      decimal.Decimal `json:"last"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp float64         `json:"timestamp"`
}

// BookLevel is a price level, or a single book order when ID is set.
type BookLevel struct {
	ID     string          `json:"id,omitempty"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

type OrderBookSnapshot struct {
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp float64     `json:"timestamp"`
}

// Limits bounds one dimension of an order. Zero means unbounded.
type Limits struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// MarketStatus holds the trading rules of a symbol.
type MarketStatus struct {
	Symbol          string          `json:"symbol"`
	Active          bool            `json:"active"`
	PricePrecision  int32           `json:"pricePrecision"`
	AmountPrecision int32           `json:"amountPrecision"`
	Amount          Limits          `json:"amount"`
	Price           Limits          `json:"price"`
	Cost            Limits          `json:"cost"`
	ContractSize    decimal.Decimal `json:"contractSize"`
}

// Fee is a paid trading fee.
type Fee struct {
	Cost     decimal.Decimal `json:"cost"`
	Currency string          `json:"currency"`
	IsTaker  bool            `json:"isTaker"`
}
