package exchange

import (
	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/market"
	"github.com/yanun0323/trading-core/internal/risk"
)

// Config tunes an exchange session.
type Config struct {
	Name string
	// Simulated sessions fill every order locally against the price feed.
	Simulated       bool
	ReferenceMarket string
	Market          market.Config
	MakerFee        decimal.Decimal
	TakerFee        decimal.Decimal
	// OutdatedPriceAllowance shifts chained limit prices that would fill on
	// creation.
	OutdatedPriceAllowance decimal.Decimal
	TrailingPercent        decimal.Decimal
	// SelfManagedStops arms stop and trailing orders locally in live
	// sessions; a trigger sends a market or limit order to the exchange.
	SelfManagedStops bool
	ClosedOrdersSize int
	TradesSize       int
	PositionsSize    int
	Risk             risk.Config
}

func DefaultConfig() Config {
	return Config{
		Name:            "simulated",
		Simulated:       true,
		ReferenceMarket: "USDT",
		Market:          market.DefaultConfig(),
	}
}
