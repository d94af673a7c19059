package order

import (
	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/market"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/pkg/clock"
)

// Engine is the exchange session an order lives in. Apart from Clock, orders
// never call it while holding their own lock, so implementations may read any
// order.
type Engine interface {
	Clock() clock.Clock
	Scheduler() *bus.Scheduler
	SymbolData(symbol string) (*market.SymbolData, error)

	// ArmsLocally reports whether o waits for its trigger on local price events
	// instead of on the exchange.
	ArmsLocally(o *Order) bool
	// SynthesizesOnTrigger reports whether a triggered stop must be executed by
	// a new market order rather than filled in place.
	SynthesizesOnTrigger(o *Order) bool
	// Fee computes the fee paid for filling quantity at price.
	Fee(o *Order, quantity, price decimal.Decimal) model.Fee

	OnPartialFill(o *Order, quantity, price decimal.Decimal, fee model.Fee)
	OnFill(o *Order, quantity, price decimal.Decimal, fee model.Fee)
	OnCancel(o *Order)
	OnClose(o *Order)
	// Replace creates the order taking over a triggered stop.
	Replace(o *Order, p Params) (*Order, error)
}
