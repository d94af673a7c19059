package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/market"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/clock"
)

const testSymbol = "BTC/USDT"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fillRecord struct {
	order    *Order
	quantity decimal.Decimal
	price    decimal.Decimal
	partial  bool
}

// fakeEngine simulates a session trading on local price events.
type fakeEngine struct {
	clock     *clock.Manual
	scheduler *bus.Scheduler
	registry  *market.Registry
	groups    *Groups
	synth     bool
	remote    bool

	fills    []fillRecord
	canceled []*Order
	closed   []*Order
	replaced []*Order
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	e := &fakeEngine{
		clock:     clock.NewManual(time.Unix(1_700_000_000, 0)),
		scheduler: bus.NewScheduler(),
	}
	e.registry = market.NewRegistry(market.DefaultConfig(), e.scheduler, e.clock)
	_, err := e.registry.Add(testSymbol)
	require.NoError(t, err)
	e.groups = NewGroups(e)
	return e
}

func (e *fakeEngine) data(t *testing.T) *market.SymbolData {
	t.Helper()
	d, err := e.registry.Get(testSymbol)
	require.NoError(t, err)
	return d
}

func (e *fakeEngine) now() float64 { return model.Timestamp(e.clock.Now()) }

func (e *fakeEngine) place(t *testing.T, p Params) *Order {
	t.Helper()
	if p.Symbol == "" {
		p.Symbol = testSymbol
	}
	o, err := New(e, p)
	require.NoError(t, err)
	require.NoError(t, o.Initialize())
	return o
}

func (e *fakeEngine) Clock() clock.Clock        { return e.clock }
func (e *fakeEngine) Scheduler() *bus.Scheduler { return e.scheduler }
func (e *fakeEngine) SymbolData(symbol string) (*market.SymbolData, error) {
	return e.registry.Get(symbol)
}
func (e *fakeEngine) ArmsLocally(*Order) bool          { return !e.remote }
func (e *fakeEngine) SynthesizesOnTrigger(*Order) bool { return e.synth }
func (e *fakeEngine) Fee(_ *Order, quantity, price decimal.Decimal) model.Fee {
	return model.Fee{Cost: quantity.Mul(price).Mul(dec("0.001")), Currency: "USDT"}
}

func (e *fakeEngine) OnPartialFill(o *Order, quantity, price decimal.Decimal, _ model.Fee) {
	e.fills = append(e.fills, fillRecord{order: o, quantity: quantity, price: price, partial: true})
	e.groups.OnFill(o, quantity)
}

func (e *fakeEngine) OnFill(o *Order, quantity, price decimal.Decimal, _ model.Fee) {
	e.fills = append(e.fills, fillRecord{order: o, quantity: quantity, price: price})
	e.groups.OnFill(o, quantity)
}

func (e *fakeEngine) OnCancel(o *Order) { e.canceled = append(e.canceled, o) }
func (e *fakeEngine) OnClose(o *Order) {
	e.closed = append(e.closed, o)
	e.groups.OnClose(o)
}

func (e *fakeEngine) Replace(_ *Order, p Params) (*Order, error) {
	o, err := New(e, p)
	if err != nil {
		return nil, err
	}
	if err := o.Initialize(); err != nil {
		return nil, err
	}
	e.replaced = append(e.replaced, o)
	return o, nil
}

func (e *fakeEngine) CancelOrder(o *Order) error {
	return o.Cancel(enum.OrderStatusCanceled)
}

func (e *fakeEngine) EditOrder(o *Order, quantity decimal.Decimal) error {
	return o.Edit(quantity, decimal.Zero)
}
