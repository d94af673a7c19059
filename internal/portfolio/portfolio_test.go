package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/market"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/pkg/clock"
	"github.com/yanun0323/trading-core/pkg/exception"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

// remoteEngine hosts orders that never trigger locally.
type remoteEngine struct {
	clock     clock.Clock
	scheduler *bus.Scheduler
	registry  *market.Registry
}

func newRemoteEngine() *remoteEngine {
	e := &remoteEngine{clock: clock.NewManual(time.Unix(1_700_000_000, 0)), scheduler: bus.NewScheduler()}
	e.registry = market.NewRegistry(market.DefaultConfig(), e.scheduler, e.clock)
	return e
}

func (e *remoteEngine) Clock() clock.Clock        { return e.clock }
func (e *remoteEngine) Scheduler() *bus.Scheduler { return e.scheduler }
func (e *remoteEngine) SymbolData(symbol string) (*market.SymbolData, error) {
	return e.registry.Get(symbol)
}
func (e *remoteEngine) ArmsLocally(*order.Order) bool          { return false }
func (e *remoteEngine) SynthesizesOnTrigger(*order.Order) bool { return false }
func (e *remoteEngine) Fee(*order.Order, decimal.Decimal, decimal.Decimal) model.Fee {
	return model.Fee{}
}
func (e *remoteEngine) OnPartialFill(*order.Order, decimal.Decimal, decimal.Decimal, model.Fee) {}
func (e *remoteEngine) OnFill(*order.Order, decimal.Decimal, decimal.Decimal, model.Fee)        {}
func (e *remoteEngine) OnCancel(*order.Order)                                                   {}
func (e *remoteEngine) OnClose(*order.Order)                                                    {}
func (e *remoteEngine) Replace(*order.Order, order.Params) (*order.Order, error) {
	return nil, exception.ErrNotSupported
}

func newOrder(t *testing.T, side enum.OrderSide, typ enum.OrderType, quantity, price string) *order.Order {
	t.Helper()
	p := order.Params{Symbol: "BTC/USDT", Side: side, Type: typ, Quantity: dec(quantity), Price: dec(price)}
	if typ.IsStop() {
		p.StopPrice = dec(price)
	}
	o, err := order.New(newRemoteEngine(), p)
	require.NoError(t, err)
	return o
}

func TestReserveAndRelease(t *testing.T) {
	m := NewManager(New(map[string]decimal.Decimal{"USDT": dec("1000"), "BTC": dec("2")}), nil)
	p := m.Portfolio()

	buy := newOrder(t, enum.OrderSideBuy, enum.OrderTypeLimit, "1", "100")
	require.NoError(t, m.Reserve(buy))
	assertDec(t, "900", p.Asset("USDT").Available)
	assertDec(t, "100", p.Asset("USDT").Locked())
	currency, amount, ok := p.Locked(buy.ID())
	require.True(t, ok)
	assert.Equal(t, "USDT", currency)
	assertDec(t, "100", amount)

	sell := newOrder(t, enum.OrderSideSell, enum.OrderTypeStopLoss, "1.5", "90")
	require.NoError(t, m.Reserve(sell))
	assertDec(t, "0.5", p.Asset("BTC").Available)

	m.Release(buy)
	m.Release(sell)
	m.Release(sell)
	assertDec(t, "1000", p.Asset("USDT").Available)
	assertDec(t, "1000", p.Asset("USDT").Total)
	assertDec(t, "2", p.Asset("BTC").Available)
}

func TestReserveMissingFunds(t *testing.T) {
	m := NewManager(New(map[string]decimal.Decimal{"USDT": dec("1000")}), nil)
	o := newOrder(t, enum.OrderSideBuy, enum.OrderTypeLimit, "20", "100")

	assert.ErrorIs(t, m.CanReserve(o), exception.ErrMissingFunds)
	assert.ErrorIs(t, m.Reserve(o), exception.ErrMissingFunds)
	assertDec(t, "1000", m.Portfolio().Asset("USDT").Available)
	_, _, ok := m.Portfolio().Locked(o.ID())
	assert.False(t, ok)
}

func TestSettleSpotFill(t *testing.T) {
	testCases := []struct {
		desc      string
		side      enum.OrderSide
		fee       model.Fee
		wantUSDT  string
		wantBTC   string
		availUSDT string
		availBTC  string
	}{
		{
			desc: "buy pays fee in base", side: enum.OrderSideBuy, fee: model.Fee{Cost: dec("0.01")},
			wantUSDT: "800", wantBTC: "2.99", availUSDT: "800", availBTC: "2.99",
		},
		{
			desc: "sell pays fee in quote", side: enum.OrderSideSell, fee: model.Fee{Cost: dec("1")},
			wantUSDT: "1199", wantBTC: "1", availUSDT: "1199", availBTC: "1",
		},
		{
			desc: "fee in explicit currency", side: enum.OrderSideBuy, fee: model.Fee{Cost: dec("0.5"), Currency: "BNB"},
			wantUSDT: "800", wantBTC: "3", availUSDT: "800", availBTC: "3",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			m := NewManager(New(map[string]decimal.Decimal{"USDT": dec("1000"), "BTC": dec("2"), "BNB": dec("1")}), nil)
			o := newOrder(t, tc.side, enum.OrderTypeLimit, "1", "200")
			require.NoError(t, m.Reserve(o))
			require.NoError(t, m.SettleSpotFill(o, dec("1"), dec("200"), tc.fee))

			p := m.Portfolio()
			assertDec(t, tc.wantUSDT, p.Asset("USDT").Total)
			assertDec(t, tc.wantBTC, p.Asset("BTC").Total)
			assertDec(t, tc.availUSDT, p.Asset("USDT").Available)
			assertDec(t, tc.availBTC, p.Asset("BTC").Available)
			_, _, ok := p.Locked(o.ID())
			assert.False(t, ok)
			assert.Equal(t, uint64(1), p.FilledEvent().Count())
		})
	}
}

func TestPartialSettleKeepsRemainingLock(t *testing.T) {
	m := NewManager(New(map[string]decimal.Decimal{"USDT": dec("1000")}), nil)
	o := newOrder(t, enum.OrderSideBuy, enum.OrderTypeLimit, "4", "100")
	require.NoError(t, m.Reserve(o))

	require.NoError(t, m.SettleSpotFill(o, dec("1"), dec("90"), model.Fee{}))
	p := m.Portfolio()
	_, amount, ok := p.Locked(o.ID())
	require.True(t, ok)
	assertDec(t, "300", amount)
	assertDec(t, "910", p.Asset("USDT").Total)
	assertDec(t, "610", p.Asset("USDT").Available)

	m.Release(o)
	assertDec(t, "910", p.Asset("USDT").Available)
}

func TestUpdateFromBalance(t *testing.T) {
	p := New(map[string]decimal.Decimal{"USDT": dec("1000")})
	require.NoError(t, p.Lock("o1", "USDT", dec("100"), dec("1")))
	p.SetMargin("BTC/USDT:USDT", "USDT", dec("50"))

	p.UpdateFromBalance(map[string]Asset{
		"USDT": {Total: dec("1200"), Available: dec("1200")},
		"ETH":  {Total: dec("3"), Available: dec("2")},
	}, false)
	assertDec(t, "1200", p.Asset("USDT").Total)
	assertDec(t, "1050", p.Asset("USDT").Available)
	assertDec(t, "2", p.Asset("ETH").Available)
	assert.Equal(t, []string{"ETH", "USDT"}, p.Currencies())

	p.UpdateFromBalance(map[string]Asset{"USDT": {Total: dec("500"), Available: dec("450")}}, true)
	assertDec(t, "450", p.Asset("USDT").Available)
	assert.Equal(t, []string{"USDT"}, p.Currencies())
	_, _, ok := p.Locked("o1")
	assert.False(t, ok)
	assert.Equal(t, uint64(2), p.BalanceEvent().Count())
}

func TestMargin(t *testing.T) {
	p := New(map[string]decimal.Decimal{"USDT": dec("1000")})
	p.SetMargin("BTC/USDT:USDT", "USDT", dec("50"))
	assertDec(t, "950", p.Asset("USDT").Available)
	p.SetMargin("BTC/USDT:USDT", "USDT", dec("30"))
	assertDec(t, "970", p.Asset("USDT").Available)
	assertDec(t, "30", p.Margin("BTC/USDT:USDT"))
	p.SetMargin("BTC/USDT:USDT", "USDT", decimal.Zero)
	assertDec(t, "1000", p.Asset("USDT").Available)

	p.Apply(Delta{Currency: "USDT", Amount: dec("-1500")})
	assertDec(t, "0", p.Asset("USDT").Total)
	assertDec(t, "0", p.Asset("USDT").Available)
}

func TestMarginBeyondAvailable(t *testing.T) {
	const owner = "BTC/USDT:USDT|both"
	testCases := []struct {
		desc      string
		margin    string
		credit    string
		available string
	}{
		{"within funds", "90", "", "10"},
		{"grows past available", "150", "", "0"},
		{"shrinks back", "90", "", "10"},
		{"grows past again", "150", "", "0"},
		{"credit arrives", "150", "100", "50"},
		{"released", "0", "", "200"},
	}
	p := New(map[string]decimal.Decimal{"USDT": dec("100")})
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if tc.credit != "" {
				p.Apply(Delta{Currency: "USDT", Amount: dec(tc.credit)})
			}
			p.SetMargin(owner, "USDT", dec(tc.margin))
			assertDec(t, tc.available, p.Asset("USDT").Available)
			assertDec(t, tc.margin, p.Margin(owner))
		})
	}
}

func TestUpdateEventWait(t *testing.T) {
	p := New(nil)
	next := p.FilledEvent().Next()
	select {
	case <-next:
		t.Fatal("settled before any update")
	default:
	}

	p.Apply(Delta{Currency: "USDT", Amount: dec("1")})
	select {
	case <-next:
	default:
		t.Fatal("update not settled")
	}

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.FilledEvent().Wait(ctx), context.DeadlineExceeded)
}

type staticPrices map[string]decimal.Decimal

func (s staticPrices) Symbols() []string {
	symbols := make([]string, 0, len(s))
	for symbol := range s {
		symbols = append(symbols, symbol)
	}
	return symbols
}

func (s staticPrices) MarkPrice(symbol string) (decimal.Decimal, bool) {
	p, ok := s[symbol]
	return p, ok
}

func TestValueHolder(t *testing.T) {
	prices := staticPrices{"BTC/USDT": dec("50000"), "ETH/BTC": dec("0.05")}
	v := NewValueHolder("USDT", prices)
	assets := map[string]Asset{
		"USDT": {Total: dec("100")},
		"BTC":  {Total: dec("0.5")},
		"ETH":  {Total: dec("2")},
		"DOGE": {Total: dec("1000")},
	}

	assertDec(t, "30100", v.Value(assets))
	assert.Equal(t, []string{"DOGE"}, v.Missing())

	prices["DOGE/USDT"] = dec("0.1")
	assert.Equal(t, []string{"DOGE"}, v.OnMarkPrice())
	assert.Empty(t, v.Missing())
	assertDec(t, "30200", v.Value(assets))

	btc := NewValueHolder("BTC", prices)
	rate, ok := btc.Rate("USDT", "BTC")
	require.True(t, ok)
	assertDec(t, "0.00002", rate)
	value, ok := btc.Convert("DOGE", dec("1000"))
	require.True(t, ok)
	assertDec(t, "0.002", value)
}
