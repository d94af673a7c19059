package exchange

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/obs"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/internal/portfolio"
	"github.com/yanun0323/trading-core/internal/position"
	"github.com/yanun0323/trading-core/pkg/clock"
	"github.com/yanun0323/trading-core/pkg/exception"
)

const (
	testSymbol   = "BTC/USDT"
	futureSymbol = "BTC/USDT:USDT"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

type session struct {
	*Trader
	m       *Manager
	clock   *clock.Manual
	metrics *obs.Metrics
}

func newSession(t *testing.T, balances map[string]string, edit func(cfg *Config)) *session {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MakerFee = dec("0.001")
	cfg.TakerFee = dec("0.002")
	if edit != nil {
		edit(&cfg)
	}
	initial := make(map[string]decimal.Decimal, len(balances))
	for currency, amount := range balances {
		initial[currency] = dec(amount)
	}
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	metrics := obs.NewMetrics()
	m, err := NewManager(cfg, initial, WithClock(clk), WithMetrics(metrics))
	require.NoError(t, err)
	return &session{Trader: NewTrader(m), m: m, clock: clk, metrics: metrics}
}

func (s *session) trade(t *testing.T, symbol, price string) {
	t.Helper()
	_, err := s.m.HandleRecentTrades(symbol, []model.RecentTrade{{
		Price:     dec(price),
		Amount:    model.One,
		Timestamp: s.m.Now(),
	}})
	require.NoError(t, err)
	s.Drain()
}

func (s *session) mark(t *testing.T, symbol, price string) {
	t.Helper()
	_, err := s.m.HandleMarkPrice(symbol, dec(price), enum.MarkPriceSourceExchange)
	require.NoError(t, err)
	s.Drain()
}

func (s *session) asset(currency string) (total, available decimal.Decimal) {
	a := s.Assets()[currency]
	return a.Total, a.Available
}

func assertAssets(t *testing.T, want, got map[string]portfolio.Asset) {
	t.Helper()
	for currency, a := range want {
		assertDec(t, a.Total.String(), got[currency].Total)
		assertDec(t, a.Available.String(), got[currency].Available)
	}
	for currency, a := range got {
		if _, ok := want[currency]; !ok {
			assert.True(t, a.Total.IsZero(), "unexpected %s total %s", currency, a.Total)
		}
	}
}

func limit(side enum.OrderSide, quantity, price string) order.Params {
	return order.Params{
		Symbol:   testSymbol,
		Side:     side,
		Type:     enum.OrderTypeLimit,
		Quantity: dec(quantity),
		Price:    dec(price),
	}
}

func TestNewManagerRequiresAdapterWhenLive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Simulated = false
	_, err := NewManager(cfg, nil)
	assert.ErrorIs(t, err, exception.ErrNoAdapter)
}

func TestSpotLimitFill(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000"}, nil)

	o, err := s.SubmitOrder(t.Context(), limit(enum.OrderSideBuy, "1", "100"))
	require.NoError(t, err)
	total, available := s.asset("USDT")
	assertDec(t, "1000", total)
	assertDec(t, "900", available)

	s.trade(t, testSymbol, "101")
	assert.False(t, o.IsFilled())

	s.trade(t, testSymbol, "100")
	require.True(t, o.IsFilled())
	assertDec(t, "100", o.FilledPrice())

	total, available = s.asset("USDT")
	assertDec(t, "900", total)
	assertDec(t, "900", available)
	total, _ = s.asset("BTC")
	assertDec(t, "0.999", total)

	assert.Len(t, s.m.Trades().OfOrder(o.ID()), 1)
	assert.Empty(t, s.GetOpenOrders(testSymbol))
	assert.Equal(t, uint64(1), s.metrics.Count(obs.EventOrderCreated))
	assert.Equal(t, uint64(1), s.metrics.Count(obs.EventOrderFilled))
	assert.Equal(t, uint64(1), s.metrics.Count(obs.EventPriceFired))
}

func TestCreateAndCancelKeepsPortfolio(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000", "BTC": "1"}, nil)
	before := s.Assets()

	buy, err := s.SubmitOrder(t.Context(), limit(enum.OrderSideBuy, "2", "100"))
	require.NoError(t, err)
	sell, err := s.SubmitOrder(t.Context(), limit(enum.OrderSideSell, "0.5", "150"))
	require.NoError(t, err)

	_, available := s.asset("BTC")
	assertDec(t, "0.5", available)

	require.NoError(t, s.CancelOrder(t.Context(), buy))
	require.NoError(t, s.CancelOrder(t.Context(), sell))
	require.NoError(t, s.CancelOrder(t.Context(), sell))

	assert.True(t, buy.IsCanceled())
	assertAssets(t, before, s.Assets())
	assert.Equal(t, uint64(2), s.metrics.Count(obs.EventOrderCanceled))
}

func TestCreateOrderFailures(t *testing.T) {
	testCases := []struct {
		desc   string
		edit   func(cfg *Config)
		setup  func(t *testing.T, s *session)
		params order.Params
		want   error
	}{
		{
			desc:   "missing funds",
			params: limit(enum.OrderSideBuy, "20", "100"),
			want:   exception.ErrMissingFunds,
		},
		{
			desc:   "max quantity",
			edit:   func(cfg *Config) { cfg.Risk.MaxOrderQty = dec("1") },
			params: limit(enum.OrderSideBuy, "2", "100"),
			want:   exception.ErrRiskRejected,
		},
		{
			desc: "market closed",
			setup: func(t *testing.T, s *session) {
				require.NoError(t, s.m.SetMarketStatus(model.MarketStatus{Symbol: testSymbol}))
			},
			params: limit(enum.OrderSideBuy, "1", "100"),
			want:   exception.ErrMarketClosed,
		},
		{
			desc: "market rules",
			setup: func(t *testing.T, s *session) {
				require.NoError(t, s.m.SetMarketStatus(model.MarketStatus{
					Symbol: testSymbol,
					Active: true,
					Amount: model.Limits{Min: dec("0.5")},
				}))
			},
			params: limit(enum.OrderSideBuy, "0.1", "100"),
			want:   exception.ErrMarketRulesViolation,
		},
		{
			desc:   "invalid params",
			params: order.Params{Symbol: testSymbol, Side: enum.OrderSideBuy, Type: enum.OrderTypeLimit, Quantity: dec("1")},
			want:   exception.ErrInvalidArgument,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			s := newSession(t, map[string]string{"USDT": "1000"}, tc.edit)
			if tc.setup != nil {
				tc.setup(t, s)
			}
			before := s.Assets()

			o, err := s.SubmitOrder(t.Context(), tc.params)
			require.Error(t, err)
			assert.Nil(t, o)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, exception.ErrOrderCreation)
			assert.Empty(t, s.GetOpenOrders(""))
			assertAssets(t, before, s.Assets())
			assert.Equal(t, uint64(1), s.metrics.Count(obs.EventOrderRejected))
		})
	}
}

func TestMarketOrderFillsOnNextTurn(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000"}, nil)
	s.mark(t, testSymbol, "100")

	o, err := s.SubmitOrder(t.Context(), order.Params{
		Symbol:   testSymbol,
		Side:     enum.OrderSideBuy,
		Type:     enum.OrderTypeMarket,
		Quantity: dec("1"),
	})
	require.NoError(t, err)
	assert.False(t, o.IsFilled())

	s.Drain()
	require.True(t, o.IsFilled())
	assertDec(t, "100", o.FilledPrice())
	assert.True(t, o.Fee().IsTaker)

	total, _ := s.asset("BTC")
	assertDec(t, "0.998", total)
	total, _ = s.asset("USDT")
	assertDec(t, "900", total)
}

func TestOCOGroup(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000", "BTC": "2"}, nil)
	group, err := s.CreateGroup(enum.GroupKindOneCancelsTheOther)
	require.NoError(t, err)

	take := limit(enum.OrderSideSell, "1", "200")
	take.GroupID = group.ID()
	takeProfit, err := s.SubmitOrder(t.Context(), take)
	require.NoError(t, err)

	stopLoss, err := s.SubmitOrder(t.Context(), order.Params{
		Symbol:    testSymbol,
		Side:      enum.OrderSideSell,
		Type:      enum.OrderTypeStopLoss,
		Quantity:  dec("1"),
		StopPrice: dec("100"),
	})
	require.NoError(t, err)
	require.NoError(t, s.AddToGroup(stopLoss, group.ID(), decimal.Zero))

	_, available := s.asset("BTC")
	assertDec(t, "0", available)

	s.trade(t, testSymbol, "300")

	assert.True(t, takeProfit.IsFilled())
	assert.True(t, stopLoss.IsCanceled())
	total, available := s.asset("BTC")
	assertDec(t, "1", total)
	assertDec(t, "1", available)
	total, _ = s.asset("USDT")
	assertDec(t, "1199.8", total)
}

func TestBalancedGroupResizesSibling(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000", "BTC": "4"}, nil)
	group, err := s.CreateGroup(enum.GroupKindBalanced)
	require.NoError(t, err)

	first, err := s.SubmitOrder(t.Context(), limit(enum.OrderSideSell, "2", "200"))
	require.NoError(t, err)
	second, err := s.SubmitOrder(t.Context(), limit(enum.OrderSideSell, "2", "300"))
	require.NoError(t, err)
	require.NoError(t, s.AddToGroup(first, group.ID(), dec("1")))
	require.NoError(t, s.AddToGroup(second, group.ID(), dec("1")))

	require.NoError(t, first.Fill(dec("0.5"), dec("200"), nil))
	s.Drain()

	assertDec(t, "1.5", second.OriginQuantity())
	total, available := s.asset("BTC")
	assertDec(t, "3.5", total)
	assertDec(t, "0.5", available)
}

func TestChainedOrderOnFill(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000"}, nil)

	entry, err := s.SubmitOrder(t.Context(), limit(enum.OrderSideBuy, "1", "100"))
	require.NoError(t, err)
	chained, err := s.ChainOrder(entry, enum.OrderStatusFilled, limit(enum.OrderSideSell, "0.5", "120"))
	require.NoError(t, err)
	assert.Equal(t, enum.ChainedStatusDisarmed, chained.Status)

	s.trade(t, testSymbol, "100")

	require.True(t, entry.IsFilled())
	assert.Equal(t, enum.ChainedStatusCreated, chained.Status)
	open := s.GetOpenOrders(testSymbol)
	require.Len(t, open, 1)
	assert.Equal(t, enum.OrderSideSell, open[0].Side())
	_, available := s.asset("BTC")
	assertDec(t, "0.499", available)
}

func TestCancelOrdersFilter(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000", "BTC": "1"}, nil)
	buy, err := s.SubmitOrder(t.Context(), limit(enum.OrderSideBuy, "1", "100"))
	require.NoError(t, err)
	tagged := limit(enum.OrderSideSell, "0.5", "200")
	tagged.Tag = "exit"
	sell, err := s.SubmitOrder(t.Context(), tagged)
	require.NoError(t, err)

	n, err := s.CancelOrders(t.Context(), enum.CancelFilterTag, nil, "exit")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, sell.IsCanceled())
	assert.False(t, buy.IsCanceled())

	n, err = s.CancelOrders(t.Context(), enum.CancelFilterAll, []string{testSymbol}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, buy.IsCanceled())

	_, err = s.CancelOrders(t.Context(), 0, nil, "")
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)
}

func TestSubscribe(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000"}, nil)
	var events []bus.Event
	unsubscribe, err := s.Subscribe(enum.ChannelOrders, func(e bus.Event) { events = append(events, e) })
	require.NoError(t, err)

	_, err = s.SubmitOrder(t.Context(), limit(enum.OrderSideBuy, "1", "100"))
	require.NoError(t, err)
	assert.Empty(t, events)
	s.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, testSymbol, events[0].Symbol)

	unsubscribe()
	_, err = s.Subscribe(enum.ChannelOrders, nil)
	assert.ErrorIs(t, err, exception.ErrNilSubscriber)
}

func loadFuture(t *testing.T, s *session) {
	t.Helper()
	require.NoError(t, s.m.LoadContract(t.Context(), position.Contract{
		Symbol:   futureSymbol,
		Type:     enum.ContractTypeLinearPerpetual,
		Leverage: dec("10"),
		TakerFee: dec("0.001"),
		MakerFee: dec("0.0005"),
	}))
}

func openLong(t *testing.T, s *session) *order.Order {
	t.Helper()
	s.mark(t, futureSymbol, "100")
	o, err := s.SubmitOrder(t.Context(), order.Params{
		Symbol:   futureSymbol,
		Side:     enum.OrderSideBuy,
		Type:     enum.OrderTypeMarket,
		Quantity: dec("1"),
	})
	require.NoError(t, err)
	s.Drain()
	require.True(t, o.IsFilled())
	return o
}

func TestFuturesPositionAndLiquidation(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000"}, nil)
	loadFuture(t, s)
	openLong(t, s)

	positions := s.GetPositions(futureSymbol)
	require.Len(t, positions, 1)
	p := positions[0]
	assertDec(t, "1", p.Size())
	assertDec(t, "100", p.EntryPrice())
	assertDec(t, "91", p.LiquidationPrice())

	total, available := s.asset("USDT")
	assertDec(t, "999.9", total)
	assertDec(t, "989.9", available)

	s.mark(t, futureSymbol, "95")
	assertDec(t, "-5", p.UnrealizedPnl())
	_, available = s.asset("USDT")
	assertDec(t, "990.4", available)

	s.mark(t, futureSymbol, "90")
	assert.Equal(t, enum.PositionStatusLiquidated, p.Status())
	assert.True(t, p.Size().IsZero())
	liquidations := s.m.Ledger().Filter(futureSymbol, enum.TransactionTypeLiquidation)
	require.Len(t, liquidations, 1)
	assertDec(t, "-1", liquidations[0].QuantityDelta)

	total, available = s.asset("USDT")
	assertDec(t, "989.9", total)
	assertDec(t, "989.9", available)
	assert.Equal(t, uint64(1), s.metrics.Count(obs.EventLiquidation))
}

func TestFuturesMarginFollowsMarkWithinFunds(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "20"}, nil)
	loadFuture(t, s)
	_, err := s.GetPosition(futureSymbol, enum.PositionSideBoth)
	assert.ErrorIs(t, err, exception.ErrPositionNotFound)
	openLong(t, s)
	p, err := s.GetPosition(futureSymbol, enum.PositionSideBoth)
	require.NoError(t, err)

	testCases := []struct {
		desc      string
		mark      string
		margin    string
		available string
	}{
		{"opened", "100", "10", "9.9"},
		{"margin above funds", "250", "25", "0"},
		{"mark returns", "100", "10", "9.9"},
		{"mark below entry", "95", "9.5", "10.4"},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			s.mark(t, futureSymbol, tc.mark)
			assertDec(t, tc.margin, p.InitialMargin())
			total, available := s.asset("USDT")
			assertDec(t, "19.9", total)
			assertDec(t, tc.available, available)
			assert.True(t, available.LessThanOrEqual(total.Sub(p.InitialMargin())))
		})
	}
}

func TestFuturesCloseRealizesPnl(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000"}, nil)
	loadFuture(t, s)
	openLong(t, s)

	s.mark(t, futureSymbol, "110")
	closing, err := s.SubmitOrder(t.Context(), order.Params{
		Symbol:     futureSymbol,
		Side:       enum.OrderSideSell,
		Type:       enum.OrderTypeMarket,
		Quantity:   dec("1"),
		ReduceOnly: true,
	})
	require.NoError(t, err)
	s.Drain()
	require.True(t, closing.IsFilled())

	p := s.GetPositions(futureSymbol)[0]
	assert.Equal(t, enum.PositionStatusClosed, p.Status())
	assertDec(t, "10", p.RealizedPnl())

	// 1000 - 0.1 open fee + 10 pnl - 0.11 close fee
	total, available := s.asset("USDT")
	assertDec(t, "1009.79", total)
	assertDec(t, "1009.79", available)
}

func TestFundingRate(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000"}, nil)
	loadFuture(t, s)
	openLong(t, s)

	require.NoError(t, s.m.HandleFundingRate(futureSymbol, dec("0.001"), false))
	assert.Empty(t, s.m.Ledger().Filter(futureSymbol, enum.TransactionTypeFundingFee))

	require.NoError(t, s.m.HandleFundingRate(futureSymbol, dec("0.01"), true))
	funding := s.m.Ledger().Filter(futureSymbol, enum.TransactionTypeFundingFee)
	require.Len(t, funding, 1)
	assertDec(t, "-1", funding[0].Amount)

	total, _ := s.asset("USDT")
	assertDec(t, "998.9", total)
	assert.Equal(t, uint64(1), s.metrics.Count(obs.EventFunding))
}

func TestFee(t *testing.T) {
	s := newSession(t, map[string]string{"USDT": "1000", "BTC": "10"}, nil)
	require.NoError(t, s.m.LoadContract(t.Context(), position.Contract{
		Symbol:       "BTC/USD:BTC",
		Type:         enum.ContractTypeInversePerpetual,
		ContractSize: dec("100"),
		TakerFee:     dec("0.001"),
	}))
	loadFuture(t, s)

	testCases := []struct {
		desc     string
		params   order.Params
		quantity string
		price    string
		cost     string
		currency string
		taker    bool
	}{
		{
			desc:     "spot buy limit pays base",
			params:   limit(enum.OrderSideBuy, "2", "100"),
			quantity: "2", price: "100", cost: "0.002", currency: "BTC",
		},
		{
			desc:     "spot sell limit pays quote",
			params:   limit(enum.OrderSideSell, "2", "100"),
			quantity: "2", price: "100", cost: "0.2", currency: "USDT",
		},
		{
			desc:     "linear market pays settlement",
			params:   order.Params{Symbol: futureSymbol, Side: enum.OrderSideBuy, Type: enum.OrderTypeMarket, Quantity: dec("2"), Price: dec("100")},
			quantity: "2", price: "100", cost: "0.2", currency: "USDT", taker: true,
		},
		{
			desc:     "inverse market pays base",
			params:   order.Params{Symbol: "BTC/USD:BTC", Side: enum.OrderSideSell, Type: enum.OrderTypeMarket, Quantity: dec("2"), Price: dec("100")},
			quantity: "2", price: "100", cost: "0.002", currency: "BTC", taker: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			o, err := order.New(s.m, tc.params)
			require.NoError(t, err)
			fee := s.m.Fee(o, dec(tc.quantity), dec(tc.price))
			assertDec(t, tc.cost, fee.Cost)
			assert.Equal(t, tc.currency, fee.Currency)
			assert.Equal(t, tc.taker, fee.IsTaker)
		})
	}
}
