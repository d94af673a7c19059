package replay

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/exchange"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/pkg/clock"
	"github.com/yanun0323/trading-core/pkg/exception"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		desc    string
		line    string
		channel enum.Channel
		wantErr error
	}{
		{
			desc:    "trade",
			line:    `{"type":"trade","symbol":"BTC/USDT","price":"100","amount":"0.5","side":"buy"}`,
			channel: enum.ChannelRecentTrades,
		},
		{
			desc:    "book",
			line:    `{"type":"book","symbol":"BTC/USDT","bids":[{"price":"99","amount":"1"}],"asks":[{"price":"101","amount":"2"}]}`,
			channel: enum.ChannelOrderBook,
		},
		{
			desc:    "funding",
			line:    `{"type":"funding","symbol":"BTC/USDT:USDT","rate":"0.0001","settle":true}`,
			channel: enum.ChannelPositions,
		},
		{
			desc:    "missing type",
			line:    `{"symbol":"BTC/USDT"}`,
			wantErr: exception.ErrInvalidArgument,
		},
		{
			desc:    "unknown type",
			line:    `{"type":"option","symbol":"BTC/USDT"}`,
			wantErr: exception.ErrInvalidArgument,
		},
		{
			desc:    "missing symbol",
			line:    `{"type":"mark","price":"100"}`,
			wantErr: exception.ErrInvalidSymbol,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			e, err := Decode([]byte(tc.line))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.channel, e.Channel)
			rec, ok := e.Payload.(Record)
			require.True(t, ok)
			assert.Equal(t, e.Symbol, rec.Symbol)
		})
	}

	e, err := Decode([]byte(`{"type":"book","symbol":"BTC/USDT","bids":[{"price":"99","amount":"1"}]}`))
	require.NoError(t, err)
	rec := e.Payload.(Record)
	require.Len(t, rec.Bids, 1)
	assert.True(t, rec.Bids[0].Price.Equal(dec("99")))
}

func TestRead(t *testing.T) {
	input := strings.Join([]string{
		`# recorded session`,
		`{"type":"trade","symbol":"BTC/USDT","price":"100","amount":"1"}`,
		``,
		`{"type":"mark","symbol":"BTC/USDT","price":"100"}`,
	}, "\n")
	q := bus.NewQueue(8)
	n, err := Read(t.Context(), strings.NewReader(input), q)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, q.Len())
	assert.ErrorIs(t, q.TryPublish(bus.Event{}), bus.ErrQueueClosed)

	_, err = Read(t.Context(), strings.NewReader("{\"type\":\"trade\"}\n"), bus.NewQueue(1))
	assert.ErrorIs(t, err, exception.ErrInvalidSymbol)
}

func TestPlayerRun(t *testing.T) {
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	cfg := exchange.DefaultConfig()
	cfg.MakerFee = dec("0.001")
	m, err := exchange.NewManager(cfg, map[string]decimal.Decimal{"USDT": dec("1000")}, exchange.WithClock(clk))
	require.NoError(t, err)
	trader := exchange.NewTrader(m)

	o, err := trader.SubmitOrder(t.Context(), order.Params{
		Symbol:   "BTC/USDT",
		Side:     enum.OrderSideBuy,
		Type:     enum.OrderTypeLimit,
		Quantity: dec("1"),
		Price:    dec("100"),
	})
	require.NoError(t, err)

	input := strings.Join([]string{
		`{"type":"trade","symbol":"BTC/USDT","timestamp":1700000010,"price":"105","amount":"1"}`,
		`{"type":"kline","symbol":"BTC/USDT","timestamp":1700000020,"open":"105","high":"106","low":"99","close":"99","volume":"3"}`,
		`{"type":"trade","symbol":"BTC/USDT","timestamp":1700000030,"price":"99","amount":"1"}`,
		`{"type":"funding","symbol":"BTC/USDT","rate":"0.0001"}`,
	}, "\n")
	q := bus.NewQueue(8)
	n, err := Read(t.Context(), strings.NewReader(input), q)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	applied, failed := NewPlayer(m, clk).Run(t.Context(), q)
	assert.Equal(t, 4, applied)
	assert.Zero(t, failed)

	assert.True(t, o.IsFilled())
	assert.InDelta(t, 1_700_000_030, model.Timestamp(clk.Now()), 0.001)
	btc := trader.Assets()["BTC"]
	assert.True(t, btc.Total.Equal(dec("0.999")), "btc: %s", btc.Total)
	data, err := m.Registry().Get("BTC/USDT")
	require.NoError(t, err)
	_, ok := data.LastKline()
	assert.True(t, ok)
}
