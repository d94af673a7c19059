package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/pkg/exception"
)

func TestParseSymbol(t *testing.T) {
	testCases := []struct {
		desc    string
		input   string
		want    Symbol
		inverse bool
		wantErr bool
	}{
		{desc: "spot", input: "BTC/USDT", want: Symbol{Base: "BTC", Quote: "USDT"}},
		{desc: "linear", input: "BTC/USDT:USDT", want: Symbol{Base: "BTC", Quote: "USDT", Settle: "USDT"}},
		{desc: "inverse", input: "BTC/USD:BTC", want: Symbol{Base: "BTC", Quote: "USD", Settle: "BTC"}, inverse: true},
		{desc: "missing quote", input: "BTC/", wantErr: true},
		{desc: "no slash", input: "BTCUSDT", wantErr: true},
		{desc: "empty settle", input: "BTC/USDT:", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := ParseSymbol(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, exception.ErrInvalidSymbol))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.input, got.String())
			assert.Equal(t, tc.inverse, got.IsInverse())
		})
	}
}

func TestDivAndMean(t *testing.T) {
	assert.True(t, Div(One, decimal.NewFromInt(3)).Equal(decimal.RequireFromString("0.3333333333333333333333333333")))
	assert.True(t, Div(One, Zero).IsZero())
	assert.True(t, Mean(nil).IsZero())
	assert.True(t, Mean([]decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(2)}).Equal(decimal.RequireFromString("1.5")))
}

func TestMarketStatusCheck(t *testing.T) {
	ms := MarketStatus{
		PricePrecision:  2,
		AmountPrecision: 3,
		Amount:          Limits{Min: decimal.RequireFromString("0.001"), Max: decimal.NewFromInt(100)},
		Cost:            Limits{Min: decimal.NewFromInt(10)},
	}
	assert.NoError(t, ms.Check(decimal.NewFromInt(1), decimal.NewFromInt(100)))
	assert.True(t, errors.Is(ms.Check(decimal.RequireFromString("0.0001"), decimal.NewFromInt(100)), exception.ErrMarketRulesViolation))
	assert.True(t, errors.Is(ms.Check(decimal.RequireFromString("0.01"), decimal.NewFromInt(100)), exception.ErrMarketRulesViolation))
	assert.True(t, ms.FloorPrice(decimal.RequireFromString("100.129")).Equal(decimal.RequireFromString("100.12")))
	assert.True(t, ms.CeilPrice(decimal.RequireFromString("100.121")).Equal(decimal.RequireFromString("100.13")))
}

func TestFromMillis(t *testing.T) {
	assert.Equal(t, 1700000000.5, FromMillis(1700000000500))
}
