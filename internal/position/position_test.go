package position

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/transaction"
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

var (
	linearContract = Contract{
		Symbol:   "BTC/USDT:USDT",
		Type:     enum.ContractTypeLinearPerpetual,
		Leverage: decimal.NewFromInt(10),
		TakerFee: dec("0.0005"),
	}
	inverseContract = Contract{
		Symbol:     "BTC/USD:BTC",
		Type:       enum.ContractTypeInversePerpetual,
		MarginType: enum.MarginTypeIsolated,
		Leverage:   model.One,
		TakerFee:   dec("0.0005"),
	}
)

func newTestPosition(t *testing.T, c Contract) (*Position, *transaction.Ledger) {
	t.Helper()
	ledger := transaction.NewLedger(nil)
	p, err := New(c, enum.PositionSideBoth, ledger, clock.NewManual(time.Unix(1_700_000_000, 0)))
	require.NoError(t, err)
	return p, ledger
}

func fill(side enum.OrderSide, quantity, price string) Fill {
	return Fill{OrderID: "o", Side: side, Quantity: dec(quantity), Price: dec(price)}
}

func TestPositionConstructors(t *testing.T) {
	_, err := NewLinear(inverseContract, enum.PositionSideBoth, nil, nil)
	assert.ErrorIs(t, err, exception.ErrInvalidPosition)
	_, err = NewInverse(linearContract, enum.PositionSideBoth, nil, nil)
	assert.ErrorIs(t, err, exception.ErrInvalidPosition)
	_, err = New(Contract{Symbol: "BTC/USDT", Type: enum.ContractTypeSpot}, enum.PositionSideBoth, nil, nil)
	assert.ErrorIs(t, err, exception.ErrInvalidPosition)

	p, err := New(linearContract, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, enum.PositionStatusClosed, p.Status())
	assert.Equal(t, enum.PositionSideBoth, p.Side())
	assert.Equal(t, enum.MarginTypeIsolated, p.Contract().MarginType)
	assert.Equal(t, "USDT", p.Contract().SettlementCurrency())
	assert.Equal(t, "BTC", inverseContract.SettlementCurrency())
}

func TestLinearPosition(t *testing.T) {
	p, ledger := newTestPosition(t, linearContract)

	_, err := p.UpdateFromFill(fill(enum.OrderSideBuy, "2", "100"))
	require.NoError(t, err)
	_, err = p.UpdateFromFill(fill(enum.OrderSideBuy, "2", "110"))
	require.NoError(t, err)
	assertDec(t, "4", p.Size())
	assertDec(t, "105", p.EntryPrice())
	assert.Equal(t, enum.PositionStatusOpen, p.Status())

	_, err = p.SetMarkPrice(dec("110"))
	require.NoError(t, err)
	assertDec(t, "20", p.UnrealizedPnl())
	assertDec(t, "440", p.Value())
	assertDec(t, "44", p.InitialMargin())
	assertDec(t, "95.55", p.LiquidationPrice())
	assertDec(t, "94.5", p.BankruptcyPrice())

	txs, err := p.UpdateFromFill(fill(enum.OrderSideSell, "1", "120"))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, enum.TransactionTypeRealizedPnl, txs[0].Type)
	assertDec(t, "15", txs[0].Amount)
	assertDec(t, "-1", txs[0].QuantityDelta)
	assertDec(t, "-1", txs[0].CumulativeReducedSize)
	assertDec(t, "120", p.ExitPrice())
	assertDec(t, "3", p.Size())

	// sells through zero and opens a short with the rest
	txs, err = p.UpdateFromFill(fill(enum.OrderSideSell, "5", "100"))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assertDec(t, "-15", txs[0].Amount)
	assertDec(t, "105", txs[0].AverageExitPrice)
	assertDec(t, "-4", txs[0].CumulativeReducedSize)
	assertDec(t, "-2", p.Size())
	assertDec(t, "100", p.EntryPrice())
	assertDec(t, "0", p.ExitPrice())
	assertDec(t, "0", p.AlreadyReducedSize())
	assertDec(t, "0", p.RealizedPnl())
	assert.Equal(t, 2, ledger.Len())
}

func TestReduceOnly(t *testing.T) {
	p, _ := newTestPosition(t, linearContract)
	_, err := p.UpdateFromFill(Fill{Side: enum.OrderSideSell, Quantity: dec("1"), Price: dec("100"), ReduceOnly: true})
	assert.ErrorIs(t, err, exception.ErrReduceOnlyRejected)

	_, err = p.UpdateFromFill(fill(enum.OrderSideSell, "2", "100"))
	require.NoError(t, err)
	_, err = p.UpdateFromFill(Fill{Side: enum.OrderSideBuy, Quantity: dec("5"), Price: dec("90"), ReduceOnly: true})
	require.NoError(t, err)
	assertDec(t, "0", p.Size())
	assertDec(t, "20", p.RealizedPnl())
	assert.Equal(t, enum.PositionStatusClosed, p.Status())
}

func TestRoundTripRestoresPosition(t *testing.T) {
	p, _ := newTestPosition(t, linearContract)
	_, err := p.UpdateFromFill(fill(enum.OrderSideBuy, "1", "100"))
	require.NoError(t, err)
	_, err = p.UpdateFromFill(fill(enum.OrderSideSell, "1", "100"))
	require.NoError(t, err)

	assertDec(t, "0", p.Size())
	assertDec(t, "0", p.EntryPrice())
	assertDec(t, "0", p.RealizedPnl())
	assert.Equal(t, enum.PositionStatusClosed, p.Status())
}

func TestFeeTransactions(t *testing.T) {
	p, ledger := newTestPosition(t, linearContract)
	f := fill(enum.OrderSideBuy, "2", "100")
	f.Fee = model.Fee{Cost: dec("0.1"), Currency: "USDT"}
	txs, err := p.UpdateFromFill(f)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, enum.TransactionTypeTradingFee, txs[0].Type)
	assertDec(t, "-0.1", txs[0].Amount)
	assertDec(t, "0.1", p.FeesPaid())
	assertDec(t, "0", p.RealizedPnl())
	assertDec(t, "-0.1", ledger.Total("USDT"))

	assertDec(t, "0.1", p.FeeToOpen(dec("2"), dec("100")))
	assertDec(t, "0.2", p.TwoWayTakerFee(dec("2"), dec("100")))
	assertDec(t, "20", p.MarginFor(dec("2"), dec("100")))
}

func TestInversePositionPnl(t *testing.T) {
	p, _ := newTestPosition(t, inverseContract)
	_, err := p.UpdateFromFill(fill(enum.OrderSideBuy, "100", "100"))
	require.NoError(t, err)

	_, err = p.SetMarkPrice(dec("200"))
	require.NoError(t, err)
	assertDec(t, "0.5", p.UnrealizedPnl())
	assertDec(t, "0.5", p.Value())
	assertDec(t, "0.0005", p.FeeToOpen(dec("100"), dec("100")))

	_, err = p.SetMarkPrice(dec("100"))
	require.NoError(t, err)
	assertDec(t, "0", p.UnrealizedPnl())
}

func TestInverseEntryAverage(t *testing.T) {
	p, _ := newTestPosition(t, inverseContract)
	_, err := p.UpdateFromFill(fill(enum.OrderSideBuy, "100", "100"))
	require.NoError(t, err)
	_, err = p.UpdateFromFill(fill(enum.OrderSideBuy, "100", "200"))
	require.NoError(t, err)
	assert.True(t, model.Div(dec("200"), dec("1.5")).Equal(p.EntryPrice()), p.EntryPrice().String())
}

func TestLiquidationOnMark(t *testing.T) {
	p, ledger := newTestPosition(t, inverseContract)
	_, err := p.UpdateFromFill(fill(enum.OrderSideBuy, "100", "100"))
	require.NoError(t, err)
	assertDec(t, "50.25", p.LiquidationPrice().Round(2))

	txs, err := p.SetMarkPrice(dec("50.26"))
	require.NoError(t, err)
	assert.Empty(t, txs)

	txs, err = p.SetMarkPrice(dec("50.24"))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, enum.TransactionTypeLiquidation, txs[0].Type)
	assertDec(t, "-100", txs[0].QuantityDelta)
	assert.Equal(t, "BTC", txs[0].Currency)
	assert.Equal(t, enum.PositionStatusLiquidated, p.Status())
	assertDec(t, "0", p.Size())

	txs, err = p.SetMarkPrice(dec("40"))
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Len(t, ledger.Filter("", enum.TransactionTypeLiquidation), 1)
}

func TestShortLinearLiquidation(t *testing.T) {
	p, _ := newTestPosition(t, linearContract)
	_, err := p.UpdateFromFill(fill(enum.OrderSideSell, "1", "100"))
	require.NoError(t, err)
	assertDec(t, "109", p.LiquidationPrice())

	txs, err := p.SetMarkPrice(dec("109"))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assertDec(t, "1", txs[0].QuantityDelta)
	assertDec(t, "-9", txs[0].Amount)
}

func TestFunding(t *testing.T) {
	testCases := []struct {
		desc string
		side enum.OrderSide
		rate string
		want string
	}{
		{desc: "long pays positive rate", side: enum.OrderSideBuy, rate: "0.001", want: "-0.2"},
		{desc: "short receives positive rate", side: enum.OrderSideSell, rate: "0.001", want: "0.2"},
		{desc: "long receives negative rate", side: enum.OrderSideBuy, rate: "-0.001", want: "0.2"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			p, _ := newTestPosition(t, linearContract)
			_, err := p.UpdateFromFill(fill(tc.side, "2", "100"))
			require.NoError(t, err)
			tx, ok := p.ApplyFunding(dec(tc.rate))
			require.True(t, ok)
			assert.Equal(t, enum.TransactionTypeFundingFee, tx.Type)
			assertDec(t, tc.want, tx.Amount)
		})
	}

	p, _ := newTestPosition(t, linearContract)
	_, ok := p.ApplyFunding(dec("0.001"))
	assert.False(t, ok)
}

func TestSync(t *testing.T) {
	p, _ := newTestPosition(t, linearContract)
	p.Sync(dec("-3"), dec("100"), dec("90"))
	assertDec(t, "-3", p.Size())
	assertDec(t, "30", p.UnrealizedPnl())
	assert.Equal(t, enum.PositionStatusOpen, p.Status())

	p.Sync(decimal.Zero, decimal.Zero, dec("90"))
	assert.Equal(t, enum.PositionStatusClosed, p.Status())
	assertDec(t, "0", p.EntryPrice())
}

func TestManager(t *testing.T) {
	m := NewManager(0, nil, clock.NewManual(time.Unix(0, 0)))
	_, err := m.Get("BTC/USDT:USDT", enum.PositionSideBoth)
	assert.ErrorIs(t, err, exception.ErrContractNotLoaded)

	hedge := linearContract
	hedge.PositionMode = enum.PositionModeHedge
	require.NoError(t, m.LoadContract(hedge))
	require.NoError(t, m.LoadContract(inverseContract))
	assert.True(t, m.HasContract("BTC/USD:BTC"))

	long, err := m.For("BTC/USDT:USDT", enum.OrderSideBuy, false)
	require.NoError(t, err)
	assert.Equal(t, enum.PositionSideLong, long.Side())
	closing, err := m.For("BTC/USDT:USDT", enum.OrderSideSell, true)
	require.NoError(t, err)
	assert.Same(t, long, closing)
	short, err := m.For("BTC/USDT:USDT", enum.OrderSideSell, false)
	require.NoError(t, err)
	assert.Equal(t, enum.PositionSideShort, short.Side())

	oneWay, err := m.For("BTC/USD:BTC", enum.OrderSideSell, false)
	require.NoError(t, err)
	assert.Equal(t, enum.PositionSideBoth, oneWay.Side())
	assert.Len(t, m.Positions("BTC/USDT:USDT"), 2)
	assert.Equal(t, 3, m.Len())

	_, err = oneWay.UpdateFromFill(fill(enum.OrderSideBuy, "100", "100"))
	require.NoError(t, err)
	txs, err := m.SetMarkPrice("BTC/USD:BTC", dec("50"))
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Len(t, m.Ledger().All(), 1)
}

func TestManagerFind(t *testing.T) {
	m := NewManager(0, nil, clock.NewManual(time.Unix(0, 0)))
	hedge := linearContract
	hedge.PositionMode = enum.PositionModeHedge
	require.NoError(t, m.LoadContract(hedge))
	require.NoError(t, m.LoadContract(inverseContract))
	long, err := m.Get("BTC/USDT:USDT", enum.PositionSideLong)
	require.NoError(t, err)
	both, err := m.Get("BTC/USD:BTC", enum.PositionSideBoth)
	require.NoError(t, err)

	testCases := []struct {
		desc     string
		symbol   string
		side     enum.PositionSide
		expected *Position
		err      error
	}{
		{"tracked hedge side", "BTC/USDT:USDT", enum.PositionSideLong, long, nil},
		{"untracked hedge side", "BTC/USDT:USDT", enum.PositionSideShort, nil, exception.ErrPositionNotFound},
		{"one way ignores side", "BTC/USD:BTC", enum.PositionSideShort, both, nil},
		{"contract not loaded", "ETH/USDT:USDT", enum.PositionSideBoth, nil, exception.ErrContractNotLoaded},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := m.Find(tc.symbol, tc.side)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tc.expected, got)
		})
	}
	assert.Equal(t, 2, m.Len())
}

func TestManagerEvictsOldest(t *testing.T) {
	m := NewManager(1, nil, nil)
	require.NoError(t, m.LoadContract(linearContract))
	require.NoError(t, m.LoadContract(inverseContract))
	first, err := m.Get("BTC/USDT:USDT", enum.PositionSideBoth)
	require.NoError(t, err)
	_, err = m.Get("BTC/USD:BTC", enum.PositionSideBoth)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
	again, err := m.Get("BTC/USDT:USDT", enum.PositionSideBoth)
	require.NoError(t, err)
	assert.NotSame(t, first, again)
}
