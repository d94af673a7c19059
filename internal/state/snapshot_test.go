package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/internal/portfolio"
	"github.com/yanun0323/trading-core/internal/position"
	"github.com/yanun0323/trading-core/internal/transaction"
	"github.com/yanun0323/trading-core/pkg/clock"
	"github.com/yanun0323/trading-core/pkg/exception"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var contract = position.Contract{
	Symbol:   "BTC/USDT:USDT",
	Type:     enum.ContractTypeLinearPerpetual,
	Leverage: decimal.NewFromInt(10),
}

type fakeView struct {
	positions *position.Manager
	assets    map[string]portfolio.Asset
}

func (v *fakeView) Name() string                        { return "paper" }
func (v *fakeView) Now() float64                        { return 1_700_000_000 }
func (v *fakeView) GetOpenOrders(string) []*order.Order { return nil }
func (v *fakeView) ClosedOrders() []*order.Order        { return nil }
func (v *fakeView) GetPositions(symbol string) []*position.Position {
	return v.positions.Positions(symbol)
}
func (v *fakeView) Assets() map[string]portfolio.Asset { return v.assets }
func (v *fakeView) PortfolioValue() decimal.Decimal    { return dec("1000") }

func newPositions(t *testing.T) *position.Manager {
	t.Helper()
	m := position.NewManager(0, transaction.NewLedger(nil), clock.NewManual(time.Unix(1_700_000_000, 0)))
	require.NoError(t, m.LoadContract(contract))
	return m
}

func newView(t *testing.T) *fakeView {
	t.Helper()
	m := newPositions(t)
	p, err := m.Get(contract.Symbol, enum.PositionSideBoth)
	require.NoError(t, err)
	_, err = p.UpdateFromFill(position.Fill{OrderID: "o1", Side: enum.OrderSideBuy, Quantity: dec("2"), Price: dec("100")})
	require.NoError(t, err)
	return &fakeView{
		positions: m,
		assets: map[string]portfolio.Asset{
			"USDT": {Currency: "USDT", Total: dec("980"), Available: dec("960")},
			"BTC":  {Currency: "BTC", Total: dec("0.5"), Available: dec("0.5")},
		},
	}
}

func TestCapture(t *testing.T) {
	snap := Capture(newView(t))

	assert.Equal(t, "paper", snap.Exchange)
	assert.Equal(t, "1000", snap.Value)
	require.Len(t, snap.Assets, 2)
	assert.Equal(t, "BTC", snap.Assets[0].Currency)
	assert.Equal(t, "USDT", snap.Assets[1].Currency)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "2", snap.Positions[0].Size)
	assert.Equal(t, "both", snap.Positions[0].Side)
}

func TestWriteReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	snap := Capture(newView(t))

	require.NoError(t, WriteSnapshot(path, snap))
	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.NoError(t, CompareSnapshots(snap, loaded))
	assert.Equal(t, snap.Timestamp, loaded.Timestamp)

	_, err = ReadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCompareSnapshots(t *testing.T) {
	base := Capture(newView(t))

	testCases := []struct {
		desc   string
		mutate func(s *Snapshot)
		match  bool
	}{
		{desc: "identical", mutate: func(*Snapshot) {}, match: true},
		{desc: "equal decimals with different scale", mutate: func(s *Snapshot) { s.Assets[0].Total = "0.50" }, match: true},
		{desc: "asset total differs", mutate: func(s *Snapshot) { s.Assets[1].Total = "1" }},
		{desc: "missing asset", mutate: func(s *Snapshot) { s.Assets = s.Assets[:1] }},
		{desc: "position size differs", mutate: func(s *Snapshot) { s.Positions[0].Size = "3" }},
		{desc: "extra open order", mutate: func(s *Snapshot) { s.OpenOrders = append(s.OpenOrders, order.Dict{ID: "x"}) }},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			actual := Capture(newView(t))
			tc.mutate(&actual)
			err := CompareSnapshots(base, actual)
			if tc.match {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, exception.ErrSnapshotMismatch)
		})
	}
}

func TestRestore(t *testing.T) {
	snap := Capture(newView(t))

	balances, err := Balances(snap)
	require.NoError(t, err)
	assert.True(t, dec("980").Equal(balances["USDT"]))
	assert.True(t, dec("0.5").Equal(balances["BTC"]))

	m := newPositions(t)
	require.NoError(t, RestorePositions(m, snap))
	p, err := m.Get(contract.Symbol, enum.PositionSideBoth)
	require.NoError(t, err)
	assert.True(t, dec("2").Equal(p.Size()))
	assert.True(t, dec("100").Equal(p.EntryPrice()))
	assert.Equal(t, enum.PositionStatusOpen, p.Status())

	snap.Positions[0].Side = "sideways"
	assert.ErrorIs(t, RestorePositions(m, snap), exception.ErrInvalidArgument)
}
