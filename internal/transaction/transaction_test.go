package transaction

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/model/enum"
)

type sliceSink struct {
	txs []Transaction
	err error
}

func (s *sliceSink) Append(tx Transaction) error {
	if s.err != nil {
		return s.err
	}
	s.txs = append(s.txs, tx)
	return nil
}

func TestLedger(t *testing.T) {
	sink := &sliceSink{}
	l := NewLedger(sink)
	var seen []string
	l.OnAppend(func(tx Transaction) { seen = append(seen, tx.ID) })

	fee := l.Append(Transaction{Symbol: "BTC/USDT:USDT", Type: enum.TransactionTypeTradingFee, Currency: "USDT", Amount: decimal.NewFromInt(-1)})
	pnl := l.Append(Transaction{Symbol: "BTC/USDT:USDT", Type: enum.TransactionTypeRealizedPnl, Currency: "USDT", Amount: decimal.NewFromInt(5)})
	l.Append(Transaction{ID: "fixed", Symbol: "BTC/USD:BTC", Type: enum.TransactionTypeFundingFee, Currency: "BTC", Amount: decimal.RequireFromString("0.1")})

	require.NotEmpty(t, fee.ID)
	assert.NotEqual(t, fee.ID, pnl.ID)
	assert.Equal(t, 3, l.Len())
	assert.Len(t, sink.txs, 3)
	assert.Equal(t, []string{fee.ID, pnl.ID, "fixed"}, seen)
	assert.True(t, decimal.NewFromInt(4).Equal(l.Total("USDT")))
	assert.Len(t, l.Filter("BTC/USDT:USDT", 0), 2)
	assert.Len(t, l.Filter("", enum.TransactionTypeFundingFee), 1)
	assert.Equal(t, "fixed", l.Filter("BTC/USD:BTC", enum.TransactionTypeFundingFee)[0].ID)
}

func TestLedgerKeepsTransactionWhenSinkFails(t *testing.T) {
	l := NewLedger(&sliceSink{err: errors.New("db down")})
	l.Append(Transaction{Symbol: "BTC/USDT:USDT", Type: enum.TransactionTypeTradingFee})
	assert.Equal(t, 1, l.Len())
}
