package trade

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/yanun0323/trading-core/internal/model"
)

func TestManagerEvictsOldest(t *testing.T) {
	m := NewManager(2)
	for i, id := range []string{"a", "b", "c"} {
		m.Add(Trade{ID: id, OrderID: "o-" + id, Symbol: "BTC/USDT", Quantity: decimal.NewFromInt(int64(i + 1))})
	}
	m.Add(Trade{ID: "d", OrderID: "o-c", Symbol: "ETH/USDT"})

	assert.Equal(t, 2, m.Len())
	_, ok := m.Get("a")
	assert.False(t, ok)

	trades := m.Trades("")
	assert.Equal(t, "c", trades[0].ID)
	assert.Equal(t, "d", trades[1].ID)
	assert.Len(t, m.Trades("ETH/USDT"), 1)
	assert.Len(t, m.OfOrder("o-c"), 2)
}

func TestDefaultCapacity(t *testing.T) {
	m := NewManager(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		m.Add(Trade{ID: decimal.NewFromInt(int64(i)).String(), Fee: model.Fee{Currency: "USDT"}})
	}
	assert.Equal(t, DefaultCapacity, m.Len())
}
