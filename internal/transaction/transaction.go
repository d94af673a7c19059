package transaction

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/model/enum"
)

// Transaction is a balance movement caused by a position.
type Transaction struct {
	ID        string
	Timestamp float64
	Symbol    string
	Side      enum.PositionSide
	Type      enum.TransactionType
	Currency  string
	// Amount is the signed change of the settlement currency balance.
	Amount decimal.Decimal
	// QuantityDelta is the signed position size change.
	QuantityDelta         decimal.Decimal
	CumulativeReducedSize decimal.Decimal
	AverageExitPrice      decimal.Decimal
	OrderID               string
}

// Sink persists appended transactions.
type Sink interface {
	Append(tx Transaction) error
}

// Ledger is the in-memory list of transactions, mirrored to an optional sink.
type Ledger struct {
	mu        sync.RWMutex
	txs       []Transaction
	sink      Sink
	listeners []func(Transaction)
}

func NewLedger(sink Sink) *Ledger {
	return &Ledger{sink: sink}
}

// OnAppend registers fn to be called after each append.
func (l *Ledger) OnAppend(fn func(Transaction)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Append records tx, assigning its id when missing. Sink failures are logged
// and do not drop the transaction.
func (l *Ledger) Append(tx Transaction) Transaction {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	l.mu.Lock()
	l.txs = append(l.txs, tx)
	listeners := l.listeners
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.Append(tx); err != nil {
			logs.Errorf("persist transaction %s (%s %s), err: %+v", tx.ID, tx.Type, tx.Symbol, err)
		}
	}
	for _, fn := range listeners {
		fn(tx)
	}
	return tx
}

// All returns every transaction in append order.
func (l *Ledger) All() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Transaction(nil), l.txs...)
}

// Filter returns the transactions of symbol with type typ. Zero values match
// anything.
func (l *Ledger) Filter(symbol string, typ enum.TransactionType) []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var txs []Transaction
	for _, tx := range l.txs {
		if symbol != "" && tx.Symbol != symbol {
			continue
		}
		if typ.IsAvailable() && tx.Type != typ {
			continue
		}
		txs = append(txs, tx)
	}
	return txs
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.txs)
}

// Total sums the amounts of every transaction settled in currency.
func (l *Ledger) Total(currency string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, tx := range l.txs {
		if tx.Currency == currency {
			total = total.Add(tx.Amount)
		}
	}
	return total
}
