package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/transaction"
)

// Record is the persisted form of a transaction.
type Record struct {
	ID                    string          `gorm:"primaryKey;size:36"`
	Exchange              string          `gorm:"index;size:64"`
	Timestamp             float64         `gorm:"index"`
	Symbol                string          `gorm:"index;size:64"`
	Side                  string          `gorm:"size:8"`
	Type                  string          `gorm:"size:32"`
	Currency              string          `gorm:"size:16"`
	Amount                decimal.Decimal `gorm:"type:numeric"`
	QuantityDelta         decimal.Decimal `gorm:"type:numeric"`
	CumulativeReducedSize decimal.Decimal `gorm:"type:numeric"`
	AverageExitPrice      decimal.Decimal `gorm:"type:numeric"`
	OrderID               string          `gorm:"size:64"`
}

func (Record) TableName() string {
	return "transactions"
}

func toRecord(exchange string, tx transaction.Transaction) Record {
	return Record{
		ID:                    tx.ID,
		Exchange:              exchange,
		Timestamp:             tx.Timestamp,
		Symbol:                tx.Symbol,
		Side:                  tx.Side.String(),
		Type:                  tx.Type.String(),
		Currency:              tx.Currency,
		Amount:                tx.Amount,
		QuantityDelta:         tx.QuantityDelta,
		CumulativeReducedSize: tx.CumulativeReducedSize,
		AverageExitPrice:      tx.AverageExitPrice,
		OrderID:               tx.OrderID,
	}
}

func (r Record) transaction() transaction.Transaction {
	return transaction.Transaction{
		ID:                    r.ID,
		Timestamp:             r.Timestamp,
		Symbol:                r.Symbol,
		Side:                  enum.ParsePositionSide(r.Side),
		Type:                  enum.ParseTransactionType(r.Type),
		Currency:              r.Currency,
		Amount:                r.Amount,
		QuantityDelta:         r.QuantityDelta,
		CumulativeReducedSize: r.CumulativeReducedSize,
		AverageExitPrice:      r.AverageExitPrice,
		OrderID:               r.OrderID,
	}
}

// Sink stores the transactions of one exchange session in postgres.
type Sink struct {
	db       *gorm.DB
	exchange string
}

// NewSink migrates the transactions table and returns a sink writing to it.
func NewSink(db *gorm.DB, exchange string) (*Sink, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, errors.Wrap(err, "migrate transactions")
	}
	return &Sink{db: db, exchange: exchange}, nil
}

// Append implements transaction.Sink.
func (s *Sink) Append(tx transaction.Transaction) error {
	rec := toRecord(s.exchange, tx)
	if err := s.db.Create(&rec).Error; err != nil {
		return errors.Wrapf(err, "insert transaction, id: %s", tx.ID)
	}
	return nil
}

// Load returns the stored transactions in time order, filtered by symbol
// when set.
func (s *Sink) Load(ctx context.Context, symbol string) ([]transaction.Transaction, error) {
	var records []Record
	q := s.db.WithContext(ctx).Where("exchange = ?", s.exchange)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	if err := q.Order("timestamp ASC").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "load transactions")
	}
	txs := make([]transaction.Transaction, 0, len(records))
	for _, r := range records {
		txs = append(txs, r.transaction())
	}
	return txs, nil
}

// Close closes the underlying connection pool.
func (s *Sink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
