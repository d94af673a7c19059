package trade

import (
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/order"
)

// DefaultCapacity bounds the trades kept by a Manager.
const DefaultCapacity = 500

// Trade is one execution of an order.
type Trade struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	ExchangeOrderID string          `json:"exchangeOrderId,omitempty"`
	Symbol          string          `json:"symbol"`
	Side            enum.OrderSide  `json:"-"`
	Type            enum.OrderType  `json:"-"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	Cost            decimal.Decimal `json:"cost"`
	Fee             model.Fee       `json:"fee"`
	Timestamp       float64         `json:"timestamp"`
	ReduceOnly      bool            `json:"reduceOnly"`
	Tag             string          `json:"tag,omitempty"`
	Simulated       bool            `json:"simulated"`
}

// FromFill builds the trade of o filling quantity at price.
func FromFill(o *order.Order, quantity, price decimal.Decimal, fee model.Fee, timestamp float64, simulated bool) Trade {
	return Trade{
		ID:              uuid.NewString(),
		OrderID:         o.ID(),
		ExchangeOrderID: o.ExchangeID(),
		Symbol:          o.Symbol(),
		Side:            o.Side(),
		Type:            o.Type(),
		Quantity:        quantity,
		Price:           price,
		Cost:            quantity.Mul(price),
		Fee:             fee,
		Timestamp:       timestamp,
		ReduceOnly:      o.ReduceOnly(),
		Tag:             o.Tag(),
		Simulated:       simulated,
	}
}

// Manager keeps the latest trades; the oldest are evicted first.
type Manager struct {
	mu     sync.Mutex
	trades *lru.Cache[string, Trade]
}

func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	trades, err := lru.New[string, Trade](capacity)
	if err != nil {
		panic(err)
	}
	return &Manager{trades: trades}
}

func (m *Manager) Add(t Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades.Add(t.ID, t)
}

func (m *Manager) Get(id string) (Trade, bool) {
	return m.trades.Peek(id)
}

// Trades returns the kept trades of symbol, or all of them when symbol is
// empty, oldest first.
func (m *Manager) Trades(symbol string) []Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.trades.Values()
	if symbol == "" {
		return all
	}
	trades := make([]Trade, 0, len(all))
	for _, t := range all {
		if t.Symbol == symbol {
			trades = append(trades, t)
		}
	}
	return trades
}

// OfOrder returns the trades of the order with id.
func (m *Manager) OfOrder(orderID string) []Trade {
	var trades []Trade
	for _, t := range m.Trades("") {
		if t.OrderID == orderID {
			trades = append(trades, t)
		}
	}
	return trades
}

func (m *Manager) Len() int {
	return m.trades.Len()
}
