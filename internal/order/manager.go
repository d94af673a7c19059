package order

import (
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/pkg/exception"
)

// DefaultClosedOrdersCapacity bounds the closed orders kept for lookups.
const DefaultClosedOrdersCapacity = 500

// Manager indexes the orders of a session. Open orders keep their insertion
// order; closed orders are kept in a bounded cache.
type Manager struct {
	mu         sync.RWMutex
	open       map[string]*Order
	sequence   []string
	byExchange map[string]string
	closed     *lru.Cache[string, *Order]
}

func NewManager(closedCapacity int) *Manager {
	if closedCapacity <= 0 {
		closedCapacity = DefaultClosedOrdersCapacity
	}
	closed, err := lru.New[string, *Order](closedCapacity)
	if err != nil {
		panic(err)
	}
	return &Manager{
		open:       make(map[string]*Order),
		byExchange: make(map[string]string),
		closed:     closed,
	}
}

// Add stores o as an open order.
func (m *Manager) Add(o *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[o.ID()]; !ok {
		m.sequence = append(m.sequence, o.ID())
	}
	m.open[o.ID()] = o
	if id := o.ExchangeID(); id != "" {
		m.byExchange[id] = o.ID()
	}
}

// BindExchangeID records the exchange id assigned to an open order.
func (m *Manager) BindExchangeID(o *Order, exchangeID string) {
	o.SetExchangeID(exchangeID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if exchangeID != "" {
		m.byExchange[exchangeID] = o.ID()
	}
}

// Get returns the order with id, open or recently closed.
func (m *Manager) Get(id string) (*Order, error) {
	m.mu.RLock()
	o, ok := m.open[id]
	m.mu.RUnlock()
	if ok {
		return o, nil
	}
	if o, ok := m.closed.Get(id); ok {
		return o, nil
	}
	return nil, errors.Wrapf(exception.ErrOrderNotFound, "id: %s", id)
}

// GetByExchangeID returns the open order known to the exchange as id.
func (m *Manager) GetByExchangeID(exchangeID string) (*Order, error) {
	m.mu.RLock()
	id, ok := m.byExchange[exchangeID]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(exception.ErrOrderNotFound, "exchange id: %s", exchangeID)
	}
	return m.Get(id)
}

// Open returns the open orders of symbol, or of every symbol when symbol is
// empty, in submission order.
func (m *Manager) Open(symbol string) []*Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orders := make([]*Order, 0, len(m.sequence))
	for _, id := range m.sequence {
		o := m.open[id]
		if symbol == "" || o.Symbol() == symbol {
			orders = append(orders, o)
		}
	}
	return orders
}

// Close moves o from the open orders to the closed cache.
func (m *Manager) Close(o *Order) {
	m.remove(o)
	m.closed.Add(o.ID(), o)
}

// Remove forgets o entirely.
func (m *Manager) Remove(o *Order) {
	m.remove(o)
	m.closed.Remove(o.ID())
}

func (m *Manager) remove(o *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[o.ID()]; !ok {
		return
	}
	delete(m.open, o.ID())
	m.sequence = slices.DeleteFunc(m.sequence, func(id string) bool { return id == o.ID() })
	if id := o.ExchangeID(); id != "" {
		delete(m.byExchange, id)
	}
}

// Closed returns the cached closed orders, oldest first.
func (m *Manager) Closed() []*Order {
	return m.closed.Values()
}

// Len returns the number of open orders.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.open)
}
