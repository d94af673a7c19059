package market

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/model"
)

const DefaultRecentTradesSize = 100

// RecentTradesManager keeps the latest public trades, most recent last.
// Trades carrying an ID are deduplicated against the retained window.
type RecentTradesManager struct {
	mu      sync.RWMutex
	maxSize int
	trades  []model.RecentTrade
	ids     map[string]struct{}
}

func NewRecentTradesManager(maxSize int) *RecentTradesManager {
	if maxSize <= 0 {
		maxSize = DefaultRecentTradesSize
	}
	return &RecentTradesManager{
		maxSize: maxSize,
		ids:     make(map[string]struct{}),
	}
}

// Add appends trades not seen yet and returns them in input order.
func (m *RecentTradesManager) Add(trades []model.RecentTrade) []model.RecentTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := make([]model.RecentTrade, 0, len(trades))
	for _, t := range trades {
		if t.ID != "" {
			if _, ok := m.ids[t.ID]; ok {
				continue
			}
			m.ids[t.ID] = struct{}{}
		}
		m.trades = append(m.trades, t)
		added = append(added, t)
	}
	m.evict()
	return added
}

// Set replaces the retained trades.
func (m *RecentTradesManager) Set(trades []model.RecentTrade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = m.trades[:0]
	clear(m.ids)
	for _, t := range trades {
		if t.ID != "" {
			if _, ok := m.ids[t.ID]; ok {
				continue
			}
			m.ids[t.ID] = struct{}{}
		}
		m.trades = append(m.trades, t)
	}
	m.evict()
}

func (m *RecentTradesManager) evict() {
	over := len(m.trades) - m.maxSize
	if over <= 0 {
		return
	}
	for _, t := range m.trades[:over] {
		if t.ID != "" {
			delete(m.ids, t.ID)
		}
	}
	m.trades = append(m.trades[:0], m.trades[over:]...)
}

// Trades returns a copy of the retained trades, oldest first.
func (m *RecentTradesManager) Trades() []model.RecentTrade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.RecentTrade, len(m.trades))
	copy(out, m.trades)
	return out
}

func (m *RecentTradesManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trades)
}

// Prices returns the prices of the retained trades, oldest first.
func (m *RecentTradesManager) Prices() []decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]decimal.Decimal, 0, len(m.trades))
	for _, t := range m.trades {
		out = append(out, t.Price)
	}
	return out
}

func (m *RecentTradesManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = nil
	clear(m.ids)
}
