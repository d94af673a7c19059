package market

import (
	"context"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/pkg/latch"
)

const defaultHandledPricesSize = 50

// PriceEvent is set once, the first time a handled price reaches its target at
// or after its minimum timestamp.
type PriceEvent struct {
	id           uint64
	target       decimal.Decimal
	minTimestamp float64
	above        bool
	latch        *latch.Latch
	hook         func()
}

func (e *PriceEvent) ID() uint64              { return e.id }
func (e *PriceEvent) Target() decimal.Decimal { return e.target }
func (e *PriceEvent) MinTimestamp() float64   { return e.minTimestamp }
func (e *PriceEvent) TriggersAbove() bool     { return e.above }
func (e *PriceEvent) IsSet() bool             { return e.latch.IsSet() }
func (e *PriceEvent) Done() <-chan struct{}   { return e.latch.Done() }
func (e *PriceEvent) Wait(ctx context.Context) error {
	return e.latch.Wait(ctx)
}

// isNoop is true for events that can never fire.
func (e *PriceEvent) isNoop() bool {
	return !e.above && e.target.IsZero()
}

func (e *PriceEvent) matches(price decimal.Decimal, timestamp float64) bool {
	if e.isNoop() || timestamp < e.minTimestamp {
		return false
	}
	if e.above {
		return price.GreaterThanOrEqual(e.target)
	}
	return price.LessThanOrEqual(e.target)
}

type handledPrice struct {
	price     decimal.Decimal
	timestamp float64
}

// PriceEventsManager owns the pending price events of a symbol. Events are
// checked in registration order, and the hooks of events fired by one call are
// scheduled on the scheduler in registration order once the call has handled
// every price.
type PriceEventsManager struct {
	mu        sync.Mutex
	scheduler *bus.Scheduler
	seq       uint64
	events    []*PriceEvent
	handled   []handledPrice
	maxSize   int
}

func NewPriceEventsManager(scheduler *bus.Scheduler) *PriceEventsManager {
	return &PriceEventsManager{
		scheduler: scheduler,
		maxSize:   defaultHandledPricesSize,
	}
}

// NewEvent registers an event. With allowInstantFill, the event is set at
// creation when the last handled price already satisfies it at a timestamp not
// older than minTimestamp. hook, when not nil, is scheduled once the event is
// set.
func (m *PriceEventsManager) NewEvent(price decimal.Decimal, minTimestamp float64, triggersAbove, allowInstantFill bool, hook func()) *PriceEvent {
	m.mu.Lock()
	m.seq++
	e := &PriceEvent{
		id:           m.seq,
		target:       price,
		minTimestamp: minTimestamp,
		above:        triggersAbove,
		latch:        latch.New(),
		hook:         hook,
	}
	if allowInstantFill && len(m.handled) > 0 {
		last := m.handled[len(m.handled)-1]
		if e.matches(last.price, last.timestamp) {
			e.latch.Set()
			m.mu.Unlock()
			m.scheduleHooks([]*PriceEvent{e})
			return e
		}
	}
	m.events = append(m.events, e)
	m.mu.Unlock()
	return e
}

// HandleRecentTrades checks every trade in order against every pending event.
func (m *PriceEventsManager) HandleRecentTrades(trades []model.RecentTrade) {
	prices := make([]handledPrice, 0, len(trades))
	for _, t := range trades {
		prices = append(prices, handledPrice{price: t.Price, timestamp: t.Timestamp})
	}
	m.handle(prices)
}

// HandlePrice handles a single price, typically a mark price update.
func (m *PriceEventsManager) HandlePrice(price decimal.Decimal, timestamp float64) {
	m.handle([]handledPrice{{price: price, timestamp: timestamp}})
}

func (m *PriceEventsManager) handle(prices []handledPrice) {
	if len(prices) == 0 {
		return
	}
	m.mu.Lock()
	var fired []*PriceEvent
	for _, p := range prices {
		fired = m.checkLocked(p, fired)
	}
	m.remember(prices...)
	m.mu.Unlock()
	m.scheduleHooks(fired)
}

func (m *PriceEventsManager) checkLocked(p handledPrice, fired []*PriceEvent) []*PriceEvent {
	kept := m.events[:0]
	for _, e := range m.events {
		if e.matches(p.price, p.timestamp) && e.latch.Set() {
			fired = append(fired, e)
			continue
		}
		kept = append(kept, e)
	}
	clear(m.events[len(kept):])
	m.events = kept
	return fired
}

func (m *PriceEventsManager) remember(prices ...handledPrice) {
	m.handled = append(m.handled, prices...)
	if over := len(m.handled) - m.maxSize; over > 0 {
		m.handled = append(m.handled[:0], m.handled[over:]...)
	}
}

func (m *PriceEventsManager) scheduleHooks(fired []*PriceEvent) {
	if len(fired) == 0 {
		return
	}
	slices.SortFunc(fired, func(a, b *PriceEvent) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		default:
			return 0
		}
	})
	for _, e := range fired {
		if e.hook != nil && m.scheduler != nil {
			m.scheduler.Schedule(e.hook)
		}
	}
}

// Check sets e when the last handled price satisfies it. It reports whether e
// is set.
func (m *PriceEventsManager) Check(e *PriceEvent) bool {
	if e == nil {
		return false
	}
	m.mu.Lock()
	if e.IsSet() {
		m.mu.Unlock()
		return true
	}
	if len(m.handled) == 0 {
		m.mu.Unlock()
		return false
	}
	last := m.handled[len(m.handled)-1]
	if !e.matches(last.price, last.timestamp) || !slices.Contains(m.events, e) {
		m.mu.Unlock()
		return false
	}
	e.latch.Set()
	m.events = slices.DeleteFunc(m.events, func(p *PriceEvent) bool { return p == e })
	m.mu.Unlock()
	m.scheduleHooks([]*PriceEvent{e})
	return true
}

// RemoveEvent drops a pending event. Removing an unknown or fired event is a
// no-op.
func (m *PriceEventsManager) RemoveEvent(e *PriceEvent) {
	if e == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = slices.DeleteFunc(m.events, func(p *PriceEvent) bool { return p == e })
}

// ClearRecentPrices drops the handled price record. Pending events are kept.
func (m *PriceEventsManager) ClearRecentPrices() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handled = nil
}

// Pending returns the number of events waiting for a price.
func (m *PriceEventsManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// LastHandledPrice returns the most recent handled price and its timestamp.
func (m *PriceEventsManager) LastHandledPrice() (decimal.Decimal, float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handled) == 0 {
		return decimal.Zero, 0, false
	}
	last := m.handled[len(m.handled)-1]
	return last.price, last.timestamp, true
}
