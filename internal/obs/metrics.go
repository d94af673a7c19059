package obs

import (
	"sync/atomic"
	"time"

	"github.com/yanun0323/trading-core/internal/risk"
)

// Event is a countable trading core occurrence.
type Event uint8

const (
	_event_beg Event = iota
	EventPriceFired
	EventOrderCreated
	EventOrderPartiallyFilled
	EventOrderFilled
	EventOrderCanceled
	EventOrderRejected
	EventOrderReplaced
	EventTrade
	EventTransaction
	EventLiquidation
	EventFunding
	_event_end
)

func (e Event) String() string {
	switch e {
	case EventPriceFired:
		return "price_event_fired"
	case EventOrderCreated:
		return "order_created"
	case EventOrderPartiallyFilled:
		return "order_partially_filled"
	case EventOrderFilled:
		return "order_filled"
	case EventOrderCanceled:
		return "order_canceled"
	case EventOrderRejected:
		return "order_rejected"
	case EventOrderReplaced:
		return "order_replaced"
	case EventTrade:
		return "trade"
	case EventTransaction:
		return "transaction"
	case EventLiquidation:
		return "liquidation"
	case EventFunding:
		return "funding"
	default:
		return ""
	}
}

// Metrics collects lightweight counters and latency stats. A nil *Metrics
// discards everything.
type Metrics struct {
	eventCounts      [_event_end]uint64
	riskReasonCounts [16]uint64
	queueDrops       uint64
	queueClosed      uint64

	feedLatency      LatencyStats
	orderFlowLatency LatencyStats
	riskEvalLatency  LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts      map[string]uint64 `json:"eventCounts"`
	RiskReasonCounts map[string]uint64 `json:"riskReasonCounts"`
	QueueDrops       uint64            `json:"queueDrops"`
	QueueClosed      uint64            `json:"queueClosed"`
	FeedLatency      LatencySnapshot   `json:"feedLatency"`
	OrderFlowLatency LatencySnapshot   `json:"orderFlowLatency"`
	RiskEvalLatency  LatencySnapshot   `json:"riskEvalLatency"`
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments the counter of an event.
func (m *Metrics) Inc(e Event) {
	m.Add(e, 1)
}

// Add increments the counter of an event by n.
func (m *Metrics) Add(e Event, n uint64) {
	if m == nil || e <= _event_beg || e >= _event_end || n == 0 {
		return
	}
	atomic.AddUint64(&m.eventCounts[e], n)
}

// Count returns the current counter of an event.
func (m *Metrics) Count(e Event) uint64 {
	if m == nil || e <= _event_beg || e >= _event_end {
		return 0
	}
	return atomic.LoadUint64(&m.eventCounts[e])
}

// IncRiskReason increments the risk reason counter.
func (m *Metrics) IncRiskReason(reason risk.Reason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.riskReasonCounts) {
		atomic.AddUint64(&m.riskReasonCounts[idx], 1)
	}
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// ObserveFeed measures the delay between a market update and its handling.
func (m *Metrics) ObserveFeed(eventTime, handled time.Time) {
	if m == nil || eventTime.IsZero() || handled.Before(eventTime) {
		return
	}
	m.feedLatency.Observe(handled.Sub(eventTime))
}

// ObserveOrderFlow measures order submission latency.
func (m *Metrics) ObserveOrderFlow(d time.Duration) {
	if m == nil {
		return
	}
	m.orderFlowLatency.Observe(d)
}

// ObserveRiskEval measures risk evaluation latency.
func (m *Metrics) ObserveRiskEval(d time.Duration) {
	if m == nil {
		return
	}
	m.riskEvalLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[string]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[Event(i).String()] = v
		}
	}
	riskCounts := make(map[string]uint64)
	for i := range m.riskReasonCounts {
		if v := atomic.LoadUint64(&m.riskReasonCounts[i]); v > 0 {
			riskCounts[risk.Reason(i).String()] = v
		}
	}
	return Snapshot{
		EventCounts:      eventCounts,
		RiskReasonCounts: riskCounts,
		QueueDrops:       atomic.LoadUint64(&m.queueDrops),
		QueueClosed:      atomic.LoadUint64(&m.queueClosed),
		FeedLatency:      m.feedLatency.Snapshot(),
		OrderFlowLatency: m.orderFlowLatency.Snapshot(),
		RiskEvalLatency:  m.riskEvalLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
