package obs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yanun0323/trading-core/internal/risk"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.Inc(EventOrderCreated)
	m.Inc(EventOrderCreated)
	m.Add(EventTransaction, 3)
	m.Inc(_event_end)
	m.IncRiskReason(risk.ReasonMaxQty)
	m.IncQueueDrop()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.EventCounts["order_created"])
	assert.Equal(t, uint64(3), snap.EventCounts["transaction"])
	assert.Equal(t, uint64(1), snap.RiskReasonCounts["max_qty"])
	assert.Equal(t, uint64(1), snap.QueueDrops)
	assert.Equal(t, uint64(2), m.Count(EventOrderCreated))
	assert.Len(t, snap.EventCounts, 2)
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	m.Inc(EventOrderFilled)
	m.ObserveOrderFlow(time.Second)
	assert.Equal(t, uint64(0), m.Count(EventOrderFilled))
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestLatencyStats(t *testing.T) {
	var l LatencyStats
	assert.Equal(t, LatencySnapshot{}, l.Snapshot())

	l.Observe(2 * time.Millisecond)
	l.Observe(4 * time.Millisecond)
	l.Observe(-time.Millisecond)

	snap := l.Snapshot()
	assert.Equal(t, uint64(2), snap.Count)
	assert.Equal(t, 2*time.Millisecond, snap.Min)
	assert.Equal(t, 4*time.Millisecond, snap.Max)
	assert.Equal(t, 3*time.Millisecond, snap.Avg)

	m := NewMetrics()
	base := time.Unix(100, 0)
	m.ObserveFeed(base, base.Add(time.Millisecond))
	m.ObserveFeed(base, base.Add(-time.Millisecond))
	assert.Equal(t, uint64(1), m.Snapshot().FeedLatency.Count)
}
