package portfolio

import (
	"context"
	"sync"

	"github.com/yanun0323/trading-core/pkg/latch"
)

// UpdateEvent lets callers wait for the next settlement of a kind of
// portfolio update.
type UpdateEvent struct {
	mu    sync.Mutex
	latch *latch.Latch
	count uint64
}

func newUpdateEvent() *UpdateEvent {
	return &UpdateEvent{latch: latch.New()}
}

// Next returns a channel closed by the next Set.
func (e *UpdateEvent) Next() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latch.Done()
}

// Wait blocks until the next Set or until ctx is done.
func (e *UpdateEvent) Wait(ctx context.Context) error {
	e.mu.Lock()
	l := e.latch
	e.mu.Unlock()
	return l.Wait(ctx)
}

// Count returns how many updates were settled.
func (e *UpdateEvent) Count() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

func (e *UpdateEvent) set() {
	e.mu.Lock()
	l := e.latch
	e.latch = latch.New()
	e.count++
	e.mu.Unlock()
	l.Set()
}
