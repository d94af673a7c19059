// Package latch provides a set-once waitable flag.
package latch

import (
	"context"
	"sync/atomic"
)

// Latch is a binary latch that can be awaited and set exactly once.
// The zero value is not usable, use New.
type Latch struct {
	set  atomic.Bool
	done chan struct{}
}

// New returns an unset latch.
func New() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Set sets the latch. It returns true only for the call that performed the set.
func (l *Latch) Set() bool {
	if !l.set.CompareAndSwap(false, true) {
		return false
	}
	close(l.done)
	return true
}

// IsSet reports whether the latch has been set.
func (l *Latch) IsSet() bool {
	return l.set.Load()
}

// Done returns a channel closed when the latch is set.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the latch is set or ctx is done. A latch that is already
// set always wins over a canceled context.
func (l *Latch) Wait(ctx context.Context) error {
	if l.IsSet() {
		return nil
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		if l.IsSet() {
			return nil
		}
		return ctx.Err()
	}
}
