package latch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatchSetOnce(t *testing.T) {
	l := New()
	assert.False(t, l.IsSet())
	assert.True(t, l.Set())
	assert.False(t, l.Set())
	assert.True(t, l.IsSet())
	require.NoError(t, l.Wait(t.Context()))
}

func TestLatchConcurrentSetters(t *testing.T) {
	l := New()
	var (
		wg  sync.WaitGroup
		won int32
		mu  sync.Mutex
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Set() {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won)
}

func TestLatchWaitTimeout(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, l.IsSet())
}

func TestLatchSetterWinsOverCanceledWaiter(t *testing.T) {
	l := New()
	l.Set()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, l.Wait(ctx))
}
