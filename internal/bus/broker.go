package bus

import (
	"sync"

	"github.com/yanun0323/trading-core/internal/model/enum"
)

// Handler receives a published event.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Broker fans events out to channel subscribers. Deliveries are scheduled on the
// scheduler so a publisher never re-enters a subscriber.
type Broker struct {
	mu        sync.RWMutex
	scheduler *Scheduler
	seq       uint64
	subs      map[enum.Channel][]subscription
}

func NewBroker(scheduler *Scheduler) *Broker {
	return &Broker{
		scheduler: scheduler,
		subs:      make(map[enum.Channel][]subscription),
	}
}

// Subscribe registers handler on channel and returns the function removing it.
func (b *Broker) Subscribe(channel enum.Channel, handler Handler) (unsubscribe func()) {
	if handler == nil || !channel.IsAvailable() {
		return func() {}
	}
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[channel] = append(b.subs[channel], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[channel]
			for i := range subs {
				if subs[i].id == id {
					b.subs[channel] = append(subs[:i:i], subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish schedules a delivery of the event to every current subscriber.
func (b *Broker) Publish(channel enum.Channel, symbol string, payload any) {
	b.mu.RLock()
	subs := b.subs[channel]
	if len(subs) == 0 {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, len(subs))
	for i := range subs {
		handlers[i] = subs[i].handler
	}
	b.mu.RUnlock()

	e := Event{Channel: channel, Symbol: symbol, Payload: payload}
	for _, h := range handlers {
		h := h
		b.scheduler.Schedule(func() { h(e) })
	}
}

// Subscribers returns the number of subscribers on channel.
func (b *Broker) Subscribers(channel enum.Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}
