// Package notify fans task change events out to filter-scoped subscribers.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rezkam/housekeeping/internal/domain"
)

// DefaultBufferSize is the per-subscriber event buffer.
const DefaultBufferSize = 64

// Broker is the in-process notification channel.
//
// Events are delivered per subscriber in publish order. A subscriber whose
// buffer is full misses the event; any queued event already makes a cache
// refetch the full scope, so nothing is lost that the refetch won't repair.
type Broker struct {
	bufferSize int

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*subscriber
	closed bool
	done   chan struct{} // closed by Close
}

type subscriber struct {
	filter domain.TaskFilter
	events chan domain.TaskEvent
}

// NewBroker creates a broker. A non-positive bufferSize selects DefaultBufferSize.
func NewBroker(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broker{
		bufferSize: bufferSize,
		subs:       make(map[uint64]*subscriber),
		done:       make(chan struct{}),
	}
}

// Subscribe opens a feed of events touching filter.
// The subscription ends when ctx ends, when Unsubscribe is called, or when the broker closes.
func (b *Broker) Subscribe(ctx context.Context, filter domain.TaskFilter) (*domain.Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		events := make(chan domain.TaskEvent)
		close(events)
		return domain.NewSubscription(events, nil), nil
	}
	b.nextID++
	id := b.nextID
	sub := &subscriber{
		filter: filter,
		events: make(chan domain.TaskEvent, b.bufferSize),
	}
	b.subs[id] = sub
	b.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			b.remove(id)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		case <-b.done:
		}
	}()

	return domain.NewSubscription(sub.events, stop), nil
}

// Publish delivers ev to every subscriber whose filter it touches.
func (b *Broker) Publish(ctx context.Context, ev domain.TaskEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		if !ev.Touches(sub.filter) {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			slog.DebugContext(ctx, "subscriber buffer full, dropping event",
				"subscriber", id,
				"task_id", ev.TaskID(),
				"type", ev.Type)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for id, sub := range b.subs {
		close(sub.events)
		delete(b.subs, id)
	}
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	close(sub.events)
	delete(b.subs, id)
}
