package inproc

import (
	"errors"
	"fmt"
	"sync"

	"agent_office/internal/domain"
)

var ErrSubscriberQueueFull = errors.New("subscriber queue is full")

// Bus fans office events out to every registered subscriber, typically one
// per open event stream. Slow subscribers lose events rather than block the
// publisher; they catch up from the next snapshot.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan domain.Event
	buffer int
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[string]chan domain.Event),
		buffer: buffer,
	}
}

func (b *Bus) Register(subscriberID string) <-chan domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[subscriberID]; ok {
		return ch
	}
	ch := make(chan domain.Event, b.buffer)
	b.subs[subscriberID] = ch
	return ch
}

func (b *Bus) Unregister(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[subscriberID]
	if !ok {
		return
	}
	delete(b.subs, subscriberID)
	close(ch)
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish offers ev to every subscriber and reports the ones that were full.
func (b *Bus) Publish(ev domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var errs []error
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			errs = append(errs, fmt.Errorf("subscriber %s: %w", id, ErrSubscriberQueueFull))
		}
	}
	return errors.Join(errs...)
}
