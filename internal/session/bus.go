package session

import (
	"sync"

	"sereno-go/internal/field"
)

// Bus is an in-process fan-out for session events. Subscriber channels are
// buffered; a slow subscriber loses events rather than blocking publishers.
type Bus struct {
	mu   sync.Mutex
	subs []chan field.SessionEvent
}

var _ field.SessionBus = (*Bus)(nil)

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(e field.SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan field.SessionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan field.SessionEvent, 16)
	b.subs = append(b.subs, ch)
	return ch
}
