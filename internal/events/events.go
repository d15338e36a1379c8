// Package events provides a small in-process publish/subscribe bus for
// domain events.
package events

import "sync"

// Handler receives every published event. Handlers run on the publisher's
// goroutine and must return quickly.
type Handler func(event interface{})

// Bus is a thread-safe fan-out. Subscriptions cannot be removed; the bus
// lives for the process lifetime.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(event interface{}) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
