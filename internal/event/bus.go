package event

import (
	"log"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// Handler consumes one published event.
type Handler func(Event)

type subscription struct {
	id      string
	handler Handler
}

// wildcardType subscribes a handler to every event type.
const wildcardType = "*"

// Bus fans events out to subscribed handlers, synchronously on the
// publisher's goroutine. Observers (the CLI's event tracing, tests) attach
// here instead of holding references into the session machinery.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
	}
}

// Subscribe registers handler for one event type and returns the
// subscription id for Unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:      id,
		handler: handler,
	})
	return id
}

// SubscribeAll registers handler for every event type and returns the
// subscription id for Unsubscribe.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(wildcardType, handler)
}

// Unsubscribe removes the subscription with the given id and reports
// whether it existed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				b.subscriptions[eventType] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish delivers event to its type's handlers, then to wildcard handlers,
// each group in registration order. A panicking handler is logged and
// skipped; the remaining handlers still run. Handlers registered while a
// publish is in flight see only later events.
func (b *Bus) Publish(event Event) {
	eventType := event.EventType()

	b.mu.RLock()
	typed := append([]subscription(nil), b.subscriptions[eventType]...)
	wildcard := append([]subscription(nil), b.subscriptions[wildcardType]...)
	b.mu.RUnlock()

	for _, sub := range typed {
		b.deliver(sub.handler, event)
	}
	for _, sub := range wildcard {
		b.deliver(sub.handler, event)
	}
}

func (b *Bus) deliver(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: event handler panicked on %s: %v\n%s",
				event.EventType(), r, debug.Stack())
		}
	}()
	handler(event)
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string][]subscription)
}

// SubscriptionCount returns how many subscriptions are registered.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
