package event

import (
	"sync"
	"testing"
)

// collector gathers events from the bus for assertions.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handler(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := NewBus()
	col := &collector{}

	bus.Subscribe("session.admitted", col.handler)
	bus.Publish(NewSessionAdmittedEvent("sess-1", "full", "com.example.shell"))
	bus.Publish(NewConsentDecidedEvent("sess-1", "approved")) // different type, not delivered

	if got := col.count(); got != 1 {
		t.Errorf("handler received %d events, want 1", got)
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	col := &collector{}

	bus.SubscribeAll(col.handler)
	bus.Publish(NewSessionAdmittedEvent("sess-1", "full", "r"))
	bus.Publish(NewSessionTerminalEvent("sess-1", "finished", ""))
	bus.Publish(NewCollectorProgressEvent("sess-1", 50))

	if got := col.count(); got != 3 {
		t.Errorf("wildcard handler received %d events, want 3", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	col := &collector{}

	id := bus.Subscribe("consent.decided", col.handler)
	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe returned false for a live subscription")
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe returned true for a removed subscription")
	}

	bus.Publish(NewConsentDecidedEvent("sess-1", "denied"))
	if got := col.count(); got != 0 {
		t.Errorf("handler received %d events after unsubscribe, want 0", got)
	}
}

func TestBus_HandlerPanicDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()
	col := &collector{}

	bus.Subscribe("session.terminal", func(Event) { panic("boom") })
	bus.Subscribe("session.terminal", col.handler)

	bus.Publish(NewSessionTerminalEvent("sess-1", "errored", "RUNTIME"))

	if got := col.count(); got != 1 {
		t.Errorf("second handler received %d events, want 1", got)
	}
}

func TestBus_OrderingSpecificBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	var mu sync.Mutex
	record := func(tag string) Handler {
		return func(Event) {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
		}
	}

	bus.SubscribeAll(record("wildcard"))
	bus.Subscribe("collector.progress", record("specific"))

	bus.Publish(NewCollectorProgressEvent("sess-1", 10))

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("delivery order = %v, want [specific wildcard]", order)
	}
}

func TestBus_SubscriptionCount(t *testing.T) {
	bus := NewBus()
	bus.Subscribe("a", func(Event) {})
	bus.Subscribe("b", func(Event) {})
	bus.SubscribeAll(func(Event) {})

	if got := bus.SubscriptionCount(); got != 3 {
		t.Errorf("SubscriptionCount = %d, want 3", got)
	}

	bus.Clear()
	if got := bus.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount after Clear = %d, want 0", got)
	}
}
