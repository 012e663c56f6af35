package session

import (
	"sync"

	"github.com/DigiGoon/bugrd/internal/bugreport"
	"github.com/DigiGoon/bugrd/internal/logging"
)

type eventKind int

const (
	eventProgress eventKind = iota
	eventError
	eventFinished
)

type queuedEvent struct {
	kind     eventKind
	progress float64
	code     bugreport.ErrorCode
}

// EventChannel delivers listener callbacks for one session in order. Events
// are enqueued under a mutex, which enforces the delivery contract at the
// source: progress values are clamped and non-decreasing, at most one
// terminal event is accepted, and nothing is accepted after it. A single
// dispatcher goroutine drains the queue so a slow listener can delay
// delivery but never reorder it, and callbacks are never invoked
// concurrently.
type EventChannel struct {
	listener bugreport.Listener
	logger   *logging.Logger

	mu           sync.Mutex
	queue        []queuedEvent
	highWater    float64
	terminal     bool
	closed       bool
	finishedHook func()

	wake chan struct{}
	done chan struct{}
}

// NewEventChannel creates a channel delivering to listener and starts its
// dispatcher goroutine.
func NewEventChannel(listener bugreport.Listener, logger *logging.Logger) *EventChannel {
	if logger == nil {
		logger = logging.NopLogger()
	}
	c := &EventChannel{
		listener:  listener,
		logger:    logger.WithComponent("channel"),
		highWater: bugreport.ProgressMin,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// SetFinishedHook registers a function invoked by the dispatcher immediately
// after OnFinished is delivered. The session uses it to tear down the
// collector as soon as the listener has been informed. Must be set before
// Finished can be enqueued.
func (c *EventChannel) SetFinishedHook(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishedHook = fn
}

// WatchPeer signals onPeerLost once if peerDone closes before the channel
// shuts down. A nil peerDone disables the watch.
func (c *EventChannel) WatchPeer(peerDone <-chan struct{}, onPeerLost func()) {
	if peerDone == nil {
		return
	}
	go func() {
		select {
		case <-peerDone:
			select {
			case <-c.done:
				// Channel already shut down; the loss is moot.
			default:
				onPeerLost()
			}
		case <-c.done:
		}
	}()
}

// Progress enqueues a progress callback. The value is clamped to [0, 100];
// values below the delivered high-water mark are dropped so the listener
// only ever observes a non-decreasing sequence. Returns false if the event
// was dropped.
func (c *EventChannel) Progress(p float64) bool {
	p = bugreport.ClampProgress(p)

	c.mu.Lock()
	if c.terminal || c.closed {
		c.mu.Unlock()
		return false
	}
	if p < c.highWater {
		c.mu.Unlock()
		c.logger.Debug("dropping regressing progress", "progress", p)
		return false
	}
	c.highWater = p
	c.queue = append(c.queue, queuedEvent{kind: eventProgress, progress: p})
	c.mu.Unlock()

	c.signal()
	return true
}

// Error enqueues the terminal OnError callback. Returns false if a terminal
// event was already accepted or the channel is closed.
func (c *EventChannel) Error(code bugreport.ErrorCode) bool {
	return c.enqueueTerminal(queuedEvent{kind: eventError, code: code})
}

// Finished enqueues the terminal OnFinished callback. Returns false if a
// terminal event was already accepted or the channel is closed.
func (c *EventChannel) Finished() bool {
	return c.enqueueTerminal(queuedEvent{kind: eventFinished})
}

func (c *EventChannel) enqueueTerminal(ev queuedEvent) bool {
	c.mu.Lock()
	if c.terminal || c.closed {
		c.mu.Unlock()
		return false
	}
	c.terminal = true
	c.queue = append(c.queue, ev)
	c.mu.Unlock()

	c.signal()
	return true
}

// Close tears the channel down without a terminal callback. Undelivered
// events are dropped. Used on cancellation and peer loss, where the listener
// must not hear anything further. Idempotent.
func (c *EventChannel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.queue = nil
	c.mu.Unlock()

	c.signal()
}

// Done is closed once the dispatcher has exited: every accepted event has
// been delivered, or the channel was closed.
func (c *EventChannel) Done() <-chan struct{} {
	return c.done
}

func (c *EventChannel) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *EventChannel) dispatch() {
	defer close(c.done)

	for {
		c.mu.Lock()
		if c.closed && len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		if len(c.queue) == 0 {
			c.mu.Unlock()
			<-c.wake
			continue
		}
		ev := c.queue[0]
		c.queue = c.queue[1:]
		hook := c.finishedHook
		c.mu.Unlock()

		switch ev.kind {
		case eventProgress:
			c.listener.OnProgress(ev.progress)
		case eventError:
			c.listener.OnError(ev.code)
			c.Close()
		case eventFinished:
			c.listener.OnFinished()
			if hook != nil {
				hook()
			}
			c.Close()
		}
	}
}
