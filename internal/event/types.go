// Package event defines event types for observing bugrd session activity.
// Events decouple the session machinery from logging, the CLI, and any
// other observers.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.admitted", "consent.decided")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Session Lifecycle Events
// -----------------------------------------------------------------------------

// SessionAdmittedEvent is emitted when a capture request passes admission
// and a session is created.
type SessionAdmittedEvent struct {
	baseEvent
	SessionID string // Unique identifier for the session
	Mode      string // Capture mode name
	Requester string // Principal the capture runs on behalf of
}

// NewSessionAdmittedEvent creates a SessionAdmittedEvent.
func NewSessionAdmittedEvent(sessionID, mode, requester string) SessionAdmittedEvent {
	return SessionAdmittedEvent{
		baseEvent: newBaseEvent("session.admitted"),
		SessionID: sessionID,
		Mode:      mode,
		Requester: requester,
	}
}

// SessionStateChangedEvent is emitted on every session state transition.
type SessionStateChangedEvent struct {
	baseEvent
	SessionID string
	OldState  string
	NewState  string
}

// NewSessionStateChangedEvent creates a SessionStateChangedEvent.
func NewSessionStateChangedEvent(sessionID, oldState, newState string) SessionStateChangedEvent {
	return SessionStateChangedEvent{
		baseEvent: newBaseEvent("session.state_changed"),
		SessionID: sessionID,
		OldState:  oldState,
		NewState:  newState,
	}
}

// SessionTerminalEvent is emitted exactly once when a session reaches a
// terminal state and its registry slot is released.
type SessionTerminalEvent struct {
	baseEvent
	SessionID string
	State     string // Terminal state name: "finished", "errored", "cancelled"
	ErrorCode string // Error code delivered to the listener, if any
}

// NewSessionTerminalEvent creates a SessionTerminalEvent.
func NewSessionTerminalEvent(sessionID, state, errorCode string) SessionTerminalEvent {
	return SessionTerminalEvent{
		baseEvent: newBaseEvent("session.terminal"),
		SessionID: sessionID,
		State:     state,
		ErrorCode: errorCode,
	}
}

// -----------------------------------------------------------------------------
// Consent Events
// -----------------------------------------------------------------------------

// ConsentRequestedEvent is emitted when the consent gate is armed and the
// prompt is presented to the user.
type ConsentRequestedEvent struct {
	baseEvent
	SessionID string
	Requester string
	Deadline  time.Time
}

// NewConsentRequestedEvent creates a ConsentRequestedEvent.
func NewConsentRequestedEvent(sessionID, requester string, deadline time.Time) ConsentRequestedEvent {
	return ConsentRequestedEvent{
		baseEvent: newBaseEvent("consent.requested"),
		SessionID: sessionID,
		Requester: requester,
		Deadline:  deadline,
	}
}

// ConsentDecidedEvent is emitted when the consent gate reaches a final
// decision (approved, denied, or timed out).
type ConsentDecidedEvent struct {
	baseEvent
	SessionID string
	Decision  string
}

// NewConsentDecidedEvent creates a ConsentDecidedEvent.
func NewConsentDecidedEvent(sessionID, decision string) ConsentDecidedEvent {
	return ConsentDecidedEvent{
		baseEvent: newBaseEvent("consent.decided"),
		SessionID: sessionID,
		Decision:  decision,
	}
}

// -----------------------------------------------------------------------------
// Collector Events
// -----------------------------------------------------------------------------

// CollectorProgressEvent is emitted as the collector reports progress.
type CollectorProgressEvent struct {
	baseEvent
	SessionID string
	Progress  float64 // In [0.0, 100.0]
}

// NewCollectorProgressEvent creates a CollectorProgressEvent.
func NewCollectorProgressEvent(sessionID string, progress float64) CollectorProgressEvent {
	return CollectorProgressEvent{
		baseEvent: newBaseEvent("collector.progress"),
		SessionID: sessionID,
		Progress:  progress,
	}
}
