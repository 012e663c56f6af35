// Package consent implements the user-consent gate for capture sessions.
// A capture's artifacts are delivered to the caller only if the user
// approves sharing before a deadline; the gate records that decision
// exactly once.
package consent

import (
	"sync"
	"time"

	"github.com/DigiGoon/bugrd/internal/errors"
)

// Decision is the state of the consent gate.
type Decision int

const (
	// DecisionPending means no decision has been recorded yet.
	DecisionPending Decision = iota
	// DecisionApproved means the user agreed to share the capture.
	DecisionApproved
	// DecisionDenied means the user declined to share the capture.
	DecisionDenied
	// DecisionTimedOut means no decision arrived before the deadline.
	DecisionTimedOut
)

// String returns a human-readable name for the decision.
func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionApproved:
		return "approved"
	case DecisionDenied:
		return "denied"
	case DecisionTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Final reports whether the decision can no longer change.
func (d Decision) Final() bool {
	return d != DecisionPending
}

// Gate tracks the consent decision for one capture session. The decision is
// monotonic: Pending transitions to exactly one of Approved, Denied, or
// TimedOut, and never changes afterwards.
//
// The gate does not own a timer. The session arms the gate with a deadline
// and drives expiry through Expire from its own serialized execution
// context, so a firing timer cannot race a concurrently arriving decision.
//
// Gate is safe for concurrent use.
type Gate struct {
	mu       sync.Mutex
	armed    bool
	deadline time.Time
	decision Decision
}

// NewGate creates a gate with no decision recorded.
func NewGate() *Gate {
	return &Gate{decision: DecisionPending}
}

// Request arms the gate with the given deadline. Re-arming an already armed
// gate is a no-op so that a retried prompt cannot extend the deadline.
func (g *Gate) Request(deadline time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.armed {
		return
	}
	g.armed = true
	g.deadline = deadline
}

// Approve records user approval. Returns ErrDecided if a decision was
// already recorded.
func (g *Gate) Approve() error {
	return g.decide(DecisionApproved)
}

// Deny records user denial. Returns ErrDecided if a decision was already
// recorded.
func (g *Gate) Deny() error {
	return g.decide(DecisionDenied)
}

func (g *Gate) decide(d Decision) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.decision.Final() {
		return errors.NewConsentError("decision conflict", errors.ErrDecided).
			WithDecision(g.decision.String())
	}
	g.decision = d
	return nil
}

// Expire transitions the gate to TimedOut if it is armed, still pending,
// and now is at or past the deadline. Returns true if the gate timed out on
// this call. A decision that was recorded first always wins.
func (g *Gate) Expire(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.armed || g.decision.Final() || now.Before(g.deadline) {
		return false
	}
	g.decision = DecisionTimedOut
	return true
}

// Decision returns the current decision.
func (g *Gate) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

// Deadline returns the armed deadline and whether the gate has been armed.
func (g *Gate) Deadline() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deadline, g.armed
}
