package consent

import (
	"context"
	"time"
)

// PromptRequest carries the information shown to the user when asking for
// consent to share a capture.
type PromptRequest struct {
	// SessionID identifies the capture session.
	SessionID string
	// Requester is the principal asking for the capture.
	Requester string
	// Mode is the capture mode name.
	Mode string
	// Deadline is when the consent request expires.
	Deadline time.Time
}

// Prompter presents a yes/no consent prompt to the user. The session owns
// the timeout: a prompter that returns after the deadline loses to the
// gate's TimedOut transition, and a prompter error leaves the gate pending.
type Prompter interface {
	// Prompt blocks until the user decides or ctx is done. It returns true
	// for approval, false for denial.
	Prompt(ctx context.Context, req PromptRequest) (bool, error)
}

// Static is a Prompter that always returns a fixed decision. Used for
// headless operation and tests.
type Static struct {
	// Approved is the decision returned by every prompt.
	Approved bool
}

// Prompt implements Prompter.
func (s Static) Prompt(ctx context.Context, req PromptRequest) (bool, error) {
	return s.Approved, nil
}

// Func adapts a function to the Prompter interface.
type Func func(ctx context.Context, req PromptRequest) (bool, error)

// Prompt implements Prompter.
func (f Func) Prompt(ctx context.Context, req PromptRequest) (bool, error) {
	return f(ctx, req)
}
