package session

import (
	"sync"

	"github.com/DigiGoon/bugrd/internal/errors"
	"github.com/DigiGoon/bugrd/internal/logging"
)

// Handle identifies an admitted session to its caller. Cancel requests go
// through the registry with the handle; a handle whose session already
// terminated is stale and cancels are silently ignored.
type Handle struct {
	sessionID string
	session   *Session
}

// SessionID returns the admitted session's identifier.
func (h *Handle) SessionID() string {
	return h.sessionID
}

// Registry enforces the single-active-session invariant. The active slot is
// mutated only under the registry mutex, shared by Admit and release, so
// two sessions can never be admitted concurrently.
type Registry struct {
	mu     sync.Mutex
	active *Session
	logger *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{logger: logger.WithComponent("registry")}
}

// Admit claims the active slot for s. Returns ErrAlreadyActive if another
// session holds it; the active session is not disturbed and the rejected
// session is torn down. A rejected session must not be started.
func (r *Registry) Admit(s *Session) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		r.logger.Warn("admission rejected, session already active",
			"active_session_id", r.active.ID(), "rejected_session_id", s.ID())
		// The rejected session never ran, so there is nothing to deliver;
		// closing the channel stops its dispatcher and peer watch.
		s.channel.Close()
		return nil, errors.NewSessionError("a capture session is already active", errors.ErrAlreadyActive).
			WithSessionID(r.active.ID())
	}
	r.active = s
	r.logger.Info("session admitted", "session_id", s.ID())
	return &Handle{sessionID: s.ID(), session: s}, nil
}

// Cancel requests cancellation of the session behind h. A nil or stale
// handle is a no-op, not an error.
func (r *Registry) Cancel(h *Handle) {
	if h == nil || h.session == nil {
		return
	}

	r.mu.Lock()
	stale := r.active != h.session
	r.mu.Unlock()

	if stale {
		r.logger.Debug("cancel on stale handle ignored", "session_id", h.sessionID)
		return
	}
	// The session takes its own lock and calls release, so the registry
	// lock must not be held here.
	h.session.Cancel()
}

// Active returns the currently admitted session, or nil.
func (r *Registry) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// release frees the slot. Called by the session on terminal transition
// only.
func (r *Registry) release(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != s {
		return
	}
	r.active = nil
	r.logger.Info("session slot released", "session_id", s.ID())
}
