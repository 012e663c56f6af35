// Package session implements the capture-session state machine, the ordered
// event channel that feeds the caller's listener, and the single-slot
// registry that admits at most one session at a time.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DigiGoon/bugrd/internal/bugreport"
	"github.com/DigiGoon/bugrd/internal/collector"
	"github.com/DigiGoon/bugrd/internal/consent"
	"github.com/DigiGoon/bugrd/internal/errors"
	"github.com/DigiGoon/bugrd/internal/event"
	"github.com/DigiGoon/bugrd/internal/logging"
	"github.com/DigiGoon/bugrd/internal/spool"
)

// State is a capture session's position in its lifecycle.
type State int

const (
	// StateRequested means the session is admitted but the collector has
	// not confirmed start.
	StateRequested State = iota
	// StateRunning means the collector is capturing.
	StateRunning
	// StateFinishing means the collector finished but consent is still
	// pending, so artifact hand-off is blocked.
	StateFinishing
	// StateFinished means the capture succeeded and artifacts were
	// delivered. Terminal.
	StateFinished
	// StateErrored means the capture failed or consent was denied or timed
	// out. Terminal.
	StateErrored
	// StateCancelled means the caller canceled or the peer was lost.
	// Terminal.
	StateCancelled
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateRunning:
		return "running"
	case StateFinishing:
		return "finishing"
	case StateFinished:
		return "finished"
	case StateErrored:
		return "errored"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateFinished, StateErrored, StateCancelled:
		return true
	default:
		return false
	}
}

// Config carries the collaborators a session needs.
type Config struct {
	// Request is the validated capture request.
	Request *bugreport.Request
	// Listener receives the session's callbacks.
	Listener bugreport.Listener
	// PeerDone, when non-nil, signals that the caller is gone when closed.
	PeerDone <-chan struct{}
	// Collector produces the capture artifacts.
	Collector collector.Collector
	// Spool stages artifacts until consent is decided.
	Spool *spool.Spool
	// Registry is the slot the session releases on terminal transition.
	Registry *Registry
	// Bus, when non-nil, receives lifecycle events.
	Bus *event.Bus
	// ConsentTimeout is how long the user has to decide.
	ConsentTimeout time.Duration
	// Logger is the base logger.
	Logger *logging.Logger
}

// Session is one end-to-end capture attempt. All state transitions and
// outcome decisions happen under the session mutex, which is the serialized
// execution context the consent timer and collector callbacks synchronize
// through; listener delivery itself is serialized separately by the event
// channel's dispatcher.
type Session struct {
	id        string
	req       *bugreport.Request
	channel   *EventChannel
	gate      *consent.Gate
	collector collector.Collector
	spool     *spool.Spool
	registry  *Registry
	bus       *event.Bus
	timeout   time.Duration
	logger    *logging.Logger

	mu           sync.Mutex
	state        State
	entry        *spool.Entry
	consentTimer *time.Timer
}

// NewSession creates a session in Requested state. Start must be called to
// begin the capture.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	id := uuid.NewString()

	s := &Session{
		id:        id,
		req:       cfg.Request,
		gate:      consent.NewGate(),
		collector: cfg.Collector,
		spool:     cfg.Spool,
		registry:  cfg.Registry,
		bus:       cfg.Bus,
		timeout:   cfg.ConsentTimeout,
		logger:    logger.WithSession(id).WithRequester(cfg.Request.Requester),
		state:     StateRequested,
	}

	s.channel = NewEventChannel(cfg.Listener, s.logger)
	s.channel.SetFinishedHook(s.collector.Cancel)
	s.channel.WatchPeer(cfg.PeerDone, s.handlePeerLost)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConsentDeadline returns the armed consent deadline, valid once Start has
// been called.
func (s *Session) ConsentDeadline() (time.Time, bool) {
	return s.gate.Deadline()
}

// Start stages the spool entry, arms the consent deadline, and launches the
// collector. A failure here is a post-admission failure: it is delivered
// through OnError and the session reaches Errored; Start's error return is
// informational for logging.
func (s *Session) Start(ctx context.Context) error {
	entry, err := s.spool.Create(s.id, s.req.WantsScreenshot())
	if err != nil {
		s.logger.Error("spool staging failed", "error", err)
		s.failRuntime()
		return err
	}

	s.mu.Lock()
	s.entry = entry
	deadline := time.Now().Add(s.timeout)
	s.gate.Request(deadline)
	s.consentTimer = time.AfterFunc(s.timeout, s.consentExpired)
	s.mu.Unlock()

	s.publish(event.NewConsentRequestedEvent(s.id, s.req.Requester, deadline))

	job := collector.Job{
		SessionID:      s.id,
		Mode:           s.req.Mode,
		ReportPath:     entry.ReportPath,
		ScreenshotPath: entry.ScreenshotPath,
	}
	if err := s.collector.Start(ctx, job, (*collectorSink)(s)); err != nil {
		s.logger.Error("collector start failed", "error", err)
		s.failRuntime()
		return err
	}

	s.mu.Lock()
	if s.state == StateRequested {
		s.setStateLocked(StateRunning)
	}
	s.mu.Unlock()
	return nil
}

// Approve records user approval. While the collector is still running the
// approval is only recorded; artifacts are released when it finishes. If
// the collector already finished, artifacts are released immediately.
func (s *Session) Approve() error {
	if err := s.gate.Approve(); err != nil {
		s.logger.Warn("late consent approval ignored", "error", err)
		return err
	}
	s.publish(event.NewConsentDecidedEvent(s.id, consent.DecisionApproved.String()))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("consent approved", "state", s.state.String())
	if s.state == StateFinishing {
		s.releaseArtifactsLocked()
	}
	return nil
}

// Deny records user denial. Denial is immediately terminal even while the
// collector is running: the listener gets OnError(USER_DENIED_CONSENT) and
// the collector receives a best-effort cancel. No artifact bytes ever reach
// the caller's sinks.
func (s *Session) Deny() error {
	if err := s.gate.Deny(); err != nil {
		s.logger.Warn("late consent denial ignored", "error", err)
		return err
	}
	s.publish(event.NewConsentDecidedEvent(s.id, consent.DecisionDenied.String()))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return nil
	}
	s.logger.Info("consent denied", "state", s.state.String())
	s.collector.Cancel()
	s.discardEntryLocked()
	s.terminateLocked(StateErrored, bugreport.CodeUserDeniedConsent)
	return nil
}

// Cancel moves the session to Cancelled. Authoritative for the state
// machine, best-effort for the collector: the session stops relaying events
// immediately whether or not the collector acknowledges. No callback is
// delivered; the caller initiated the cancel. Idempotent on terminal
// sessions.
func (s *Session) Cancel() {
	s.cancel("cancel requested")
}

func (s *Session) handlePeerLost() {
	s.cancel("peer lost")
}

func (s *Session) cancel(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	s.logger.Info("session cancelled", "reason", reason, "state", s.state.String())
	s.collector.Cancel()
	s.channel.Close()
	s.discardEntryLocked()
	s.finalizeLocked(StateCancelled, "")
}

// consentExpired runs on the consent timer. It synchronizes with the
// session mutex before applying TimedOut, so a decision that arrived first
// always wins. Timeout is immediately terminal even while the collector is
// running; the artifact stays in the spool for manual retrieval.
func (s *Session) consentExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.gate.Expire(time.Now()) {
		return
	}
	s.publish(event.NewConsentDecidedEvent(s.id, consent.DecisionTimedOut.String()))

	if s.state.Terminal() {
		return
	}
	s.logger.Warn("consent timed out", "state", s.state.String())
	s.collector.Cancel()
	s.keepEntryLocked()
	s.terminateLocked(StateErrored, bugreport.CodeUserConsentTimedOut)
}

// collectorSink adapts the session to the collector callback interface.
type collectorSink Session

func (cs *collectorSink) Progress(p float64) {
	(*Session)(cs).handleProgress(p)
}

func (cs *collectorSink) Finished() {
	(*Session)(cs).handleCollectorFinished()
}

func (cs *collectorSink) Failed(err error) {
	(*Session)(cs).handleCollectorFailed(err)
}

func (s *Session) handleProgress(p float64) {
	s.mu.Lock()
	if s.state != StateRunning && s.state != StateRequested {
		state := s.state
		s.mu.Unlock()
		s.logger.Warn("dropping late collector progress", "progress", p, "state", state.String())
		return
	}
	s.mu.Unlock()

	if s.channel.Progress(p) {
		s.publish(event.NewCollectorProgressEvent(s.id, bugreport.ClampProgress(p)))
	}
}

func (s *Session) handleCollectorFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		s.logger.Warn("dropping late collector finish", "state", s.state.String())
		return
	}

	switch s.gate.Decision() {
	case consent.DecisionApproved:
		s.releaseArtifactsLocked()
	case consent.DecisionPending:
		s.setStateLocked(StateFinishing)
	default:
		// Denied and TimedOut terminate the session on arrival, so the
		// session cannot still be live here.
		s.logger.Warn("collector finish after final consent decision",
			"decision", s.gate.Decision().String())
	}
}

func (s *Session) handleCollectorFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		// Expected after cancel or a consent-driven termination, where the
		// collector's own terminal callback arrives late.
		if !errors.Is(err, errors.ErrCanceled) {
			s.logger.Warn("dropping late collector failure", "error", err)
		}
		return
	}

	s.logger.Error("collector failed", "error", err)
	s.discardEntryLocked()
	s.terminateLocked(StateErrored, bugreport.CodeRuntime)
}

// failRuntime reports a post-admission startup failure.
func (s *Session) failRuntime() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	s.discardEntryLocked()
	s.terminateLocked(StateErrored, bugreport.CodeRuntime)
}

// releaseArtifactsLocked copies spooled artifacts to the caller's sinks and
// finishes the session. Called with the mutex held, with consent Approved.
func (s *Session) releaseArtifactsLocked() {
	if err := s.spool.Release(s.entry, s.req.ReportSink, s.req.ScreenshotSink); err != nil {
		s.logger.Error("artifact release failed", "error", err)
		s.entry = nil
		s.terminateLocked(StateErrored, bugreport.CodeRuntime)
		return
	}
	s.entry = nil
	s.logger.Info("artifacts delivered")
	s.setStateLocked(StateFinished)
	s.stopTimerLocked()
	s.channel.Finished()
	s.registry.release(s)
	s.publish(event.NewSessionTerminalEvent(s.id, StateFinished.String(), ""))
}

// terminateLocked applies an error terminal transition and delivers the
// terminal callback. Called with the mutex held.
func (s *Session) terminateLocked(target State, code bugreport.ErrorCode) {
	s.setStateLocked(target)
	s.stopTimerLocked()
	s.channel.Error(code)
	s.registry.release(s)
	s.publish(event.NewSessionTerminalEvent(s.id, target.String(), code.String()))
}

// finalizeLocked applies a silent terminal transition with no callback.
// Called with the mutex held.
func (s *Session) finalizeLocked(target State, detail string) {
	s.setStateLocked(target)
	s.stopTimerLocked()
	s.registry.release(s)
	s.publish(event.NewSessionTerminalEvent(s.id, target.String(), detail))
}

func (s *Session) setStateLocked(target State) {
	from := s.state
	s.state = target
	s.logger.Debug("state transition", "from", from.String(), "to", target.String())
	s.publish(event.NewSessionStateChangedEvent(s.id, from.String(), target.String()))
}

func (s *Session) stopTimerLocked() {
	if s.consentTimer != nil {
		s.consentTimer.Stop()
	}
}

func (s *Session) discardEntryLocked() {
	if s.entry == nil {
		return
	}
	if err := s.spool.Discard(s.entry); err != nil {
		s.logger.Warn("spool discard failed", "error", err)
	}
	s.entry = nil
}

func (s *Session) keepEntryLocked() {
	if s.entry == nil {
		return
	}
	if err := s.spool.Keep(s.entry); err != nil {
		s.logger.Warn("spool retention failed", "error", err)
	}
}

func (s *Session) publish(ev event.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// Wait blocks until every accepted listener callback has been delivered.
// Intended for tests and CLI shutdown.
func (s *Session) Wait() {
	<-s.channel.Done()
}
