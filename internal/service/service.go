// Package service exposes the capture API: submit a request with a
// listener, receive a handle, cancel by handle. It owns the collaborators a
// session needs and runs the consent prompt for each admitted session.
package service

import (
	"context"
	"time"

	"github.com/DigiGoon/bugrd/internal/bugreport"
	"github.com/DigiGoon/bugrd/internal/collector"
	"github.com/DigiGoon/bugrd/internal/consent"
	"github.com/DigiGoon/bugrd/internal/event"
	"github.com/DigiGoon/bugrd/internal/logging"
	"github.com/DigiGoon/bugrd/internal/session"
	"github.com/DigiGoon/bugrd/internal/spool"
)

// Config carries the service's collaborators.
type Config struct {
	// Spool stages artifacts until consent is decided.
	Spool *spool.Spool
	// NewCollector creates one collector per session.
	NewCollector collector.Factory
	// Prompter presents the consent question to the user.
	Prompter consent.Prompter
	// ConsentTimeout is how long the user has to decide.
	ConsentTimeout time.Duration
	// Bus, when non-nil, receives lifecycle events.
	Bus *event.Bus
	// Logger is the base logger.
	Logger *logging.Logger
}

// Service accepts capture requests and drives one session at a time.
type Service struct {
	registry       *session.Registry
	spool          *spool.Spool
	newCollector   collector.Factory
	prompter       consent.Prompter
	consentTimeout time.Duration
	bus            *event.Bus
	logger         *logging.Logger
}

// New creates a service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Service{
		registry:       session.NewRegistry(logger),
		spool:          cfg.Spool,
		newCollector:   cfg.NewCollector,
		prompter:       cfg.Prompter,
		consentTimeout: cfg.ConsentTimeout,
		bus:            cfg.Bus,
		logger:         logger.WithComponent("service"),
	}
}

// StartCapture validates and admits a capture request. Admission-time
// failures (invalid input, a session already active) are returned
// synchronously and create no session; everything after admission reaches
// the caller through the listener. peerDone, when non-nil, marks the caller
// as gone when closed, which cancels the session silently.
func (s *Service) StartCapture(ctx context.Context, req *bugreport.Request, listener bugreport.Listener, peerDone <-chan struct{}) (*session.Handle, error) {
	if err := req.Validate(); err != nil {
		s.logger.Warn("capture request rejected", "error", err)
		return nil, err
	}

	sess := session.NewSession(session.Config{
		Request:        req,
		Listener:       listener,
		PeerDone:       peerDone,
		Collector:      s.newCollector(),
		Spool:          s.spool,
		Registry:       s.registry,
		Bus:            s.bus,
		ConsentTimeout: s.consentTimeout,
		Logger:         s.logger,
	})

	handle, err := s.registry.Admit(sess)
	if err != nil {
		return nil, err
	}
	s.publish(event.NewSessionAdmittedEvent(sess.ID(), req.Mode.String(), req.Requester))

	// A start failure past this point is a post-admission failure: the
	// session has already delivered OnError and released its slot.
	if err := sess.Start(ctx); err != nil {
		s.logger.Error("capture start failed", "session_id", sess.ID(), "error", err)
		return handle, nil
	}

	go s.runConsentPrompt(ctx, sess, req)
	return handle, nil
}

// Cancel requests cancellation of the session behind handle. Stale handles
// are a no-op.
func (s *Service) Cancel(handle *session.Handle) {
	s.registry.Cancel(handle)
}

// Active returns the currently running session, or nil.
func (s *Service) Active() *session.Session {
	return s.registry.Active()
}

// Spool returns the service's staging spool, for the manual-retrieval
// commands.
func (s *Service) Spool() *spool.Spool {
	return s.spool
}

// runConsentPrompt asks the user and applies the answer to the session. A
// prompt failure leaves the gate pending; the consent timer then times the
// session out.
func (s *Service) runConsentPrompt(ctx context.Context, sess *session.Session, req *bugreport.Request) {
	deadline, armed := sess.ConsentDeadline()
	if !armed {
		return
	}

	approved, err := s.prompter.Prompt(ctx, consent.PromptRequest{
		SessionID: sess.ID(),
		Requester: req.Requester,
		Mode:      req.Mode.String(),
		Deadline:  deadline,
	})
	if err != nil {
		s.logger.Warn("consent prompt failed", "session_id", sess.ID(), "error", err)
		return
	}

	if approved {
		if err := sess.Approve(); err != nil {
			s.logger.Debug("approval not applied", "session_id", sess.ID(), "error", err)
		}
		return
	}
	if err := sess.Deny(); err != nil {
		s.logger.Debug("denial not applied", "session_id", sess.ID(), "error", err)
	}
}

func (s *Service) publish(ev event.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}
