// Package collector runs the capture backend for a session. A Collector
// produces the report artifact into the session's spool entry and reports
// progress and completion through a Sink; it knows nothing about consent or
// delivery, which the session layer owns.
package collector

import (
	"context"

	"github.com/DigiGoon/bugrd/internal/bugreport"
)

// Job describes one capture run handed to a collector.
type Job struct {
	// SessionID identifies the owning session, for logging.
	SessionID string
	// Mode selects what the capture gathers.
	Mode bugreport.Mode
	// ReportPath is where the collector must write the report artifact.
	ReportPath string
	// ScreenshotPath is where the collector should write a screenshot, or
	// empty when the session did not request one.
	ScreenshotPath string
}

// Sink receives a collector's outcome callbacks.
//
// The contract mirrors the listener contract one layer up: Progress is
// called zero or more times, then exactly one of Finished or Failed.
// Collectors may invoke the sink from any goroutine; the session serializes
// delivery.
type Sink interface {
	// Progress reports capture progress in [0.0, 100.0].
	Progress(progress float64)

	// Finished reports that the artifacts are complete in the spool. Terminal.
	Finished()

	// Failed reports that the capture failed. Terminal.
	Failed(err error)
}

// Collector produces capture artifacts for a single job.
type Collector interface {
	// Start begins the capture and returns once it is running. Outcomes
	// arrive asynchronously through sink. Start may be called at most once.
	Start(ctx context.Context, job Job, sink Sink) error

	// Cancel stops an in-flight capture. The sink still receives a terminal
	// callback. Cancel is safe to call at any point, including before Start
	// and after completion.
	Cancel()
}

// Factory creates one collector per session. The service holds a factory so
// each session gets a fresh collector instance.
type Factory func() Collector
