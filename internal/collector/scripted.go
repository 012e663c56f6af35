package collector

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/DigiGoon/bugrd/internal/errors"
)

// ScriptedCollector plays back a fixed sequence of progress values and a
// fixed outcome. It backs deterministic tests and the CLI's fake capture
// path, where no real collector command is available.
type ScriptedCollector struct {
	// Steps are the progress values emitted in order before the outcome.
	Steps []float64
	// StepDelay is an optional pause between steps.
	StepDelay time.Duration
	// ReportContent is written to the job's report path before finishing.
	ReportContent []byte
	// ScreenshotContent is written to the job's screenshot path when the
	// job requests one.
	ScreenshotContent []byte
	// FailWith, when non-nil, ends the run with Failed instead of Finished.
	FailWith error

	mu      sync.Mutex
	started bool
	cancel  chan struct{}
}

// Start implements Collector.
func (c *ScriptedCollector) Start(ctx context.Context, job Job, sink Sink) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.NewCollectorError("collector already started", errors.ErrCollectorFailed)
	}
	c.started = true
	if c.cancel == nil {
		c.cancel = make(chan struct{})
	}
	cancel := c.cancel
	c.mu.Unlock()

	go c.run(ctx, job, sink, cancel)
	return nil
}

func (c *ScriptedCollector) run(ctx context.Context, job Job, sink Sink, cancel <-chan struct{}) {
	for _, step := range c.Steps {
		if c.StepDelay > 0 {
			select {
			case <-time.After(c.StepDelay):
			case <-cancel:
				sink.Failed(errors.NewCollectorError("capture canceled", errors.ErrCanceled))
				return
			case <-ctx.Done():
				sink.Failed(errors.NewCollectorError("capture canceled", errors.ErrCanceled))
				return
			}
		} else {
			select {
			case <-cancel:
				sink.Failed(errors.NewCollectorError("capture canceled", errors.ErrCanceled))
				return
			case <-ctx.Done():
				sink.Failed(errors.NewCollectorError("capture canceled", errors.ErrCanceled))
				return
			default:
			}
		}
		sink.Progress(step)
	}

	if c.FailWith != nil {
		sink.Failed(c.FailWith)
		return
	}

	if len(c.ReportContent) > 0 && job.ReportPath != "" {
		if err := os.WriteFile(job.ReportPath, c.ReportContent, 0o600); err != nil {
			sink.Failed(errors.NewCollectorError("writing scripted report", errors.ErrCollectorFailed))
			return
		}
	}
	if len(c.ScreenshotContent) > 0 && job.ScreenshotPath != "" {
		if err := os.WriteFile(job.ScreenshotPath, c.ScreenshotContent, 0o600); err != nil {
			sink.Failed(errors.NewCollectorError("writing scripted screenshot", errors.ErrCollectorFailed))
			return
		}
	}

	sink.Finished()
}

// Cancel implements Collector.
func (c *ScriptedCollector) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		c.cancel = make(chan struct{})
	}
	select {
	case <-c.cancel:
	default:
		close(c.cancel)
	}
}
