package collector

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/DigiGoon/bugrd/internal/bugreport"
	"github.com/DigiGoon/bugrd/internal/errors"
	"github.com/DigiGoon/bugrd/internal/logging"
	"github.com/DigiGoon/bugrd/internal/spool"
)

// Argument placeholders expanded before the collector command runs.
const (
	placeholderReport     = "{report}"
	placeholderScreenshot = "{screenshot}"
	placeholderMode       = "{mode}"
)

// progressPrefix marks a progress line on the collector command's stdout,
// e.g. "PROGRESS: 42" or "PROGRESS: 42/200".
const progressPrefix = "PROGRESS:"

// ExecConfig configures the external collector command.
type ExecConfig struct {
	// Command is the collector binary.
	Command string
	// Args are passed to the command after placeholder expansion.
	Args []string
	// EstimatedReportBytes enables file-growth progress when positive.
	// Progress parsed from stdout takes precedence where both are present
	// because delivered progress never decreases.
	EstimatedReportBytes int64
}

// ExecCollector runs an external command that writes the report artifact
// into the spool. Progress comes from "PROGRESS:" lines on the command's
// stdout, with spool file growth as a fallback estimate; the terminal
// outcome comes from the process exit status.
type ExecCollector struct {
	cfg    ExecConfig
	logger *logging.Logger

	mu       sync.Mutex
	started  bool
	canceled bool
	cancel   context.CancelFunc
}

// NewExecCollector creates a collector that runs cfg.Command per job.
func NewExecCollector(cfg ExecConfig, logger *logging.Logger) *ExecCollector {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ExecCollector{cfg: cfg, logger: logger.WithComponent("collector")}
}

// Start implements Collector.
func (c *ExecCollector) Start(ctx context.Context, job Job, sink Sink) error {
	if c.cfg.Command == "" {
		return errors.NewValidationError("collector command is required").
			WithField("command")
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.NewCollectorError("collector already started", errors.ErrCollectorFailed).
			WithCommand(c.cfg.Command)
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	if c.canceled {
		cancel()
	}
	c.mu.Unlock()

	args := expandArgs(c.cfg.Args, job)
	cmd := exec.CommandContext(runCtx, c.cfg.Command, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return errors.NewCollectorError("opening collector stdout", errors.ErrCollectorFailed).
			WithCommand(c.cfg.Command)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		c.logger.Error("collector command failed to start",
			"session_id", job.SessionID, "command", c.cfg.Command, "error", err)
		return errors.NewCollectorError("starting collector command", errors.ErrCollectorFailed).
			WithCommand(c.cfg.Command)
	}

	var watcher *spool.Watcher
	if c.cfg.EstimatedReportBytes > 0 {
		watcher, err = spool.NewWatcher(job.ReportPath, c.cfg.EstimatedReportBytes, func(fraction float64) {
			sink.Progress(fraction * bugreport.ProgressMax)
		})
		if err != nil {
			c.logger.Warn("file-growth progress unavailable",
				"session_id", job.SessionID, "error", err)
		}
	}

	c.logger.Info("collector command started",
		"session_id", job.SessionID, "command", c.cfg.Command, "mode", job.Mode.String())

	go c.run(runCtx, cmd, stdout, watcher, job, sink)
	return nil
}

func (c *ExecCollector) run(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, watcher *spool.Watcher, job Job, sink Sink) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if p, ok := parseProgressLine(scanner.Text()); ok {
			sink.Progress(p)
		}
	}

	err := cmd.Wait()
	if watcher != nil {
		watcher.Close()
	}

	switch {
	case ctx.Err() != nil:
		c.logger.Info("collector command canceled", "session_id", job.SessionID)
		sink.Failed(errors.NewCollectorError("capture canceled", errors.ErrCanceled).
			WithCommand(c.cfg.Command))

	case err != nil:
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		c.logger.Error("collector command failed",
			"session_id", job.SessionID, "exit_code", exitCode, "error", err)
		sink.Failed(errors.NewCollectorError("collector command failed", errors.ErrCollectorFailed).
			WithCommand(c.cfg.Command).
			WithExitCode(exitCode))

	default:
		c.logger.Info("collector command finished", "session_id", job.SessionID)
		sink.Finished()
	}
}

// Cancel implements Collector.
func (c *ExecCollector) Cancel() {
	c.mu.Lock()
	c.canceled = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// expandArgs substitutes job placeholders in the configured arguments.
func expandArgs(args []string, job Job) []string {
	expanded := make([]string, len(args))
	for i, arg := range args {
		arg = strings.ReplaceAll(arg, placeholderReport, job.ReportPath)
		arg = strings.ReplaceAll(arg, placeholderScreenshot, job.ScreenshotPath)
		arg = strings.ReplaceAll(arg, placeholderMode, job.Mode.String())
		expanded[i] = arg
	}
	return expanded
}

// parseProgressLine extracts a progress value from a collector stdout line.
// Accepted forms are "PROGRESS: <n>" for a value in [0, 100] and
// "PROGRESS: <n>/<total>" for a ratio.
func parseProgressLine(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, progressPrefix) {
		return 0, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, progressPrefix))

	if n, total, found := strings.Cut(rest, "/"); found {
		num, err1 := strconv.ParseFloat(strings.TrimSpace(n), 64)
		den, err2 := strconv.ParseFloat(strings.TrimSpace(total), 64)
		if err1 != nil || err2 != nil || den <= 0 {
			return 0, false
		}
		return bugreport.ClampProgress(num / den * bugreport.ProgressMax), true
	}

	v, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, false
	}
	return bugreport.ClampProgress(v), true
}
