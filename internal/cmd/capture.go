package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DigiGoon/bugrd/internal/bugreport"
	"github.com/DigiGoon/bugrd/internal/collector"
	"github.com/DigiGoon/bugrd/internal/config"
	"github.com/DigiGoon/bugrd/internal/consent"
	"github.com/DigiGoon/bugrd/internal/event"
	"github.com/DigiGoon/bugrd/internal/logging"
	"github.com/DigiGoon/bugrd/internal/service"
	"github.com/DigiGoon/bugrd/internal/spool"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run a diagnostic capture",
	Long: `Run a diagnostic capture end to end: start the collector, ask for
consent, and write the report to the output file once the user approves.

If consent is denied the capture is discarded. If the consent window
expires the artifact is kept in the spool; use "bugrd spool list" and
"bugrd spool export" to retrieve it manually.`,
	RunE: runCapture,
}

var (
	captureMode       string
	captureOutput     string
	captureScreenshot string
	captureRequester  string
	captureYes        bool
	captureFake       bool
	captureVerbose    bool
)

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().StringVarP(&captureMode, "mode", "m", "full",
		fmt.Sprintf("capture mode (%v)", bugreport.ValidModes()))
	captureCmd.Flags().StringVarP(&captureOutput, "output", "o", "",
		"report output file (default bugreport-<timestamp>.zip)")
	captureCmd.Flags().StringVar(&captureScreenshot, "screenshot", "",
		"also capture a screenshot to this file")
	captureCmd.Flags().StringVar(&captureRequester, "requester", "cli",
		"principal shown on the consent prompt")
	captureCmd.Flags().BoolVarP(&captureYes, "yes", "y", false,
		"approve consent without prompting")
	captureCmd.Flags().BoolVar(&captureFake, "fake", false,
		"use the built-in fake collector instead of the configured command")
	captureCmd.Flags().BoolVarP(&captureVerbose, "verbose", "v", false,
		"print lifecycle events")
}

// cliListener prints listener callbacks and signals the terminal one.
type cliListener struct {
	out      func(format string, args ...any)
	terminal chan error
}

func (l *cliListener) OnProgress(p float64) {
	l.out("progress: %.1f%%\n", p)
}

func (l *cliListener) OnError(code bugreport.ErrorCode) {
	l.terminal <- code.Err()
}

func (l *cliListener) OnFinished() {
	l.terminal <- nil
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	mode, ok := bugreport.ParseMode(captureMode)
	if !ok {
		return fmt.Errorf("unrecognized mode %q, valid modes: %v", captureMode, bugreport.ValidModes())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	sp, err := openSpool(cfg, logger)
	if err != nil {
		return err
	}
	if _, err := sp.Prune(time.Now()); err != nil {
		logger.Warn("spool prune failed", "error", err)
	}

	output := captureOutput
	if output == "" {
		output = fmt.Sprintf("bugreport-%s.zip", time.Now().Format("20060102-150405"))
	}
	reportFile, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer reportFile.Close()

	req := &bugreport.Request{
		Mode:       mode,
		ReportSink: reportFile,
		Requester:  captureRequester,
	}

	var screenshotFile *os.File
	if captureScreenshot != "" {
		screenshotFile, err = os.Create(captureScreenshot)
		if err != nil {
			return fmt.Errorf("creating screenshot file: %w", err)
		}
		defer screenshotFile.Close()
		req.ScreenshotSink = screenshotFile
	}

	var bus *event.Bus
	if captureVerbose {
		bus = event.NewBus()
		bus.SubscribeAll(func(ev event.Event) {
			cmd.Printf("event: %s\n", ev.EventType())
		})
	}

	svc := service.New(service.Config{
		Spool:          sp,
		NewCollector:   collectorFactory(cfg, logger),
		Prompter:       capturePrompter(cfg),
		ConsentTimeout: cfg.Consent.ConsentTimeout(),
		Bus:            bus,
		Logger:         logger,
	})

	listener := &cliListener{out: cmd.Printf, terminal: make(chan error, 1)}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := svc.StartCapture(ctx, req, listener, nil)
	if err != nil {
		return err
	}
	cmd.Printf("capture started: session %s\n", handle.SessionID())

	select {
	case err := <-listener.terminal:
		if err != nil {
			os.Remove(output)
			return fmt.Errorf("capture failed: %w", err)
		}
	case <-ctx.Done():
		svc.Cancel(handle)
		os.Remove(output)
		return fmt.Errorf("capture canceled")
	}

	cmd.Printf("report written to %s\n", output)
	if screenshotFile != nil {
		cmd.Printf("screenshot written to %s\n", captureScreenshot)
	}
	return nil
}

// collectorFactory selects the configured collector command, falling back
// to the fake collector when none is configured or --fake is set.
func collectorFactory(cfg *config.Config, logger *logging.Logger) collector.Factory {
	if captureFake || cfg.Collector.Command == "" {
		return func() collector.Collector {
			return &collector.ScriptedCollector{
				Steps:         []float64{10, 30, 60, 90},
				StepDelay:     200 * time.Millisecond,
				ReportContent: []byte("fake diagnostic report\n"),
			}
		}
	}
	return func() collector.Collector {
		return collector.NewExecCollector(collector.ExecConfig{
			Command:              cfg.Collector.Command,
			Args:                 cfg.Collector.Args,
			EstimatedReportBytes: cfg.Collector.EstimatedReportBytes(),
		}, logger)
	}
}

func capturePrompter(cfg *config.Config) consent.Prompter {
	if captureYes || cfg.Consent.AutoApprove {
		return consent.Static{Approved: true}
	}
	return consent.Terminal{}
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	dir := ""
	if cfg.Logging.Enabled && cfg.Logging.Dir != "" {
		dir = cfg.Logging.Dir
	}
	logger, err := logging.NewLogger(dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	return logger, nil
}

func openSpool(cfg *config.Config, logger *logging.Logger) (*spool.Spool, error) {
	dir := cfg.Spool.ResolveDir(config.DataDir())
	sp, err := spool.New(dir, cfg.Spool.Retention(), logger)
	if err != nil {
		return nil, fmt.Errorf("opening spool: %w", err)
	}
	return sp, nil
}
