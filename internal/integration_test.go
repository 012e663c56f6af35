// Package internal contains integration tests that verify the packages work
// together correctly: the service wiring, the session state machine, and the
// event bus observing a full capture lifecycle.
package internal

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DigiGoon/bugrd/internal/bugreport"
	"github.com/DigiGoon/bugrd/internal/collector"
	"github.com/DigiGoon/bugrd/internal/consent"
	"github.com/DigiGoon/bugrd/internal/errors"
	"github.com/DigiGoon/bugrd/internal/event"
	"github.com/DigiGoon/bugrd/internal/logging"
	"github.com/DigiGoon/bugrd/internal/service"
	"github.com/DigiGoon/bugrd/internal/spool"
)

// terminalListener records callbacks and signals the terminal one.
type terminalListener struct {
	mu       sync.Mutex
	progress []float64
	errs     []bugreport.ErrorCode
	finished int
	terminal chan struct{}
}

func newTerminalListener() *terminalListener {
	return &terminalListener{terminal: make(chan struct{})}
}

func (l *terminalListener) OnProgress(p float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = append(l.progress, p)
}

func (l *terminalListener) OnError(code bugreport.ErrorCode) {
	l.mu.Lock()
	l.errs = append(l.errs, code)
	l.mu.Unlock()
	close(l.terminal)
}

func (l *terminalListener) OnFinished() {
	l.mu.Lock()
	l.finished++
	l.mu.Unlock()
	close(l.terminal)
}

func (l *terminalListener) wait(t *testing.T) {
	t.Helper()
	select {
	case <-l.terminal:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for terminal callback")
	}
}

// TestFullCaptureLifecycle runs an approved capture end to end and checks
// that the event bus observed every lifecycle stage in a sensible order.
func TestFullCaptureLifecycle(t *testing.T) {
	bus := event.NewBus()
	var mu sync.Mutex
	var order []string
	bus.SubscribeAll(func(ev event.Event) {
		mu.Lock()
		order = append(order, ev.EventType())
		mu.Unlock()
	})

	sp, err := spool.New(filepath.Join(t.TempDir(), "spool"), 0, logging.NopLogger())
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}

	svc := service.New(service.Config{
		Spool: sp,
		NewCollector: func() collector.Collector {
			return &collector.ScriptedCollector{
				Steps:         []float64{20, 60, 95},
				StepDelay:     5 * time.Millisecond,
				ReportContent: []byte("diagnostic bundle"),
			}
		},
		Prompter:       consent.Static{Approved: true},
		ConsentTimeout: time.Minute,
		Bus:            bus,
		Logger:         logging.NopLogger(),
	})

	var report bytes.Buffer
	listener := newTerminalListener()
	req := &bugreport.Request{
		Mode:       bugreport.ModeFull,
		ReportSink: &report,
		Requester:  "com.example.shell",
	}

	if _, err := svc.StartCapture(context.Background(), req, listener, nil); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	listener.wait(t)

	listener.mu.Lock()
	progress, finished := listener.progress, listener.finished
	listener.mu.Unlock()
	if finished != 1 {
		t.Fatalf("finished = %d, want 1", finished)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Errorf("progress regressed: %v", progress)
		}
	}
	if report.String() != "diagnostic bundle" {
		t.Errorf("report sink = %q, want diagnostic bundle", report.String())
	}

	// Admission must be observed before the terminal event.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return indexOf(order, "session.terminal") >= 0
	})
	mu.Lock()
	defer mu.Unlock()
	admitted := indexOf(order, "session.admitted")
	terminal := indexOf(order, "session.terminal")
	if admitted < 0 || terminal < 0 || admitted > terminal {
		t.Errorf("event order = %v, want admitted before terminal", order)
	}
}

// TestTimedOutCaptureIsManuallyRetrievable times a capture out and then
// exports its artifact through the spool, the manual-retrieval path.
func TestTimedOutCaptureIsManuallyRetrievable(t *testing.T) {
	sp, err := spool.New(filepath.Join(t.TempDir(), "spool"), 0, logging.NopLogger())
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}

	svc := service.New(service.Config{
		Spool: sp,
		NewCollector: func() collector.Collector {
			// Stalls long enough for the consent window to expire with
			// the staged entry still present.
			return &collector.ScriptedCollector{
				Steps:     []float64{10},
				StepDelay: time.Hour,
			}
		},
		Prompter: consent.Func(func(ctx context.Context, r consent.PromptRequest) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		}),
		ConsentTimeout: 50 * time.Millisecond,
		Logger:         logging.NopLogger(),
	})

	var report bytes.Buffer
	listener := newTerminalListener()
	req := &bugreport.Request{
		Mode:       bugreport.ModeTelephony,
		ReportSink: &report,
		Requester:  "com.example.dpm",
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := svc.StartCapture(ctx, req, listener, nil); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	listener.wait(t)

	listener.mu.Lock()
	errs := listener.errs
	listener.mu.Unlock()
	if len(errs) != 1 || errs[0] != bugreport.CodeUserConsentTimedOut {
		t.Fatalf("errs = %v, want [USER_CONSENT_TIMED_OUT]", errs)
	}
	if report.Len() != 0 {
		t.Errorf("report sink has %d bytes, want 0", report.Len())
	}

	entries, err := sp.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("retained entries = %d, want 1", len(entries))
	}

	var exported bytes.Buffer
	if err := sp.Export(entries[0].SessionID, &exported); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := sp.Remove(entries[0].SessionID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := sp.List(); err != nil {
		t.Fatalf("List after remove: %v", err)
	}
}

// TestConsecutiveCaptures verifies that the single slot frees correctly
// between captures of differing outcomes.
func TestConsecutiveCaptures(t *testing.T) {
	sp, err := spool.New(filepath.Join(t.TempDir(), "spool"), 0, logging.NopLogger())
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}

	outcomes := []struct {
		name     string
		prompter consent.Prompter
		wantErr  bugreport.ErrorCode
		wantOK   bool
	}{
		{"denied", consent.Static{Approved: false}, bugreport.CodeUserDeniedConsent, false},
		{"approved", consent.Static{Approved: true}, 0, true},
	}

	for _, tc := range outcomes {
		t.Run(tc.name, func(t *testing.T) {
			svc := service.New(service.Config{
				Spool: sp,
				NewCollector: func() collector.Collector {
					return &collector.ScriptedCollector{
						Steps:         []float64{50},
						StepDelay:     10 * time.Millisecond,
						ReportContent: []byte("bundle"),
					}
				},
				Prompter:       tc.prompter,
				ConsentTimeout: time.Minute,
				Logger:         logging.NopLogger(),
			})

			var report bytes.Buffer
			listener := newTerminalListener()
			req := &bugreport.Request{
				Mode:       bugreport.ModeFull,
				ReportSink: &report,
				Requester:  "com.example.shell",
			}
			if _, err := svc.StartCapture(context.Background(), req, listener, nil); err != nil {
				t.Fatalf("StartCapture: %v", err)
			}
			listener.wait(t)

			listener.mu.Lock()
			defer listener.mu.Unlock()
			if tc.wantOK {
				if listener.finished != 1 {
					t.Errorf("finished = %d, want 1", listener.finished)
				}
			} else {
				if len(listener.errs) != 1 || listener.errs[0] != tc.wantErr {
					t.Errorf("errs = %v, want [%v]", listener.errs, tc.wantErr)
				}
			}
		})
	}
}

// TestInvalidRequestsNeverOccupySlot exercises the admission error paths.
func TestInvalidRequestsNeverOccupySlot(t *testing.T) {
	sp, err := spool.New(filepath.Join(t.TempDir(), "spool"), 0, logging.NopLogger())
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}
	svc := service.New(service.Config{
		Spool:          sp,
		NewCollector:   func() collector.Collector { return &collector.ScriptedCollector{} },
		Prompter:       consent.Static{Approved: true},
		ConsentTimeout: time.Minute,
		Logger:         logging.NopLogger(),
	})

	tests := []struct {
		name string
		req  *bugreport.Request
	}{
		{"missing sink", &bugreport.Request{Mode: bugreport.ModeFull, Requester: "x"}},
		{"missing requester", &bugreport.Request{Mode: bugreport.ModeFull, ReportSink: &bytes.Buffer{}}},
		{"bad mode", &bugreport.Request{Mode: bugreport.Mode(99), ReportSink: &bytes.Buffer{}, Requester: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StartCapture(context.Background(), tt.req, newTerminalListener(), nil)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("StartCapture = %v, want ErrInvalidInput", err)
			}
			if svc.Active() != nil {
				t.Error("invalid request must not occupy the slot")
			}
		})
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func indexOf(list []string, want string) int {
	for i, s := range list {
		if s == want {
			return i
		}
	}
	return -1
}
