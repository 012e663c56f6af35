package consent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DigiGoon/bugrd/internal/errors"
)

func TestGate_ApproveOnce(t *testing.T) {
	gate := NewGate()

	if got := gate.Decision(); got != DecisionPending {
		t.Fatalf("initial decision = %v, want pending", got)
	}

	if err := gate.Approve(); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got := gate.Decision(); got != DecisionApproved {
		t.Errorf("decision = %v, want approved", got)
	}

	// Second decision must be rejected.
	err := gate.Deny()
	if !errors.Is(err, errors.ErrDecided) {
		t.Errorf("Deny after Approve = %v, want ErrDecided", err)
	}
	if got := gate.Decision(); got != DecisionApproved {
		t.Errorf("decision after conflict = %v, want approved", got)
	}
}

func TestGate_DenyCannotBecomeApproved(t *testing.T) {
	gate := NewGate()

	if err := gate.Deny(); err != nil {
		t.Fatalf("Deny: %v", err)
	}
	if err := gate.Approve(); !errors.Is(err, errors.ErrDecided) {
		t.Errorf("Approve after Deny = %v, want ErrDecided", err)
	}
	if got := gate.Decision(); got != DecisionDenied {
		t.Errorf("decision = %v, want denied", got)
	}
}

func TestGate_Expire(t *testing.T) {
	gate := NewGate()
	deadline := time.Now()
	gate.Request(deadline)

	// Before the deadline, no expiry.
	if gate.Expire(deadline.Add(-time.Second)) {
		t.Error("Expire before deadline should return false")
	}
	if got := gate.Decision(); got != DecisionPending {
		t.Errorf("decision = %v, want pending", got)
	}

	// At the deadline, the gate times out.
	if !gate.Expire(deadline) {
		t.Error("Expire at deadline should return true")
	}
	if got := gate.Decision(); got != DecisionTimedOut {
		t.Errorf("decision = %v, want timed_out", got)
	}

	// Expiry is recorded once.
	if gate.Expire(deadline.Add(time.Minute)) {
		t.Error("second Expire should return false")
	}

	// A timed-out gate cannot be approved.
	if err := gate.Approve(); !errors.Is(err, errors.ErrDecided) {
		t.Errorf("Approve after timeout = %v, want ErrDecided", err)
	}
}

func TestGate_DecisionBeatsExpiry(t *testing.T) {
	gate := NewGate()
	deadline := time.Now().Add(-time.Second) // already past
	gate.Request(deadline)

	// The decision lands before the timer task runs Expire; it wins.
	if err := gate.Approve(); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if gate.Expire(time.Now()) {
		t.Error("Expire after a recorded decision should return false")
	}
	if got := gate.Decision(); got != DecisionApproved {
		t.Errorf("decision = %v, want approved", got)
	}
}

func TestGate_UnarmedNeverExpires(t *testing.T) {
	gate := NewGate()
	if gate.Expire(time.Now().Add(time.Hour)) {
		t.Error("unarmed gate should not expire")
	}
}

func TestGate_RearmIsNoOp(t *testing.T) {
	gate := NewGate()
	first := time.Now().Add(time.Minute)
	gate.Request(first)
	gate.Request(first.Add(time.Hour)) // must not extend

	deadline, armed := gate.Deadline()
	if !armed {
		t.Fatal("gate should be armed")
	}
	if !deadline.Equal(first) {
		t.Errorf("deadline = %v, want %v", deadline, first)
	}
}

func TestGate_ConcurrentDecisions(t *testing.T) {
	gate := NewGate()

	var wg sync.WaitGroup
	var okCount int
	var mu sync.Mutex

	for i := 0; i < 10; i++ {
		wg.Add(1)
		approve := i%2 == 0
		go func() {
			defer wg.Done()
			var err error
			if approve {
				err = gate.Approve()
			} else {
				err = gate.Deny()
			}
			if err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if okCount != 1 {
		t.Errorf("%d decisions succeeded, want exactly 1", okCount)
	}
	if got := gate.Decision(); !got.Final() {
		t.Errorf("decision = %v, want a final decision", got)
	}
}

func TestStaticPrompter(t *testing.T) {
	approved, err := Static{Approved: true}.Prompt(context.Background(), PromptRequest{})
	if err != nil || !approved {
		t.Errorf("Static{true}.Prompt = (%v, %v), want (true, nil)", approved, err)
	}

	approved, err = Static{}.Prompt(context.Background(), PromptRequest{})
	if err != nil || approved {
		t.Errorf("Static{false}.Prompt = (%v, %v), want (false, nil)", approved, err)
	}
}

func TestFuncPrompter(t *testing.T) {
	called := false
	p := Func(func(ctx context.Context, req PromptRequest) (bool, error) {
		called = true
		return req.Requester == "trusted", nil
	})

	approved, err := p.Prompt(context.Background(), PromptRequest{Requester: "trusted"})
	if err != nil || !approved || !called {
		t.Errorf("Func prompt = (%v, %v, called=%v), want (true, nil, true)", approved, err, called)
	}
}
