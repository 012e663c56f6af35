package consent

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel(t *testing.T) promptModel {
	t.Helper()
	return promptModel{
		req: PromptRequest{
			SessionID: "sess-1",
			Requester: "com.example.shell",
			Mode:      "full",
			Deadline:  time.Now().Add(30 * time.Second),
		},
		timer: timer.NewWithInterval(30*time.Second, time.Second),
	}
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPromptModel_ApproveKey(t *testing.T) {
	m := newTestModel(t)

	updated, cmd := m.Update(keyMsg("y"))
	out := updated.(promptModel)

	if !out.decided || !out.approved {
		t.Errorf("after 'y': decided=%v approved=%v, want true/true", out.decided, out.approved)
	}
	if cmd == nil {
		t.Error("expected quit command after decision")
	}
}

func TestPromptModel_DenyKeys(t *testing.T) {
	for _, key := range []string{"n", "q"} {
		m := newTestModel(t)
		updated, _ := m.Update(keyMsg(key))
		out := updated.(promptModel)

		if !out.decided || out.approved {
			t.Errorf("after %q: decided=%v approved=%v, want true/false", key, out.decided, out.approved)
		}
	}
}

func TestPromptModel_IgnoresOtherKeys(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(keyMsg("x"))
	out := updated.(promptModel)

	if out.decided {
		t.Error("unrelated key should not decide")
	}
}

func TestPromptModel_TimeoutQuitsUndecided(t *testing.T) {
	m := newTestModel(t)
	updated, cmd := m.Update(timer.TimeoutMsg{})
	out := updated.(promptModel)

	if out.decided {
		t.Error("timeout should leave the model undecided")
	}
	if cmd == nil {
		t.Error("expected quit command on timeout")
	}
}

func TestPromptModel_ViewMentionsRequester(t *testing.T) {
	m := newTestModel(t)
	view := m.View()

	if !strings.Contains(view, "com.example.shell") {
		t.Error("view should mention the requesting principal")
	}
	if !strings.Contains(view, "full") {
		t.Error("view should mention the capture mode")
	}
}
