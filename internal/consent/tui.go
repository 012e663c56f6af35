package consent

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("63")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	countdownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
)

// Terminal is a Prompter that presents the consent question as a full-screen
// terminal prompt with a countdown. It is the interactive consent UI used by
// the bugrd CLI.
type Terminal struct{}

// Prompt implements Prompter. It blocks until the user presses y/n, the
// countdown reaches the deadline, or ctx is done.
func (Terminal) Prompt(ctx context.Context, req PromptRequest) (bool, error) {
	remaining := time.Until(req.Deadline)
	if remaining <= 0 {
		return false, fmt.Errorf("consent deadline already passed")
	}

	m := promptModel{
		req:   req,
		timer: timer.NewWithInterval(remaining, time.Second),
	}

	p := tea.NewProgram(m, tea.WithContext(ctx))
	out, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("consent prompt failed: %w", err)
	}

	final, ok := out.(promptModel)
	if !ok || !final.decided {
		// Countdown elapsed without a keypress; the session's gate handles
		// the timeout transition.
		return false, fmt.Errorf("consent prompt expired without a decision")
	}
	return final.approved, nil
}

// promptModel is the bubbletea model for the consent prompt.
type promptModel struct {
	req      PromptRequest
	timer    timer.Model
	decided  bool
	approved bool
}

// Init implements tea.Model.
func (m promptModel) Init() tea.Cmd {
	return m.timer.Init()
}

// Update implements tea.Model.
func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			m.decided = true
			m.approved = true
			return m, tea.Quit
		case "n", "N", "q", "esc", "ctrl+c":
			m.decided = true
			m.approved = false
			return m, tea.Quit
		}
		return m, nil

	case timer.TimeoutMsg:
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.timer, cmd = m.timer.Update(msg)
		return m, cmd
	}
}

// View implements tea.Model.
func (m promptModel) View() string {
	title := titleStyle.Render("Share bug report?")

	body := fmt.Sprintf(
		"%s wants to capture a %s bug report.\n\nBug reports may contain personal information,\nincluding account identifiers and recent activity.",
		m.req.Requester, m.req.Mode,
	)

	countdown := countdownStyle.Render(fmt.Sprintf("Expires in %s", m.timer.View()))
	keys := fmt.Sprintf("%s share    %s decline",
		keyStyle.Render("[y]"), keyStyle.Render("[n]"))

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		body,
		"",
		detailStyle.Render(fmt.Sprintf("session %s", m.req.SessionID)),
		countdown,
		"",
		keys,
	)

	return boxStyle.Render(content) + "\n"
}
