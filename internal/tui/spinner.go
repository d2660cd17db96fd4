package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCanceled is returned when the user interrupts a spinner.
var ErrCanceled = errors.New("canceled")

// ProgressFunc reports that done of total units have finished.
type ProgressFunc func(done, total int)

type spinnerProgressMsg struct{ done, total int }

type spinnerDoneMsg struct{ err error }

// spinnerModel is the bubbletea model for a spinner.
type spinnerModel struct {
	spinner     spinner.Model
	message     string
	done, total int
	finished    bool
	err         error
	styles      *Styles
	quitting    bool
}

func newSpinnerModel(message string, styles *Styles) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.theme.Primary)
	return spinnerModel{spinner: s, message: message, styles: styles}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case spinnerProgressMsg:
		m.done, m.total = msg.done, msg.total
	case spinnerDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.quitting {
		return ""
	}
	progress := ""
	if m.total > 0 {
		progress = m.styles.Muted.Render(fmt.Sprintf(" (%d/%d)", m.done, m.total))
	}
	if m.finished {
		if m.err != nil {
			return m.styles.Error.Render("✗ "+m.message+": "+m.err.Error()) + progress + "\n"
		}
		return m.styles.Success.Render("✓ "+m.message) + progress + "\n"
	}
	return fmt.Sprintf("%s %s%s\n", m.spinner.View(), m.message, progress)
}

// Spinner shows progress on stderr while a task runs.
type Spinner struct {
	message string
	styles  *Styles
	out     io.Writer
}

// NewSpinner creates a spinner with a message.
func NewSpinner(message string, styles *Styles, out io.Writer) *Spinner {
	if styles == nil {
		styles = NewStyles()
	}
	return &Spinner{message: message, styles: styles, out: out}
}

// Run executes fn while the spinner animates. Interrupting the spinner
// cancels the context passed to fn and returns ErrCanceled.
func (s *Spinner) Run(ctx context.Context, fn func(context.Context, ProgressFunc) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newSpinnerModel(s.message, s.styles), tea.WithContext(ctx), tea.WithOutput(s.out))

	result := make(chan error, 1)
	go func() {
		err := fn(ctx, func(done, total int) { p.Send(spinnerProgressMsg{done: done, total: total}) })
		result <- err
		p.Send(spinnerDoneMsg{err: err})
	}()

	final, err := p.Run()
	cancel()
	fnErr := <-result
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(spinnerModel); ok && m.quitting {
		return ErrCanceled
	}
	return fnErr
}
