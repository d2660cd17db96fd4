package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestSpinnerModelProgressAndDone(t *testing.T) {
	m := newSpinnerModel("Warming pages", NewStyles())

	next, _ := m.Update(spinnerProgressMsg{done: 2, total: 5})
	m = next.(spinnerModel)
	assert.Contains(t, m.View(), "Warming pages")
	assert.Contains(t, m.View(), "(2/5)")

	next, cmd := m.Update(spinnerDoneMsg{err: errors.New("boom")})
	m = next.(spinnerModel)
	assert.True(t, m.finished)
	assert.Contains(t, m.View(), "boom")
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSpinnerModelQuit(t *testing.T) {
	m := newSpinnerModel("Working", NewStyles())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(spinnerModel)
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
