// ABOUTME: Implements a single-line status bar for the bottom of the TUI showing run progress.
// ABOUTME: Displays run id, connection status text, elapsed time, agent completion count and key hints.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/mdtview/session"
)

// StatusBarModel displays run status in a single line.
type StatusBarModel struct {
	runID       string
	startTime   time.Time
	stopTime    time.Time
	totalAgents int
	completed   int
	connection  string
	state       session.State
	submitLabel string
	width       int
}

// NewStatusBarModel creates a StatusBarModel for totalAgents agents.
func NewStatusBarModel(totalAgents int) StatusBarModel {
	return StatusBarModel{
		totalAgents: totalAgents,
		connection:  session.StateIdle.String(),
		submitLabel: session.LabelSubmit,
	}
}

// Start records the run start time.
func (m *StatusBarModel) Start(runID string) {
	m.runID = runID
	m.startTime = time.Now()
	m.stopTime = time.Time{}
}

// Stop freezes the elapsed time.
func (m *StatusBarModel) Stop() {
	if !m.startTime.IsZero() && m.stopTime.IsZero() {
		m.stopTime = time.Now()
	}
}

// SetCompleted updates the completed agent count.
func (m *StatusBarModel) SetCompleted(n int) {
	m.completed = n
}

// SetConnection sets the connection state and its display text.
func (m *StatusBarModel) SetConnection(state session.State, text string) {
	m.state = state
	if text == "" {
		text = state.String()
	}
	m.connection = text
}

// SetSubmitLabel sets the submit affordance label ("Run Simulation" / "Processing...").
func (m *StatusBarModel) SetSubmitLabel(label string) {
	m.submitLabel = label
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// Elapsed returns the time since Start() was called, or zero if not started.
func (m StatusBarModel) Elapsed() time.Duration {
	if m.startTime.IsZero() {
		return 0
	}
	if !m.stopTime.IsZero() {
		return m.stopTime.Sub(m.startTime)
	}
	return time.Since(m.startTime)
}

// formatElapsed formats a duration as a human-readable string.
// Durations under a minute show as seconds (e.g. "12s").
// Durations of a minute or more show as minutes and seconds (e.g. "2m30s").
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) - minutes*60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// connectionStyle colors the connection text by state.
func connectionStyle(s session.State) lipgloss.Style {
	switch s {
	case session.StateConnected:
		return CompleteStyle
	case session.StateConnecting, session.StateReconnecting:
		return RunningStyle
	case session.StateFailed:
		return ErrorStyle
	default:
		return ValueStyle
	}
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	run := m.runID
	if run == "" {
		run = "-"
	}

	content := fmt.Sprintf("Run: %s | %s | Elapsed: %s | %d/%d agents | [%s]",
		run,
		connectionStyle(m.state).Inline(true).Render(m.connection),
		formatElapsed(m.Elapsed()),
		m.completed, m.totalAgents,
		m.submitLabel)

	style := StatusBarStyle.Width(m.width)

	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, style.Render(content))
}
