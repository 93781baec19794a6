// ABOUTME: Bubble Tea message types used in the TUI message loop.
// ABOUTME: Each type wraps session events or command results for the tea.Msg interface.
package tui

import (
	"time"

	"github.com/2389-research/mdtview/diagram"
	"github.com/2389-research/mdtview/session"
)

// SessionEventMsg wraps a session.Event for the Bubble Tea message loop.
type SessionEventMsg struct {
	Event session.Event
	Time  time.Time
}

// SubmitResultMsg reports the outcome of an upload started from the TUI.
type SubmitResultMsg struct {
	Name  string
	RunID string
	Err   error
	// Reported is set when the controller already surfaced Err as a Notice.
	Reported bool
}

// SavedMsg reports files written for the current report.
type SavedMsg struct {
	Paths []string
	Err   error
}

// DiagramMsg carries a finished diagram render and where it was written.
type DiagramMsg struct {
	Result diagram.Result
	Path   string
	Err    error
}

// TickMsg is sent periodically to update timers and spinners.
type TickMsg struct {
	Time time.Time
}
