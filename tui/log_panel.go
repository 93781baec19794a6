// ABOUTME: Implements a scrollable session log panel using the bubbles viewport component.
// ABOUTME: Displays timestamped, level-colored lines derived from session events.
package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// LogLevel colors a log line.
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelWarn
	LevelError
	LevelSuccess
)

// LogEntry is one line in the log panel.
type LogEntry struct {
	Time  time.Time
	Level LogLevel
	Text  string
}

// LogPanelModel is a scrollable log of session activity.
type LogPanelModel struct {
	entries  []LogEntry
	max      int
	viewport viewport.Model
	focused  bool
	width    int
	height   int
}

// NewLogPanelModel creates a new log panel with a maximum number of entries.
// If maxEntries is <= 0, it defaults to 200.
func NewLogPanelModel(maxEntries int) LogPanelModel {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	vp := viewport.New(80, 10)
	return LogPanelModel{
		entries:  make([]LogEntry, 0, maxEntries),
		max:      maxEntries,
		viewport: vp,
	}
}

// Append adds an entry, evicting the oldest entry if at capacity.
func (m *LogPanelModel) Append(e LogEntry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if len(m.entries) >= m.max {
		m.entries = append([]LogEntry(nil), m.entries[1:]...)
	}
	m.entries = append(m.entries, e)
	m.syncViewport()
}

// Len returns the number of entries in the log.
func (m LogPanelModel) Len() int {
	return len(m.entries)
}

// Entries returns a copy of the log entries.
func (m LogPanelModel) Entries() []LogEntry {
	return append([]LogEntry(nil), m.entries...)
}

// SetFocused sets whether this panel accepts keyboard input.
func (m *LogPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// IsFocused returns whether the panel is focused.
func (m LogPanelModel) IsFocused() bool {
	return m.focused
}

// SetSize sets the available dimensions and updates the viewport.
func (m *LogPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	// Reserve space for the border (2 lines top/bottom) and title (1 line)
	vpWidth := w - 2
	vpHeight := h - 3
	if vpWidth < 1 {
		vpWidth = 1
	}
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.syncViewport()
}

// Update forwards scroll keys to the viewport when focused.
func (m LogPanelModel) Update(msg tea.Msg) LogPanelModel {
	if !m.focused {
		return m
	}
	m.viewport, _ = m.viewport.Update(msg)
	return m
}

// View renders the log panel.
func (m LogPanelModel) View() string {
	title := "SESSION LOG"
	style := BorderStyle
	if m.focused {
		title = "SESSION LOG (focused)"
		style = FocusedBorderStyle
	}

	var content string
	if len(m.entries) == 0 {
		content = "No events yet"
	} else {
		content = m.viewport.View()
	}

	rendered := TitleStyle.Render(title) + "\n" + content

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(rendered)
}

// syncViewport rebuilds the viewport content from entries and scrolls to the bottom.
func (m *LogPanelModel) syncViewport() {
	if len(m.entries) == 0 {
		m.viewport.SetContent("")
		return
	}
	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		lines = append(lines, formatEntry(e))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// formatEntry formats a single log entry as a line.
func formatEntry(e LogEntry) string {
	ts := LogTimestampStyle.Render(e.Time.Format("15:04:05"))
	return ts + " " + StyleForLevel(e.Level).Render(e.Text)
}
