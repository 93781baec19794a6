// ABOUTME: Defines lipgloss style constants for the TUI layout panels, agent state colors, and log formatting.
// ABOUTME: Provides StyleForState and StyleForLevel to map workflow states and log levels to display styles.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/mdtview/workflow"
)

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))
	FocusedBorderStyle = BorderStyle.
				BorderForeground(lipgloss.Color("170"))

	// Title styling
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Agent state colors
	InactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	RunningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	CompleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	ErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// Log colors
	LogTimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	LogInfoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	LogWarnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	LogErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	LogSuccessStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	EdgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	CursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	// Detail panel labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(10)
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	// Input prompt
	PromptStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// SpinnerFrames contains the Braille-dot animation frames for running agents.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StyleForState returns the lipgloss style for an agent state.
func StyleForState(s workflow.AgentState) lipgloss.Style {
	switch s {
	case workflow.StateRunning:
		return RunningStyle
	case workflow.StateComplete:
		return CompleteStyle
	case workflow.StateError:
		return ErrorStyle
	default:
		return InactiveStyle
	}
}

// StyleForLevel returns the log style for a log level.
func StyleForLevel(l LogLevel) lipgloss.Style {
	switch l {
	case LevelWarn:
		return LogWarnStyle
	case LevelError:
		return LogErrorStyle
	case LevelSuccess:
		return LogSuccessStyle
	default:
		return LogInfoStyle
	}
}
