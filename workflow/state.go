// ABOUTME: Defines the AgentState enum for MDT workflow agents and the status-token vocabulary mapping.
// ABOUTME: Provides String/Icon methods used by the diagram and TUI, and ParseStatusToken for wire tokens.
package workflow

import "strings"

// AgentState is the four-state model shown for each agent.
type AgentState int

const (
	StateInactive AgentState = iota // not started or waiting
	StateRunning                    // currently working
	StateComplete                   // finished successfully
	StateError                      // finished with an error
)

// String returns the lowercase name of the state. It doubles as the diagram style class.
func (s AgentState) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Icon returns a bracket-style status marker for terminal display.
func (s AgentState) Icon() string {
	switch s {
	case StateInactive:
		return "[ ]"
	case StateRunning:
		return "[~]"
	case StateComplete:
		return "[*]"
	case StateError:
		return "[!]"
	default:
		return "[?]"
	}
}

// Terminal reports whether the state is complete or error.
func (s AgentState) Terminal() bool {
	return s == StateComplete || s == StateError
}

var statusTokens = map[string]AgentState{
	"active":      StateRunning,
	"running":     StateRunning,
	"start":       StateRunning,
	"started":     StateRunning,
	"processing":  StateRunning,
	"in_progress": StateRunning,
	"working":     StateRunning,

	"done":      StateComplete,
	"complete":  StateComplete,
	"completed": StateComplete,
	"success":   StateComplete,
	"succeeded": StateComplete,
	"finished":  StateComplete,

	"error":   StateError,
	"failed":  StateError,
	"failure": StateError,
	"fail":    StateError,
}

// ParseStatusToken maps a backend status token (ACTIVE, DONE, ERROR, WAITING, ...)
// onto the four-state model. Unrecognised tokens map to StateInactive.
func ParseStatusToken(token string) AgentState {
	t := strings.ToLower(strings.TrimSpace(token))
	t = strings.NewReplacer("-", "_", " ", "_").Replace(t)
	if s, ok := statusTokens[t]; ok {
		return s
	}
	return StateInactive
}
