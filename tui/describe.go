// ABOUTME: Turns session events into human-readable log lines for the TUI log panel and plain output.
// ABOUTME: Agent transitions are described by diffing consecutive snapshots.
package tui

import (
	"fmt"

	"github.com/2389-research/mdtview/session"
	"github.com/2389-research/mdtview/workflow"
)

// DescribeEvent returns the log line for e. ok is false for events that carry
// no text of their own (AgentsChanged, ControlsChanged).
func DescribeEvent(e session.Event) (LogEntry, bool) {
	switch ev := e.(type) {
	case session.Submitted:
		return LogEntry{Level: LevelInfo, Text: "Simulation started. Run ID: " + ev.RunID}, true
	case session.ConnectionChanged:
		level := LevelInfo
		switch ev.State {
		case session.StateReconnecting:
			level = LevelWarn
		case session.StateFailed:
			level = LevelError
		case session.StateConnected:
			level = LevelSuccess
		}
		text := ev.Text
		if text == "" {
			text = "Connection " + ev.State.String()
		}
		if ev.Err != nil && ev.State != session.StateConnected {
			text += ": " + ev.Err.Error()
		}
		return LogEntry{Level: level, Text: text}, true
	case session.ChunkProgress:
		return LogEntry{Level: LevelInfo, Text: ev.Text()}, true
	case session.ReportReady:
		if ev.Report != nil && ev.Report.Synthetic {
			return LogEntry{Level: LevelWarn, Text: "Showing synthetic report built from agent states."}, true
		}
		return LogEntry{Level: LevelSuccess, Text: fmt.Sprintf("Report received (%s).", ev.Source)}, true
	case session.ReportFailed:
		return LogEntry{Level: LevelError, Text: "Report could not be used: " + ev.Err.Error()}, true
	case session.Notice:
		level := LevelInfo
		switch ev.Level {
		case session.NoticeWarn:
			level = LevelWarn
		case session.NoticeError:
			level = LevelError
		}
		return LogEntry{Level: level, Text: ev.Text}, true
	case session.Finished:
		if ev.ReportReceived {
			return LogEntry{Level: LevelSuccess, Text: "Run finished."}, true
		}
		return LogEntry{Level: LevelWarn, Text: "Run finished without a backend report."}, true
	}
	return LogEntry{}, false
}

// Transition is one agent's state change between two snapshots.
type Transition struct {
	Agent   workflow.Agent
	From    workflow.AgentState
	To      workflow.AgentState
	Message string
}

// Text returns the log line for the transition.
func (t Transition) Text() string {
	s := fmt.Sprintf("%s: %s", t.Agent.DisplayName, t.To)
	if t.Message != "" {
		s += " - " + t.Message
	}
	return s
}

// Level returns the log level for the new state.
func (t Transition) Level() LogLevel {
	switch t.To {
	case workflow.StateComplete:
		return LevelSuccess
	case workflow.StateError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Diff returns the agents whose state differs between prev and next, in catalog order.
func Diff(prev, next workflow.Snapshot) []Transition {
	var out []Transition
	for _, a := range next {
		from := prev.State(a.Agent.Key)
		if from != a.State {
			out = append(out, Transition{Agent: a.Agent, From: from, To: a.State, Message: a.Message})
		}
	}
	return out
}
