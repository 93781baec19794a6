// ABOUTME: Events the controller reports to its observer, plus the Controls affordance state.
// ABOUTME: The TUI forwards these as Bubble Tea messages; plain mode prints them as lines.
package session

import (
	"fmt"
	"time"

	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/workflow"
)

// Event is anything delivered to an Observer.
type Event interface {
	sessionEvent()
}

// Observer receives events in order. It must not call back into the Controller.
type Observer func(Event)

// Submitted is sent when the backend accepted a case file.
type Submitted struct {
	RunID string
}

// ConnectionChanged is sent on every connection state transition.
type ConnectionChanged struct {
	RunID   string
	State   State
	Text    string
	Attempt int
	Max     int
	Delay   time.Duration
	Err     error
}

// AgentsChanged is sent only when an agent actually changed state.
type AgentsChanged struct {
	Snapshot workflow.Snapshot
}

// ChunkProgress reports chunked report reassembly.
type ChunkProgress struct {
	Received int
	Total    int
}

// Text returns the progress line shown while chunks arrive.
func (p ChunkProgress) Text() string {
	return fmt.Sprintf("Receiving report data (%d/%d chunks)...", p.Received, p.Total)
}

// ReportReady carries a displayable report.
type ReportReady struct {
	RunID  string
	Report *report.Report
	Source string // stream, chunks, fetch or synthetic
}

// ReportFailed means a report arrived but could not be used. Raw holds the
// payload when it was not valid JSON.
type ReportFailed struct {
	Err error
	Raw string
}

// NoticeLevel classifies a Notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarn
	NoticeError
)

// Notice is a human-readable status line.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// ControlsChanged is sent when the user affordances change.
type ControlsChanged struct {
	Controls Controls
}

// Finished is sent once per run when nothing else will happen without user action.
type Finished struct {
	RunID          string
	ReportReceived bool
}

func (Submitted) sessionEvent() {}
func (ConnectionChanged) sessionEvent() {}
func (AgentsChanged) sessionEvent() {}
func (ChunkProgress) sessionEvent() {}
func (ReportReady) sessionEvent() {}
func (ReportFailed) sessionEvent() {}
func (Notice) sessionEvent() {}
func (ControlsChanged) sessionEvent() {}
func (Finished) sessionEvent() {}

// Submit button labels.
const (
	LabelSubmit     = "Run Simulation"
	LabelProcessing = "Processing..."
)

// Controls is the state of the user affordances.
type Controls struct {
	SubmitEnabled    bool
	SubmitLabel      string
	FetchEnabled     bool
	ReconnectEnabled bool
}

func idleControls() Controls {
	return Controls{SubmitEnabled: true, SubmitLabel: LabelSubmit}
}
