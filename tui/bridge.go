// ABOUTME: Bridge connecting the session controller to the Bubble Tea message loop.
// ABOUTME: Provides EventBridge for event injection, and tea.Cmd factories for submit, save, diagram render and ticks.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/mdtview/client"
	"github.com/2389-research/mdtview/diagram"
	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/session"
	"github.com/2389-research/mdtview/workflow"
)

// Controller is the part of session.Controller the TUI drives.
type Controller interface {
	Submit(ctx context.Context, f client.CaseFile) (string, error)
	Connect(runID string)
	Reconnect()
	FetchReport()
	Close()
	RunID() string
	Controls() session.Controls
}

var _ Controller = (*session.Controller)(nil)

// EventBridge wraps a tea.Program's Send method for injecting session events
// into the Bubble Tea message loop.
type EventBridge struct {
	send func(msg tea.Msg)
}

// NewEventBridge creates an EventBridge that sends messages via the given function.
// Typically called with program.Send as the argument.
func NewEventBridge(send func(msg tea.Msg)) *EventBridge {
	return &EventBridge{send: send}
}

// HandleEvent has the session.Observer signature.
func (b *EventBridge) HandleEvent(evt session.Event) {
	b.send(SessionEventMsg{Event: evt, Time: time.Now()})
}

// SubmitCmd reads a case file from path and uploads it through ctrl.
func SubmitCmd(ctx context.Context, ctrl Controller, path string) tea.Cmd {
	return func() tea.Msg {
		f, err := client.CaseFileFromPath(path)
		if err != nil {
			return SubmitResultMsg{Name: path, Err: err}
		}
		return SubmitCaseCmd(ctx, ctrl, f)()
	}
}

// SubmitCaseCmd uploads an already loaded case file.
func SubmitCaseCmd(ctx context.Context, ctrl Controller, f client.CaseFile) tea.Cmd {
	return func() tea.Msg {
		runID, err := ctrl.Submit(ctx, f)
		return SubmitResultMsg{
			Name:     f.Name,
			RunID:    runID,
			Err:      err,
			Reported: err != nil && !errors.Is(err, session.ErrBusy),
		}
	}
}

// Controller calls emit session events through the EventBridge, which sends
// into the program. They must run as commands, never inside Update.

// ConnectCmd attaches ctrl to an existing run.
func ConnectCmd(ctrl Controller, runID string) tea.Cmd {
	return func() tea.Msg {
		ctrl.Connect(runID)
		return nil
	}
}

// FetchCmd starts a direct report fetch.
func FetchCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.FetchReport()
		return nil
	}
}

// ReconnectCmd reopens the stream for the current run.
func ReconnectCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.Reconnect()
		return nil
	}
}

// QuitCmd closes ctrl and then quits the program.
func QuitCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.Close()
		return tea.QuitMsg{}
	}
}

// SaveFunc writes a report to disk and returns the paths written.
type SaveFunc func(r *report.Report) ([]string, error)

// SaveCmd runs save for r.
func SaveCmd(save SaveFunc, r *report.Report) tea.Cmd {
	return func() tea.Msg {
		if save == nil {
			return SavedMsg{Err: fmt.Errorf("no output files configured")}
		}
		paths, err := save(r)
		return SavedMsg{Paths: paths, Err: err}
	}
}

// RenderDiagramCmd renders snap and writes the output (or the fallback
// definition when rendering failed) to path.
func RenderDiagramCmd(ctx context.Context, r *diagram.Renderer, snap workflow.Snapshot, path string) tea.Cmd {
	return func() tea.Msg {
		res := <-r.Render(ctx, snap)
		out := res.Output
		if res.Err != nil {
			out = []byte(res.Fallback())
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return DiagramMsg{Result: res, Path: path, Err: err}
		}
		return DiagramMsg{Result: res, Path: path}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
// Used for spinner animation and elapsed time refresh.
func TickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
