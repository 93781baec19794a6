// ABOUTME: Shared test fixtures for the TUI package: a recording fake controller and snapshot builders.
// ABOUTME: Keeps panel and model tests independent of the real session controller and network.
package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/mdtview/client"
	"github.com/2389-research/mdtview/diagram"
	"github.com/2389-research/mdtview/render"
	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/session"
	"github.com/2389-research/mdtview/workflow"
)

type fakeController struct {
	mu         sync.Mutex
	submitted  []client.CaseFile
	connected  []string
	reconnects int
	fetches    int
	closes     int
	submitErr  error
	runID      string
	controls   session.Controls
}

func newFakeController() *fakeController {
	return &fakeController{controls: session.Controls{SubmitEnabled: true, SubmitLabel: session.LabelSubmit}}
}

func (f *fakeController) Submit(_ context.Context, cf client.CaseFile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, cf)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.runID = "run-1"
	return f.runID, nil
}

func (f *fakeController) Connect(runID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, runID)
	f.runID = runID
}

func (f *fakeController) Reconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
}

func (f *fakeController) FetchReport() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
}

func (f *fakeController) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeController) RunID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runID
}

func (f *fakeController) Controls() session.Controls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.controls
}

// snapshotWith returns a snapshot after applying (agent, token) pairs.
func snapshotWith(pairs ...string) workflow.Snapshot {
	tr := workflow.NewTracker()
	for i := 0; i+1 < len(pairs); i += 2 {
		tr.Apply(pairs[i], pairs[i+1], "")
	}
	return tr.Snapshot()
}

func mustReport(t *testing.T, raw string) *report.Report {
	t.Helper()
	r, err := report.Decode([]byte(raw))
	require.NoError(t, err)
	return r
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func event(e session.Event) SessionEventMsg {
	return SessionEventMsg{Event: e}
}

// diagramRenderer renders DOT text without graphviz.
func diagramRenderer() *diagram.Renderer {
	return diagram.NewRenderer(render.RenderDOTSource, render.FormatDOT)
}

// diagramRendererFailing always fails to render.
func diagramRendererFailing() *diagram.Renderer {
	return diagram.NewRenderer(func(context.Context, string, string) ([]byte, error) {
		return nil, errors.New("no graphviz")
	}, render.FormatSVG)
}
