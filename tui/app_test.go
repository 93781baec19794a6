// ABOUTME: Tests for the top-level AppModel that orchestrates all TUI sub-panels.
// ABOUTME: Covers session event routing, focus management, key bindings, prompts and view rendering.
package tui

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/mdtview/client"
	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/session"
	"github.com/2389-research/mdtview/workflow"
)

func testAppModel(ctrl *fakeController, opts Options) AppModel {
	if opts.Renderer == nil {
		opts.Renderer = report.NewTerminalRenderer("notty")
	}
	return NewAppModel(context.Background(), ctrl, opts)
}

func update(t *testing.T, m AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(AppModel), cmd
}

func sized(t *testing.T, m AppModel) AppModel {
	t.Helper()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestNewAppModel(t *testing.T) {
	m := testAppModel(newFakeController(), Options{})

	assert.Equal(t, FocusGraph, m.focus)
	assert.False(t, m.done, "done should be false initially")
	assert.Len(t, m.graph.Snapshot(), len(workflow.Catalog()))
	assert.Zero(t, m.log.Len())
	require.NotNil(t, m.detail.active)
	assert.Equal(t, "Coordinator", m.detail.active.Name, "detail should start on the coordinator")
}

func TestAppModelInit(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"idle", Options{}},
		{"with case", Options{Case: &client.CaseFile{Name: "case.json"}}},
		{"with run id", Options{RunID: "run-9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testAppModel(newFakeController(), tt.opts)
			assert.NotNil(t, m.Init())
		})
	}
}

func TestAppModelWindowSize(t *testing.T) {
	m := sized(t, testAppModel(newFakeController(), Options{}))
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 40, m.height)
}

func TestAppModelAgentsChanged(t *testing.T) {
	m := testAppModel(newFakeController(), Options{})
	snap := snapshotWith("coordinator", "DONE", "EHR_Agent", "ACTIVE")

	m, _ = update(t, m, event(session.AgentsChanged{Snapshot: snap}))

	assert.Equal(t, workflow.StateRunning, m.graph.State(workflow.EHR))
	assert.Equal(t, 1, m.statusBar.completed)
	require.Equal(t, 2, m.log.Len(), "one log line per transition")
	assert.Equal(t, "EHR Agent: running", m.log.Entries()[1].Text)

	// Same snapshot again: nothing new to log.
	m, _ = update(t, m, event(session.AgentsChanged{Snapshot: snap}))
	assert.Equal(t, 2, m.log.Len(), "repeated snapshot should not log")
}

func TestAppModelAgentsChangedRendersDiagram(t *testing.T) {
	out := filepath.Join(t.TempDir(), "workflow.dot")
	m := testAppModel(newFakeController(), Options{
		Diagrams:   diagramRenderer(),
		DiagramOut: out,
	})

	_, cmd := update(t, m, event(session.AgentsChanged{Snapshot: snapshotWith("ehr", "DONE")}))
	require.NotNil(t, cmd, "expected a diagram render command")
	msg, ok := cmd().(DiagramMsg)
	require.True(t, ok, "cmd should return a DiagramMsg")
	require.NoError(t, msg.Err)
	require.NoError(t, msg.Result.Err)
}

func TestAppModelConnectionTextInStatusBar(t *testing.T) {
	m := sized(t, testAppModel(newFakeController(), Options{}))
	m, _ = update(t, m, event(session.ConnectionChanged{
		RunID: "run-1", State: session.StateReconnecting, Text: "Reconnecting in 2s... (2/5)",
	}))

	view := m.View()
	assert.Contains(t, view, "Reconnecting in 2s... (2/5)")
	assert.Contains(t, view, "Run: run-1")
}

func TestAppModelReportReadyFocusesReport(t *testing.T) {
	m := sized(t, testAppModel(newFakeController(), Options{}))
	r := mustReport(t, `{"patient_id":"P1","summary":"ok"}`)

	m, _ = update(t, m, event(session.ReportReady{RunID: "run-1", Report: r, Source: "stream"}))

	assert.Equal(t, FocusReport, m.focus)
	assert.Same(t, r, m.report.Report(), "report panel should hold the delivered report")
	assert.Contains(t, m.View(), "REPORT")

	m, _ = update(t, m, keyRunes("v"))
	require.True(t, m.report.ShowingJSON(), "v should switch to the JSON view")
	assert.Contains(t, m.report.Content(), `"patient_id": "P1"`)
}

func TestAppModelReportFailedKeepsRaw(t *testing.T) {
	m := testAppModel(newFakeController(), Options{})
	m, _ = update(t, m, event(session.ReportFailed{Err: errors.New("bad json"), Raw: "{oops"}))

	assert.Contains(t, m.report.Content(), "{oops")
}

func TestAppModelKeyBindings(t *testing.T) {
	ctrl := newFakeController()
	m := testAppModel(ctrl, Options{})

	m, fetch := update(t, m, keyRunes("f"))
	m, reconnect := update(t, m, keyRunes("r"))
	_, quit := update(t, m, keyRunes("q"))
	require.NotNil(t, fetch)
	require.NotNil(t, reconnect)
	require.NotNil(t, quit)
	// Controller calls send events back into the program, so Update only schedules them.
	require.Zero(t, ctrl.fetches, "FetchReport called from Update")
	require.Zero(t, ctrl.reconnects, "Reconnect called from Update")
	require.Zero(t, ctrl.closes, "Close called from Update")

	fetch()
	reconnect()
	assert.Equal(t, 1, ctrl.fetches)
	assert.Equal(t, 1, ctrl.reconnects)
	assert.IsType(t, tea.QuitMsg{}, quit())
	assert.Equal(t, 1, ctrl.closes)
}

func TestAppModelFocusCycle(t *testing.T) {
	m := testAppModel(newFakeController(), Options{})
	tab := tea.KeyMsg{Type: tea.KeyTab}

	m, _ = update(t, m, tab)
	require.Equal(t, FocusLog, m.focus)
	require.True(t, m.log.IsFocused())
	// No report yet, so the cycle skips it.
	m, _ = update(t, m, tab)
	assert.Equal(t, FocusGraph, m.focus)
}

func TestAppModelCursorMovesDetail(t *testing.T) {
	m := testAppModel(newFakeController(), Options{})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})

	require.NotNil(t, m.detail.active)
	assert.Equal(t, "EHR Agent", m.detail.active.Name)
}

func TestAppModelRunIDPrompt(t *testing.T) {
	ctrl := newFakeController()
	m := testAppModel(ctrl, Options{})

	m, _ = update(t, m, keyRunes("a"))
	require.True(t, m.prompt.IsActive(), "a should open the run id prompt")
	require.Equal(t, PromptRunID, m.prompt.Kind())
	m, _ = update(t, m, keyRunes("run-7"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.prompt.IsActive(), "prompt should close on enter")
	require.NotNil(t, cmd, "enter should return a connect command")
	cmd()
	assert.Equal(t, []string{"run-7"}, ctrl.connected)
}

func TestAppModelCaseFilePromptMissingFile(t *testing.T) {
	ctrl := newFakeController()
	m := testAppModel(ctrl, Options{})

	m, _ = update(t, m, keyRunes("o"))
	m.prompt.SetValue(filepath.Join(t.TempDir(), "missing.json"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd, "enter should return a submit command")

	res, ok := cmd().(SubmitResultMsg)
	require.True(t, ok)
	require.Error(t, res.Err, "expected a read error")
	assert.False(t, res.Reported, "read errors are not reported by the controller")
	assert.Empty(t, ctrl.submitted, "nothing should be uploaded when the file cannot be read")

	m, _ = update(t, m, res)
	require.Equal(t, 1, m.log.Len())
	assert.Equal(t, LevelError, m.log.Entries()[0].Level)
}

func TestAppModelSubmitBlockedWhileProcessing(t *testing.T) {
	m := testAppModel(newFakeController(), Options{})
	m, _ = update(t, m, event(session.ControlsChanged{Controls: session.Controls{SubmitLabel: session.LabelProcessing}}))

	m, _ = update(t, m, keyRunes("o"))
	assert.False(t, m.prompt.IsActive(), "prompt should not open while processing")
	assert.Equal(t, session.LabelProcessing, m.statusBar.submitLabel)
}

func TestAppModelSave(t *testing.T) {
	var saved *report.Report
	m := testAppModel(newFakeController(), Options{Save: func(r *report.Report) ([]string, error) {
		saved = r
		return []string{"report.md"}, nil
	}})

	m, cmd := update(t, m, keyRunes("w"))
	assert.Nil(t, cmd, "w without a report should not save")

	r := mustReport(t, `{"patient_id":"P1"}`)
	m, _ = update(t, m, event(session.ReportReady{Report: r, Source: "fetch"}))
	m, cmd = update(t, m, keyRunes("w"))
	require.NotNil(t, cmd, "w should return a save command")
	m, _ = update(t, m, cmd())
	assert.Same(t, r, saved, "save should receive the current report")
	last := m.log.Entries()[m.log.Len()-1]
	assert.Equal(t, "Saved report.md", last.Text)
}

func TestAppModelFinished(t *testing.T) {
	m := testAppModel(newFakeController(), Options{})
	m, cmd := update(t, m, event(session.Finished{RunID: "run-1", ReportReceived: true}))
	assert.True(t, m.done)
	assert.Nil(t, cmd, "without QuitOnFinish the app keeps running")

	m = testAppModel(newFakeController(), Options{QuitOnFinish: true})
	_, cmd = update(t, m, event(session.Finished{RunID: "run-1"}))
	assert.NotNil(t, cmd, "QuitOnFinish should quit")
}

func TestAppModelViewTooSmall(t *testing.T) {
	m := testAppModel(newFakeController(), Options{})
	assert.Equal(t, "Initializing...", m.View())
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 30, Height: 8})
	assert.Contains(t, m.View(), "Terminal too small")
}

func TestAppModelViewLayout(t *testing.T) {
	m := sized(t, testAppModel(newFakeController(), Options{}))
	m, _ = update(t, m, event(session.Notice{Level: session.NoticeInfo, Text: "Simulation finished."}))

	view := m.View()
	for _, want := range []string{"MDT WORKFLOW", "AGENT DETAIL", "SESSION LOG", "Simulation finished.", "Summary Agent"} {
		assert.Contains(t, view, want)
	}
}

func TestAppModelTick(t *testing.T) {
	m := testAppModel(newFakeController(), Options{})
	m, cmd := update(t, m, TickMsg{Time: time.Now()})
	assert.NotNil(t, cmd, "tick should schedule the next tick")
	assert.Equal(t, 1, m.graph.spinnerIndex)
}
