// ABOUTME: Tests for the inline StreamModel: agent lines, result channel and exit paths.
// ABOUTME: Feeds session events directly without running a tea.Program.
package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/mdtview/session"
)

func streamUpdate(t *testing.T, m StreamModel, msg tea.Msg) (StreamModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(StreamModel), cmd
}

func TestStreamModelRun(t *testing.T) {
	m := NewStreamModel(context.Background(), newFakeController(), Options{}, true)
	ch := m.ResultCh()

	m, _ = streamUpdate(t, m, event(session.Submitted{RunID: "run-4"}))
	m, _ = streamUpdate(t, m, event(session.ConnectionChanged{RunID: "run-4", State: session.StateConnected, Text: "Connected"}))

	tr := snapshotWith("coordinator", "ACTIVE", "ehr", "ACTIVE")
	m, _ = streamUpdate(t, m, event(session.AgentsChanged{Snapshot: tr}))
	view := m.View()
	for _, want := range []string{"run run-4", "EHR Agent", "running...", "0/8 complete", "Connected"} {
		assert.Contains(t, view, want)
	}

	m, _ = streamUpdate(t, m, event(session.AgentsChanged{Snapshot: snapshotWith("coordinator", "ACTIVE", "ehr", "DONE")}))
	assert.Contains(t, m.View(), "✓ EHR Agent", "completed agent should show a check mark")

	m, _ = streamUpdate(t, m, event(session.Notice{Level: session.NoticeWarn, Text: "Stream ended early"}))
	assert.Contains(t, m.View(), "Stream ended early", "notices should be listed")

	r := mustReport(t, `{"patient_id":"P-4"}`)
	m, _ = streamUpdate(t, m, event(session.ReportReady{RunID: "run-4", Report: r, Source: "stream"}))
	m, cmd := streamUpdate(t, m, event(session.Finished{RunID: "run-4", ReportReceived: true}))
	require.NotNil(t, cmd, "Finished should quit")

	select {
	case res := <-ch:
		assert.Equal(t, "run-4", res.RunID)
		assert.Same(t, r, res.Report)
		assert.True(t, res.ReportReceived)
		assert.NoError(t, res.Err)
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}
	assert.Contains(t, m.View(), "1/8 complete")
}

func TestStreamModelSubmitError(t *testing.T) {
	m := NewStreamModel(context.Background(), newFakeController(), Options{}, false)
	ch := m.ResultCh()

	boom := errors.New("upload failed")
	m, cmd := streamUpdate(t, m, SubmitResultMsg{Err: boom})
	require.NotNil(t, cmd, "submit errors should quit")
	res := <-ch
	assert.ErrorIs(t, res.Err, boom)
	assert.Contains(t, m.View(), "FAILED: upload failed")
}

func TestStreamModelCtrlC(t *testing.T) {
	ctrl := newFakeController()
	m := NewStreamModel(context.Background(), ctrl, Options{}, false)
	ch := m.ResultCh()

	_, cmd := streamUpdate(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd, "ctrl+c should quit")
	require.Zero(t, ctrl.closes, "Close must not run inside Update")

	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 1, ctrl.closes)
	res := <-ch
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestStreamModelTickStopsWhenDone(t *testing.T) {
	m := NewStreamModel(context.Background(), newFakeController(), Options{}, false)
	m, cmd := streamUpdate(t, m, TickMsg{})
	assert.NotNil(t, cmd, "tick should continue while running")
	m, _ = streamUpdate(t, m, event(session.Finished{}))
	_, cmd = streamUpdate(t, m, TickMsg{})
	assert.Nil(t, cmd, "tick should stop after finishing")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{100 * time.Millisecond, "0.1s"},
		{2300 * time.Millisecond, "2.3s"},
		{42 * time.Second, "42s"},
		{125 * time.Second, "2m05s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), "formatDuration(%v)", tt.d)
	}
}
