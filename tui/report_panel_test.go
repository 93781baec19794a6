// ABOUTME: Tests for the ReportPanelModel: markdown and JSON views, raw fallback and report precedence.
// ABOUTME: Renders with the notty glamour style so output is plain text.
package tui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/mdtview/report"
)

func newTestReportPanel() ReportPanelModel {
	m := NewReportPanelModel(report.NewTerminalRenderer("notty"))
	m.SetSize(100, 30)
	return m
}

func TestReportPanelEmpty(t *testing.T) {
	m := newTestReportPanel()
	require.False(t, m.HasContent())
	require.Nil(t, m.Report())
	assert.Contains(t, m.View(), "No report yet")
}

func TestReportPanelMarkdownAndJSON(t *testing.T) {
	m := newTestReportPanel()
	r := mustReport(t, `{"patient_id":"P-11","summary":"Stable disease"}`)
	m.SetReport(r, "chunks")

	require.True(t, m.HasContent())
	require.Same(t, r, m.Report())
	content := m.Content()
	assert.Contains(t, content, "P-11")
	assert.Contains(t, content, "Stable disease")
	assert.Contains(t, m.View(), "REPORT · chunks", "title should carry the source")

	m.ToggleJSON()
	require.True(t, m.ShowingJSON())
	assert.Equal(t, r.PrettyJSON(), m.Content())
	assert.Contains(t, m.View(), "REPORT (json)")
}

func TestReportPanelFailure(t *testing.T) {
	m := newTestReportPanel()
	m.SetFailure(errors.New("unexpected EOF"), `{"patient_id":`)

	require.True(t, m.HasContent(), "failure counts as content")
	assert.Equal(t, "Report could not be parsed: unexpected EOF\n\n{\"patient_id\":", m.Content())
}

func TestReportPanelFailureDoesNotReplaceReport(t *testing.T) {
	m := newTestReportPanel()
	r := mustReport(t, `{"patient_id":"P-1"}`)
	m.SetReport(r, "stream")
	m.SetFailure(errors.New("late garbage"), "xx")

	assert.Same(t, r, m.Report(), "a usable report must stay on screen")
	assert.NotContains(t, m.Content(), "late garbage")
}
