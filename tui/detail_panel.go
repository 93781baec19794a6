// ABOUTME: Bubble Tea sub-model for displaying the selected agent's state and last reported message.
// ABOUTME: Also shows run-level facts: run id, connection text and chunk progress.
package tui

import (
	"strings"
	"time"

	"github.com/2389-research/mdtview/workflow"
)

// AgentDetail holds what the panel shows for one agent.
type AgentDetail struct {
	Name    string
	Icon    string
	State   workflow.AgentState
	Message string
	Since   time.Time // when the state last changed
}

// DetailPanelModel displays detailed information about the selected agent.
type DetailPanelModel struct {
	active   *AgentDetail
	runID    string
	progress string
	width    int
	height   int
}

// NewDetailPanelModel creates a new DetailPanelModel with no selected agent.
func NewDetailPanelModel() DetailPanelModel {
	return DetailPanelModel{}
}

// SetAgent updates the panel with new agent details.
func (m *DetailPanelModel) SetAgent(detail AgentDetail) {
	m.active = &detail
}

// Clear removes the selected agent.
func (m *DetailPanelModel) Clear() {
	m.active = nil
}

// SetRunID sets the run id row.
func (m *DetailPanelModel) SetRunID(id string) {
	m.runID = id
}

// SetProgress sets the chunk progress row; empty hides it.
func (m *DetailPanelModel) SetProgress(text string) {
	m.progress = text
}

// SetSize sets the available dimensions.
func (m *DetailPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// maxMessageLen is the maximum number of characters shown for an agent message.
const maxMessageLen = 120

// truncateOutput truncates s to maxMessageLen characters, appending "..." if truncated.
func truncateOutput(s string) string {
	runes := []rune(s)
	if len(runes) <= maxMessageLen {
		return s
	}
	return string(runes[:maxMessageLen]) + "..."
}

// View renders the detail panel as a string.
func (m DetailPanelModel) View() string {
	title := TitleStyle.Render("AGENT DETAIL")

	var lines []string
	lines = append(lines, title)
	if m.active == nil {
		lines = append(lines, "", ValueStyle.Render("No agent selected"))
	} else {
		d := m.active
		stateStr := StyleForState(d.State).Render(d.State.String())
		if !d.Since.IsZero() {
			stateStr += " " + ValueStyle.Render("since "+d.Since.Format("15:04:05"))
		}
		msg := d.Message
		if msg == "" {
			msg = "-"
		}
		lines = append(lines, row("Agent:", strings.TrimSpace(d.Icon+" "+d.Name)))
		lines = append(lines, LabelStyle.Render("State:")+stateStr)
		lines = append(lines, row("Message:", truncateOutput(msg)))
	}

	if m.runID != "" {
		lines = append(lines, "", row("Run:", m.runID))
	}
	if m.progress != "" {
		lines = append(lines, row("Report:", m.progress))
	}

	content := strings.Join(lines, "\n")

	style := BorderStyle
	if m.width > 0 {
		style = style.Width(m.width - 2)
	}
	if m.height > 0 {
		style = style.Height(m.height - 2)
	}

	return style.Render(content)
}

// row renders a label-value pair using the standard label and value styles.
func row(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}
