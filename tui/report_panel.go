// ABOUTME: Scrollable report panel showing the MDT report as glamour-rendered Markdown or pretty JSON.
// ABOUTME: Unparseable reports are shown as raw text with the parse error above them.
package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/mdtview/report"
)

// ReportPanelModel displays the latest report.
type ReportPanelModel struct {
	renderer *report.TerminalRenderer
	viewport viewport.Model
	rep      *report.Report
	source   string
	raw      string
	failure  error
	showJSON bool
	focused  bool
	width    int
	height   int
}

// NewReportPanelModel creates an empty report panel. A nil renderer uses the dark style.
func NewReportPanelModel(renderer *report.TerminalRenderer) ReportPanelModel {
	if renderer == nil {
		renderer = report.NewTerminalRenderer("")
	}
	return ReportPanelModel{
		renderer: renderer,
		viewport: viewport.New(80, 10),
	}
}

// SetReport shows r. source is where it came from (stream, chunks, fetch, synthetic).
func (m *ReportPanelModel) SetReport(r *report.Report, source string) {
	m.rep = r
	m.source = source
	m.raw = ""
	m.failure = nil
	m.sync()
}

// SetFailure shows raw text that could not be used as a report.
func (m *ReportPanelModel) SetFailure(err error, raw string) {
	if m.rep != nil {
		// A usable report stays on screen.
		return
	}
	m.failure = err
	m.raw = raw
	m.sync()
}

// Report returns the report on display, or nil.
func (m ReportPanelModel) Report() *report.Report {
	return m.rep
}

// HasContent reports whether there is anything to show.
func (m ReportPanelModel) HasContent() bool {
	return m.rep != nil || m.failure != nil
}

// ToggleJSON switches between Markdown and JSON views.
func (m *ReportPanelModel) ToggleJSON() {
	m.showJSON = !m.showJSON
	m.sync()
}

// ShowingJSON reports whether the JSON view is active.
func (m ReportPanelModel) ShowingJSON() bool {
	return m.showJSON
}

// SetFocused sets whether this panel accepts scroll keys.
func (m *ReportPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// SetSize sets the available dimensions and re-renders for the new width.
func (m *ReportPanelModel) SetSize(w, h int) {
	if w == m.width && h == m.height {
		return
	}
	m.width = w
	m.height = h
	vpWidth, vpHeight := w-2, h-4
	if vpWidth < 1 {
		vpWidth = 1
	}
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.sync()
}

// Update forwards scroll keys to the viewport when focused.
func (m ReportPanelModel) Update(msg tea.Msg) ReportPanelModel {
	if !m.focused {
		return m
	}
	m.viewport, _ = m.viewport.Update(msg)
	return m
}

// Content returns the unstyled text the viewport shows.
func (m ReportPanelModel) Content() string {
	switch {
	case m.rep != nil && m.showJSON:
		return m.rep.PrettyJSON()
	case m.rep != nil:
		return m.renderer.Render(report.ToMarkdown(m.rep), m.viewport.Width)
	case m.failure != nil:
		return "Report could not be parsed: " + m.failure.Error() + "\n\n" + m.raw
	default:
		return ""
	}
}

func (m *ReportPanelModel) sync() {
	m.viewport.SetContent(m.Content())
	m.viewport.GotoTop()
}

// View renders the report panel.
func (m ReportPanelModel) View() string {
	title := "REPORT"
	if m.showJSON {
		title = "REPORT (json)"
	}
	if m.source != "" {
		title += " · " + m.source
	}
	style := BorderStyle
	if m.focused {
		style = FocusedBorderStyle
	}

	content := "No report yet"
	if m.HasContent() {
		content = m.viewport.View()
	}
	rendered := TitleStyle.Render(title) + "\n" + content
	help := HelpStyle.Render("v: json/markdown  w: save  ↑/↓: scroll")

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(rendered + "\n" + help)
}
