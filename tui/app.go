// ABOUTME: Top-level Bubble Tea AppModel that orchestrates all TUI sub-panels into a unified layout.
// ABOUTME: Implements tea.Model (Init, Update, View) and routes session events to graph, detail, log, report and status bar panels.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/mdtview/client"
	"github.com/2389-research/mdtview/diagram"
	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/session"
	"github.com/2389-research/mdtview/workflow"
)

// FocusTarget indicates which panel currently has keyboard focus.
type FocusTarget int

const (
	FocusGraph FocusTarget = iota
	FocusLog
	FocusReport
)

const tickInterval = 100 * time.Millisecond

// Options configures an AppModel.
type Options struct {
	// Renderer renders report Markdown for the terminal.
	Renderer *report.TerminalRenderer
	// Diagrams renders the workflow diagram to DiagramOut on every agent change.
	Diagrams   *diagram.Renderer
	DiagramOut string
	// Save writes the current report when the user presses w.
	Save SaveFunc
	// Case is uploaded on start; RunID is watched on start. At most one is used.
	Case  *client.CaseFile
	RunID string
	// QuitOnFinish exits the program once the run finishes.
	QuitOnFinish bool
}

// AppModel is the top-level Bubble Tea model that composes all TUI sub-panels
// and routes messages between them.
type AppModel struct {
	graph     GraphPanelModel
	detail    DetailPanelModel
	log       LogPanelModel
	report    ReportPanelModel
	statusBar StatusBarModel
	prompt    PromptModel

	ctrl Controller
	opts Options
	ctx  context.Context

	since    map[string]time.Time // agent key -> last state change
	controls session.Controls
	focus    FocusTarget
	done     bool // run finished
	width    int
	height   int
}

// NewAppModel creates an AppModel driving ctrl.
func NewAppModel(ctx context.Context, ctrl Controller, opts Options) AppModel {
	if ctx == nil {
		ctx = context.Background()
	}
	m := AppModel{
		graph:     NewGraphPanelModel(),
		detail:    NewDetailPanelModel(),
		log:       NewLogPanelModel(200),
		report:    NewReportPanelModel(opts.Renderer),
		statusBar: NewStatusBarModel(len(workflow.Catalog())),
		prompt:    NewPromptModel(),
		ctrl:      ctrl,
		opts:      opts,
		ctx:       ctx,
		since:     make(map[string]time.Time),
		controls:  ctrl.Controls(),
		focus:     FocusGraph,
	}
	m.graph.SetFocused(true)
	m.syncDetail()
	return m
}

// Init implements tea.Model. Starts the tick loop and the initial upload or watch.
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{TickCmd(tickInterval)}
	switch {
	case m.opts.Case != nil:
		cmds = append(cmds, SubmitCaseCmd(m.ctx, m.ctrl, *m.opts.Case))
	case m.opts.RunID != "":
		cmds = append(cmds, ConnectCmd(m.ctrl, m.opts.RunID))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model. Routes incoming messages to the appropriate
// sub-panel and returns the updated model with any follow-up commands.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)

	case SessionEventMsg:
		return m.handleSessionEvent(msg)

	case SubmitResultMsg:
		return m.handleSubmitResult(msg)

	case SavedMsg:
		if msg.Err != nil {
			m.appendLog(LevelError, "Save failed: "+msg.Err.Error())
		} else {
			m.appendLog(LevelSuccess, "Saved "+strings.Join(msg.Paths, ", "))
		}
		return m, nil

	case DiagramMsg:
		if msg.Err != nil {
			m.appendLog(LevelError, "Diagram write failed: "+msg.Err.Error())
		} else if msg.Result.Err != nil {
			m.appendLog(LevelWarn, fmt.Sprintf("Diagram render failed, wrote DOT source to %s: %v", msg.Path, msg.Result.Err))
		}
		return m, nil

	case TickMsg:
		return m.handleTick(msg)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

// View implements tea.Model. Renders the full TUI layout with all panels.
func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	// Minimum terminal size guard to prevent layout overflow
	if m.width < 40 || m.height < 12 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 40x12.", m.width, m.height)
	}

	statusBarHeight := 1
	bodyHeight := m.height - statusBarHeight

	m.statusBar.SetWidth(m.width)
	statusView := m.statusBar.View()
	if m.done {
		statusView += " " + CompleteStyle.Render("DONE")
	}

	var body string
	switch {
	case m.prompt.IsActive():
		body = lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, m.prompt.View())
	case m.focus == FocusReport:
		m.report.SetSize(m.width, bodyHeight)
		body = m.report.View()
	default:
		body = m.mainView(bodyHeight)
	}

	return body + "\n" + statusView
}

// mainView lays out the graph on top and detail + log below.
func (m AppModel) mainView(bodyHeight int) string {
	graphHeight := bodyHeight * 55 / 100
	if graphHeight < 3 {
		graphHeight = 3
	}
	bottomHeight := bodyHeight - graphHeight
	if bottomHeight < 3 {
		bottomHeight = 3
	}

	detailWidth := m.width * 40 / 100
	if detailWidth < 10 {
		detailWidth = 10
	}
	logWidth := m.width - detailWidth
	if logWidth < 10 {
		logWidth = 10
	}

	m.graph.SetWidth(m.width)
	m.detail.SetSize(detailWidth, bottomHeight)
	m.log.SetSize(logWidth, bottomHeight)

	bottomView := lipgloss.JoinHorizontal(lipgloss.Top, m.detail.View(), m.log.View())
	return m.graph.View() + "\n" + bottomView
}

// handleWindowSize updates dimensions on all panels.
func (m AppModel) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.report.SetSize(m.width, m.height-1)
	return m, nil
}

// handleSessionEvent routes controller events to the sub-panels.
func (m AppModel) handleSessionEvent(msg SessionEventMsg) (tea.Model, tea.Cmd) {
	at := msg.Time
	if at.IsZero() {
		at = time.Now()
	}
	if entry, ok := DescribeEvent(msg.Event); ok {
		entry.Time = at
		m.log.Append(entry)
	}

	var cmd tea.Cmd
	switch ev := msg.Event.(type) {
	case session.Submitted:
		m.done = false
		m.statusBar.Start(ev.RunID)
		m.graph.SetRunID(ev.RunID)
		m.detail.SetRunID(ev.RunID)

	case session.ConnectionChanged:
		if ev.RunID != "" && ev.RunID != m.graph.runID {
			m.done = false
			m.statusBar.Start(ev.RunID)
			m.graph.SetRunID(ev.RunID)
			m.detail.SetRunID(ev.RunID)
		}
		m.statusBar.SetConnection(ev.State, ev.Text)

	case session.AgentsChanged:
		for _, t := range Diff(m.graph.Snapshot(), ev.Snapshot) {
			m.since[t.Agent.Key] = at
			m.log.Append(LogEntry{Time: at, Level: t.Level(), Text: t.Text()})
		}
		m.graph.SetSnapshot(ev.Snapshot)
		m.statusBar.SetCompleted(ev.Snapshot.Count(workflow.StateComplete))
		m.syncDetail()
		if m.opts.Diagrams != nil && m.opts.DiagramOut != "" {
			cmd = RenderDiagramCmd(m.ctx, m.opts.Diagrams, ev.Snapshot, m.opts.DiagramOut)
		}

	case session.ChunkProgress:
		m.detail.SetProgress(ev.Text())

	case session.ReportReady:
		m.detail.SetProgress("")
		m.report.SetReport(ev.Report, ev.Source)
		m.setFocus(FocusReport)

	case session.ReportFailed:
		m.detail.SetProgress("")
		m.report.SetFailure(ev.Err, ev.Raw)

	case session.ControlsChanged:
		m.controls = ev.Controls
		m.statusBar.SetSubmitLabel(ev.Controls.SubmitLabel)

	case session.Finished:
		m.done = true
		m.statusBar.Stop()
		if m.opts.QuitOnFinish {
			return m, tea.Quit
		}
	}

	return m, cmd
}

// handleSubmitResult logs upload failures the controller did not already report.
func (m AppModel) handleSubmitResult(msg SubmitResultMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil && !msg.Reported {
		m.appendLog(LevelError, fmt.Sprintf("Error: %v", msg.Err))
	}
	return m, nil
}

// handleTick advances the spinner and schedules the next tick.
func (m AppModel) handleTick(_ TickMsg) (tea.Model, tea.Cmd) {
	m.graph.AdvanceSpinner()
	return m, TickCmd(tickInterval)
}

// handleKeyMsg processes keyboard input, routing to the prompt or app-level shortcuts.
func (m AppModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt.IsActive() {
		switch msg.Type {
		case tea.KeyEnter:
			kind, value := m.prompt.Submit()
			return m.promptDone(kind, value)
		case tea.KeyEsc:
			m.prompt.Close()
			return m, nil
		case tea.KeyCtrlC:
			return m, QuitCmd(m.ctrl)
		}
		m.prompt = m.prompt.Update(msg)
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, QuitCmd(m.ctrl)

	case "tab":
		m.setFocus(m.nextFocus())
		return m, nil

	case "esc":
		m.setFocus(FocusGraph)
		return m, nil

	case "o":
		if !m.controls.SubmitEnabled {
			m.appendLog(LevelWarn, "A simulation is already processing.")
			return m, nil
		}
		m.prompt.Open(PromptCaseFile)
		return m, nil

	case "a":
		m.prompt.Open(PromptRunID)
		return m, nil

	case "f":
		return m, FetchCmd(m.ctrl)

	case "r":
		return m, ReconnectCmd(m.ctrl)

	case "v":
		if m.report.HasContent() {
			m.report.ToggleJSON()
			m.setFocus(FocusReport)
		}
		return m, nil

	case "w":
		if r := m.report.Report(); r != nil {
			return m, SaveCmd(m.opts.Save, r)
		}
		m.appendLog(LevelWarn, "No report to save yet.")
		return m, nil
	}

	switch m.focus {
	case FocusGraph:
		switch msg.String() {
		case "up", "k":
			m.graph.MoveCursor(-1)
			m.syncDetail()
		case "down", "j":
			m.graph.MoveCursor(1)
			m.syncDetail()
		}
	case FocusLog:
		m.log = m.log.Update(msg)
	case FocusReport:
		m.report = m.report.Update(msg)
	}
	return m, nil
}

// promptDone acts on a confirmed prompt value.
func (m AppModel) promptDone(kind PromptKind, value string) (tea.Model, tea.Cmd) {
	switch kind {
	case PromptCaseFile:
		return m, SubmitCmd(m.ctx, m.ctrl, value)
	case PromptRunID:
		return m, ConnectCmd(m.ctrl, value)
	}
	return m, nil
}

// nextFocus cycles the focus target through graph, log and (when present) report.
func (m AppModel) nextFocus() FocusTarget {
	switch m.focus {
	case FocusGraph:
		return FocusLog
	case FocusLog:
		if m.report.HasContent() {
			return FocusReport
		}
		return FocusGraph
	default:
		return FocusGraph
	}
}

func (m *AppModel) setFocus(f FocusTarget) {
	m.focus = f
	m.graph.SetFocused(f == FocusGraph)
	m.log.SetFocused(f == FocusLog)
	m.report.SetFocused(f == FocusReport)
}

func (m *AppModel) appendLog(level LogLevel, text string) {
	m.log.Append(LogEntry{Time: time.Now(), Level: level, Text: text})
}

// syncDetail shows the agent under the graph cursor.
func (m *AppModel) syncDetail() {
	sel := m.graph.Selected()
	if sel.Agent.Key == "" {
		m.detail.Clear()
		return
	}
	m.detail.SetAgent(AgentDetail{
		Name:    sel.Agent.DisplayName,
		Icon:    sel.Agent.Icon,
		State:   sel.State,
		Message: sel.Message,
		Since:   m.since[sel.Agent.Key],
	})
}
