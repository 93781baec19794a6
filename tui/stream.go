// ABOUTME: StreamModel is an inline Bubble Tea model for streaming run progress to the terminal.
// ABOUTME: Displays agent status lines, elapsed times, spinners, connection status and chunk progress without alt-screen.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/session"
	"github.com/2389-research/mdtview/workflow"
)

// StreamResult is what an inline run ended with.
type StreamResult struct {
	RunID          string
	Report         *report.Report
	ReportReceived bool
	Err            error
}

// StreamModel is an inline (non-alt-screen) Bubble Tea model that displays
// run progress as a list of agents with status indicators and elapsed times.
type StreamModel struct {
	ctrl    Controller
	ctx     context.Context
	opts    Options
	verbose bool

	order     []string
	snap      workflow.Snapshot
	startedAt map[string]time.Time
	durations map[string]time.Duration

	spinnerIdx int

	runID      string
	start      time.Time
	connection string
	progress   string
	notices    []LogEntry
	rep        *report.Report
	received   bool
	done       bool
	err        error
	resultCh   chan StreamResult

	width int
}

// maxNotices limits the notice lines kept under the agent list.
const maxNotices = 5

// NewStreamModel creates a StreamModel for inline progress display. In
// verbose mode each running agent shows its last message.
func NewStreamModel(ctx context.Context, ctrl Controller, opts Options, verbose bool) StreamModel {
	if ctx == nil {
		ctx = context.Background()
	}
	g := NewGraphPanelModel()
	return StreamModel{
		ctrl:       ctrl,
		ctx:        ctx,
		opts:       opts,
		verbose:    verbose,
		order:      g.order,
		snap:       g.Snapshot(),
		startedAt:  make(map[string]time.Time),
		durations:  make(map[string]time.Duration),
		connection: session.StateIdle.String(),
		resultCh:   make(chan StreamResult, 1),
	}
}

// ResultCh receives the run result after the program exits.
func (m *StreamModel) ResultCh() <-chan StreamResult {
	return m.resultCh
}

// Init implements tea.Model. Starts the upload or watch and the tick loop.
func (m StreamModel) Init() tea.Cmd {
	cmds := []tea.Cmd{TickCmd(tickInterval)}
	switch {
	case m.opts.Case != nil:
		cmds = append(cmds, SubmitCaseCmd(m.ctx, m.ctrl, *m.opts.Case))
	case m.opts.RunID != "":
		cmds = append(cmds, ConnectCmd(m.ctrl, m.opts.RunID))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model. Routes incoming messages to appropriate handlers.
func (m StreamModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case SessionEventMsg:
		return m.handleSessionEvent(msg)

	case SubmitResultMsg:
		if msg.Err != nil {
			return m.finish(StreamResult{Err: msg.Err})
		}
		return m, nil

	case TickMsg:
		return m.handleTick()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			done, _ := m.finish(StreamResult{RunID: m.runID, Report: m.rep, ReportReceived: m.received, Err: context.Canceled})
			return done, QuitCmd(m.ctrl)
		}
	}

	return m, nil
}

// View implements tea.Model. Renders the inline streaming progress display.
func (m StreamModel) View() string {
	var b strings.Builder

	run := m.runID
	if run == "" {
		run = "starting"
	}
	b.WriteString(fmt.Sprintf("mdtview · run %s\n\n", run))

	for _, key := range m.order {
		st := m.snap.State(key)
		b.WriteString(m.renderAgentLine(key, st))
		b.WriteString("\n")

		if m.verbose && st == workflow.StateRunning {
			if msg := m.message(key); msg != "" {
				b.WriteString(InactiveStyle.Render("      " + msg))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	for _, n := range m.notices {
		b.WriteString("  " + StyleForLevel(n.Level).Render(n.Text) + "\n")
	}
	if m.progress != "" {
		b.WriteString("  " + m.progress + "\n")
	}
	b.WriteString(m.renderProgressLine())
	b.WriteString("\n")

	return b.String()
}

// handleSessionEvent updates agent lines and status from a controller event.
func (m StreamModel) handleSessionEvent(msg SessionEventMsg) (tea.Model, tea.Cmd) {
	switch ev := msg.Event.(type) {
	case session.Submitted:
		m.runID = ev.RunID
		m.start = time.Now()

	case session.ConnectionChanged:
		if m.runID == "" {
			m.runID = ev.RunID
		}
		if m.start.IsZero() {
			m.start = time.Now()
		}
		m.connection = ev.Text
		if m.connection == "" {
			m.connection = ev.State.String()
		}

	case session.AgentsChanged:
		now := time.Now()
		for _, t := range Diff(m.snap, ev.Snapshot) {
			key := t.Agent.Key
			switch {
			case t.To == workflow.StateRunning:
				m.startedAt[key] = now
			case t.To.Terminal():
				if start, ok := m.startedAt[key]; ok {
					m.durations[key] = now.Sub(start)
				}
			}
		}
		m.snap = ev.Snapshot

	case session.ChunkProgress:
		m.progress = ev.Text()

	case session.ReportReady:
		m.progress = ""
		m.rep = ev.Report
		if ev.Report != nil && !ev.Report.Synthetic {
			m.received = true
		}

	case session.Notice, session.ReportFailed:
		if entry, ok := DescribeEvent(ev); ok {
			m.notices = append(m.notices, entry)
			if len(m.notices) > maxNotices {
				m.notices = m.notices[len(m.notices)-maxNotices:]
			}
		}

	case session.Finished:
		return m.finish(StreamResult{RunID: ev.RunID, Report: m.rep, ReportReceived: ev.ReportReceived})
	}

	return m, nil
}

// finish records the result and quits.
func (m StreamModel) finish(res StreamResult) (tea.Model, tea.Cmd) {
	m.done = true
	m.err = res.Err

	// Non-blocking write to result channel
	select {
	case m.resultCh <- res:
	default:
	}

	return m, tea.Quit
}

// handleTick advances the spinner and returns a new tick if still running.
func (m StreamModel) handleTick() (tea.Model, tea.Cmd) {
	m.spinnerIdx++
	if m.done {
		return m, nil
	}
	return m, TickCmd(tickInterval)
}

func (m StreamModel) message(key string) string {
	for _, a := range m.snap {
		if a.Agent.Key == key {
			return a.Message
		}
	}
	return ""
}

// renderAgentLine renders a single agent's status line.
func (m StreamModel) renderAgentLine(key string, st workflow.AgentState) string {
	label := key
	if a, ok := workflow.Lookup(key); ok {
		label = a.DisplayName
	}

	switch st {
	case workflow.StateRunning:
		frame := SpinnerFrames[m.spinnerIdx%len(SpinnerFrames)]
		return RunningStyle.Render(fmt.Sprintf("  %s %s", frame, label)) +
			RunningStyle.Render("  running...")

	case workflow.StateComplete:
		return CompleteStyle.Render(fmt.Sprintf("  ✓ %s", label)) +
			CompleteStyle.Render(fmt.Sprintf("  %s", formatDuration(m.durations[key])))

	case workflow.StateError:
		return ErrorStyle.Render(fmt.Sprintf("  ✗ %s", label)) +
			ErrorStyle.Render(fmt.Sprintf("  error (%s)", formatDuration(m.durations[key])))

	default:
		return InactiveStyle.Render(fmt.Sprintf("    %s", label))
	}
}

// renderProgressLine renders the bottom progress/completion line.
func (m StreamModel) renderProgressLine() string {
	var elapsed time.Duration
	if !m.start.IsZero() {
		elapsed = time.Since(m.start)
	}
	complete := m.snap.Count(workflow.StateComplete)
	total := len(m.order)

	if m.done {
		if m.err != nil {
			return ErrorStyle.Render(
				fmt.Sprintf("  ✗ %d/%d complete · %s · FAILED: %v", complete, total, formatDuration(elapsed), m.err))
		}
		return CompleteStyle.Render(
			fmt.Sprintf("  ✓ %d/%d complete · %s", complete, total, formatDuration(elapsed)))
	}

	return InactiveStyle.Render(
		fmt.Sprintf("  %d/%d complete · %s elapsed · %s", complete, total, formatDuration(elapsed), m.connection))
}

// formatDuration formats a duration as a human-readable string like "0.1s" or "2.3s".
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 10 {
		return fmt.Sprintf("%.1fs", secs)
	}
	if secs < 60 {
		return fmt.Sprintf("%.0fs", secs)
	}
	mins := int(secs) / 60
	remainSecs := int(secs) % 60
	return fmt.Sprintf("%dm%02ds", mins, remainSecs)
}
