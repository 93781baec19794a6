// ABOUTME: Bubble Tea sub-model rendering the MDT workflow graph with agent state markers and spinner animation.
// ABOUTME: Lays the diagram's DOT graph out in topological levels with Kahn's algorithm, keeping catalog order within a level.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/2389-research/mdtview/diagram"
	"github.com/2389-research/mdtview/dot"
	"github.com/2389-research/mdtview/workflow"
)

// GraphPanelModel displays the workflow graph with a selectable agent cursor.
type GraphPanelModel struct {
	graph        *dot.Graph
	snap         workflow.Snapshot
	order        []string // agent keys in display order
	cursor       int
	runID        string
	spinnerIndex int
	focused      bool
	width        int
}

// NewGraphPanelModel creates a graph panel with every agent inactive.
func NewGraphPanelModel() GraphPanelModel {
	m := GraphPanelModel{}
	m.SetSnapshot(workflow.NewTracker().Snapshot())
	return m
}

// SetSnapshot replaces the agent states and rebuilds the graph.
func (m *GraphPanelModel) SetSnapshot(snap workflow.Snapshot) {
	m.snap = snap
	m.graph = diagram.Build(snap)
	var order []string
	for _, level := range m.topologicalLevels() {
		order = append(order, level...)
	}
	m.order = order
	if m.cursor >= len(m.order) {
		m.cursor = len(m.order) - 1
	}
}

// Snapshot returns the current agent states.
func (m GraphPanelModel) Snapshot() workflow.Snapshot {
	return m.snap
}

// State returns an agent's current state.
func (m GraphPanelModel) State(key string) workflow.AgentState {
	return m.snap.State(key)
}

// SetRunID sets the run shown in the title.
func (m *GraphPanelModel) SetRunID(id string) {
	m.runID = id
}

// MoveCursor moves the selection by delta, clamped to the agent list.
func (m *GraphPanelModel) MoveCursor(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.order) {
		m.cursor = len(m.order) - 1
	}
}

// Selected returns the agent under the cursor.
func (m GraphPanelModel) Selected() workflow.AgentStatus {
	if m.cursor < 0 || m.cursor >= len(m.order) {
		return workflow.AgentStatus{}
	}
	key := m.order[m.cursor]
	for _, a := range m.snap {
		if a.Agent.Key == key {
			return a
		}
	}
	return workflow.AgentStatus{}
}

// AdvanceSpinner increments the spinner frame index.
func (m *GraphPanelModel) AdvanceSpinner() {
	m.spinnerIndex++
}

// SetFocused sets whether the cursor is drawn.
func (m *GraphPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// SetWidth sets the available width for rendering.
func (m *GraphPanelModel) SetWidth(w int) {
	m.width = w
}

// View renders the graph panel as a string.
func (m GraphPanelModel) View() string {
	var b strings.Builder

	run := m.runID
	if run == "" {
		run = "(no run)"
	}
	b.WriteString(TitleStyle.Render(fmt.Sprintf("=== MDT WORKFLOW: %s ===", run)))
	b.WriteString("\n")

	levels := m.topologicalLevels()
	idx := 0
	for levelIdx, level := range levels {
		for _, key := range level {
			st := m.snap.State(key)
			line := fmt.Sprintf("%s %s", st.Icon(), m.label(key))
			if st == workflow.StateRunning {
				line += " " + SpinnerFrames[m.spinnerIndex%len(SpinnerFrames)]
			}

			marker := "  "
			if m.focused && idx == m.cursor {
				marker = CursorStyle.Render("> ")
			}
			b.WriteString(marker)
			b.WriteString(StyleForState(st).Render(line))
			b.WriteString("\n")
			idx++
		}

		// Edges into the next level, once per level.
		if levelIdx < len(levels)-1 {
			b.WriteString(EdgeStyle.Render("    --> " + m.edgeSummary(level)))
			b.WriteString("\n")
		}
	}

	content := strings.TrimRight(b.String(), "\n")
	style := BorderStyle
	if m.focused {
		style = FocusedBorderStyle
	}
	if m.width > 0 {
		return style.Width(m.width - 2).Render(content)
	}
	return style.Render(content)
}

// edgeSummary names the distinct targets of a level's outgoing edges.
func (m GraphPanelModel) edgeSummary(level []string) string {
	seen := map[string]bool{}
	var targets []string
	for _, key := range level {
		for _, e := range m.graph.OutgoingEdges(key) {
			if !seen[e.To] {
				seen[e.To] = true
				targets = append(targets, e.To)
			}
		}
	}
	if len(targets) > 2 {
		return fmt.Sprintf("%d agents", len(targets))
	}
	labels := make([]string, len(targets))
	for i, t := range targets {
		labels[i] = m.label(t)
	}
	return strings.Join(labels, ", ")
}

// label returns the display label for an agent key.
func (m GraphPanelModel) label(key string) string {
	if a, ok := workflow.Lookup(key); ok {
		return a.Icon + " " + a.DisplayName
	}
	return key
}

// topologicalLevels computes topological levels using Kahn's algorithm (BFS).
// Nodes within a level keep catalog order.
func (m GraphPanelModel) topologicalLevels() [][]string {
	if m.graph == nil || len(m.graph.Nodes) == 0 {
		return nil
	}

	rank := make(map[string]int)
	for i, a := range workflow.Catalog() {
		rank[a.Key] = i
	}
	byCatalog := func(ids []string) {
		sort.SliceStable(ids, func(i, j int) bool { return rank[ids[i]] < rank[ids[j]] })
	}

	// Compute in-degree for each node
	inDegree := make(map[string]int)
	for _, id := range m.graph.NodeIDs() {
		inDegree[id] = 0
	}
	for _, edge := range m.graph.Edges {
		inDegree[edge.To]++
	}

	var queue []string
	for _, id := range m.graph.NodeIDs() {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	byCatalog(queue)

	var levels [][]string
	for len(queue) > 0 {
		level := make([]string, len(queue))
		copy(level, queue)
		levels = append(levels, level)

		var next []string
		for _, id := range queue {
			for _, edge := range m.graph.OutgoingEdges(id) {
				inDegree[edge.To]--
				if inDegree[edge.To] == 0 {
					next = append(next, edge.To)
				}
			}
		}
		byCatalog(next)
		queue = next
	}
	return levels
}
