// ABOUTME: Tests for the workflow diagram builder and asynchronous renderer.
// ABOUTME: Covers fan-out/fan-in edges, state classes, determinism and failure fallback.
package diagram

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/mdtview/dot/validator"
	"github.com/2389-research/mdtview/workflow"
)

func TestBuildPassesLint(t *testing.T) {
	tr := workflow.NewTracker()
	tr.Apply("coordinator", "ACTIVE", "")
	tr.Apply("imaging_agent", "ERROR", "")
	assert.Empty(t, validator.Lint(Build(tr.Snapshot())))
	assert.Empty(t, validator.Lint(Build(workflow.NewTracker().Snapshot())))
}

func TestBuildEdges(t *testing.T) {
	g := Build(workflow.NewTracker().Snapshot())

	require.Len(t, g.Nodes, len(workflow.Catalog()))
	out := g.OutgoingEdges(workflow.Coordinator)
	require.Len(t, out, len(workflow.DomainAgents))
	for i, e := range out {
		assert.Equal(t, workflow.DomainAgents[i], e.To)
	}
	in := g.IncomingEdges(workflow.Summary)
	require.Len(t, in, len(workflow.DomainAgents))
	assert.Empty(t, g.OutgoingEdges(workflow.Summary))
}

func TestBuildStateClasses(t *testing.T) {
	tr := workflow.NewTracker()
	tr.Apply("coordinator", "ACTIVE", "")
	tr.Apply("ehr_agent", "DONE", "")
	tr.Apply("imaging_agent", "ERROR", "")

	g := Build(tr.Snapshot())
	assert.Equal(t, "running", g.FindNode(workflow.Coordinator).Attrs["class"])
	assert.Equal(t, ColorRunning, g.FindNode(workflow.Coordinator).Attrs["fillcolor"])
	assert.Equal(t, "2", g.FindNode(workflow.Coordinator).Attrs["penwidth"])
	assert.Equal(t, "complete", g.FindNode(workflow.EHR).Attrs["class"])
	assert.Equal(t, "error", g.FindNode(workflow.Imaging).Attrs["class"])
	assert.Equal(t, "inactive", g.FindNode(workflow.Summary).Attrs["class"])
	assert.Equal(t, ColorInactive, g.FindNode(workflow.Summary).Attrs["fillcolor"])
}

func TestDefinitionDeterministic(t *testing.T) {
	snap := workflow.NewTracker().Snapshot()
	first := Definition(snap)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Definition(snap))
	}
	assert.True(t, strings.HasPrefix(first, "digraph mdt_workflow {"))
	assert.Contains(t, first, "coordinator -> ehr")
	assert.Contains(t, first, "evaluation -> summary")
}

func TestRendererDotFormat(t *testing.T) {
	r := NewRenderer(nil, "")
	res := <-r.Render(context.Background(), workflow.NewTracker().Snapshot())

	require.NoError(t, res.Err)
	assert.Equal(t, "dot", res.Format)
	assert.Equal(t, res.Definition, string(res.Output))
	assert.Equal(t, res.Definition, res.Fallback())
	assert.Equal(t, 1, r.Renders())
}

func TestRendererFailureFallsBackToDefinition(t *testing.T) {
	failing := func(context.Context, string, string) ([]byte, error) {
		return nil, errors.New("syntax error near line 3")
	}
	r := NewRenderer(failing, "svg")
	res := <-r.Render(context.Background(), workflow.NewTracker().Snapshot())

	require.Error(t, res.Err)
	fb := res.Fallback()
	assert.True(t, strings.HasPrefix(fb, "digraph mdt_workflow {"))
	assert.Contains(t, fb, "syntax error near line 3")
}

func TestRendererRecoversPanic(t *testing.T) {
	panicking := func(context.Context, string, string) ([]byte, error) {
		panic("boom")
	}
	r := NewRenderer(panicking, "svg")
	res := <-r.Render(context.Background(), workflow.NewTracker().Snapshot())

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")
	assert.Nil(t, res.Output)
}

func TestFillColor(t *testing.T) {
	assert.Equal(t, ColorComplete, FillColor(workflow.StateComplete))
	assert.Equal(t, ColorError, FillColor(workflow.StateError))
	assert.Equal(t, ColorInactive, FillColor(workflow.AgentState(99)))
}
