// ABOUTME: Builds the MDT workflow DOT graph from the agent catalog and current agent states.
// ABOUTME: Renderer runs graphviz asynchronously and falls back to the raw definition plus error on failure.
package diagram

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/2389-research/mdtview/dot"
	"github.com/2389-research/mdtview/render"
	"github.com/2389-research/mdtview/workflow"
)

// State fill colors.
const (
	ColorInactive = "#ECEFF1"
	ColorRunning  = "#FFC107"
	ColorComplete = "#4CAF50"
	ColorError    = "#F44336"
)

// FillColor returns the node fill color for a state.
func FillColor(s workflow.AgentState) string {
	switch s {
	case workflow.StateRunning:
		return ColorRunning
	case workflow.StateComplete:
		return ColorComplete
	case workflow.StateError:
		return ColorError
	default:
		return ColorInactive
	}
}

// Build returns the workflow graph: coordinator fans out to every domain agent
// and every domain agent fans in to the summary. Node "class" carries the state.
func Build(snap workflow.Snapshot) *dot.Graph {
	g := dot.NewGraph("mdt_workflow")
	g.Attrs["rankdir"] = "TB"
	g.NodeDefaults["shape"] = "box"
	g.NodeDefaults["style"] = "rounded,filled"
	g.NodeDefaults["fontname"] = "Helvetica"
	g.EdgeDefaults["color"] = "#90A4AE"

	for _, a := range workflow.Catalog() {
		st := snap.State(a.Key)
		attrs := map[string]string{
			"label":     a.Icon + " " + a.DisplayName,
			"class":     st.String(),
			"fillcolor": FillColor(st),
		}
		if st == workflow.StateRunning {
			attrs["penwidth"] = "2"
		}
		g.AddNode(&dot.Node{ID: a.Key, Attrs: attrs})
	}

	for _, key := range workflow.DomainAgents {
		// Endpoints come from the catalog, so these cannot fail.
		_ = g.AddEdge(&dot.Edge{From: workflow.Coordinator, To: key})
	}
	for _, key := range workflow.DomainAgents {
		_ = g.AddEdge(&dot.Edge{From: key, To: workflow.Summary})
	}
	return g
}

// Definition returns the DOT source for snap.
func Definition(snap workflow.Snapshot) string {
	return dot.Serialize(Build(snap))
}

// Result is the outcome of one asynchronous render.
type Result struct {
	Definition string
	Format     string
	Output     []byte
	Err        error
	Duration   time.Duration
}

// Fallback returns what to show when rendering failed: the raw definition
// followed by the error detail. On success it returns the rendered output.
func (r Result) Fallback() string {
	if r.Err == nil {
		return string(r.Output)
	}
	return fmt.Sprintf("%s\n// render failed: %v\n", r.Definition, r.Err)
}

// Renderer renders snapshots through a RenderFunc, typically a render.RenderCache.
type Renderer struct {
	renderFn render.RenderFunc
	format   string
	timeout  time.Duration
	renders  atomic.Int64
}

// NewRenderer creates a Renderer for format. A nil renderFn uses
// render.RenderDOTSource behind a cache.
func NewRenderer(renderFn render.RenderFunc, format string) *Renderer {
	if renderFn == nil {
		renderFn = render.NewRenderCache(render.RenderDOTSource, 10*time.Minute, 32).RenderDOTSource
	}
	if format == "" {
		format = render.FormatDOT
	}
	return &Renderer{renderFn: renderFn, format: format, timeout: 10 * time.Second}
}

// Format returns the configured output format.
func (r *Renderer) Format() string {
	return r.format
}

// Renders returns how many renders have been started.
func (r *Renderer) Renders() int {
	return int(r.renders.Load())
}

// Render starts rendering snap and returns a channel that receives exactly one Result.
// Panics inside the render function are recovered and reported as errors.
func (r *Renderer) Render(ctx context.Context, snap workflow.Snapshot) <-chan Result {
	r.renders.Add(1)
	def := Definition(snap)
	out := make(chan Result, 1)

	go func() {
		start := time.Now()
		res := Result{Definition: def, Format: r.format}
		defer func() {
			if p := recover(); p != nil {
				res.Err = fmt.Errorf("render panicked: %v", p)
				res.Output = nil
			}
			res.Duration = time.Since(start)
			if res.Err != nil {
				log.Printf("diagram event=render_failed format=%s err=%q", r.format, res.Err)
			}
			out <- res
		}()

		rctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		res.Output, res.Err = r.renderFn(rctx, def, r.format)
	}()

	return out
}
