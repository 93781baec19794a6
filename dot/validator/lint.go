// ABOUTME: Structural lint rules for workflow DOT graphs: one root, one sink, reachability, dead ends and attrs.
// ABOUTME: Lint(g) runs every check and returns diagnostics; the diagram command reports them on stderr.
package validator

import (
	"fmt"
	"sort"

	"github.com/2389-research/mdtview/dot"
)

// Diagnostic is one lint finding.
type Diagnostic struct {
	Severity string // "error" or "warning"
	Message  string
	NodeID   string
	EdgeID   string
	Rule     string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s (%s)", d.Severity, d.Message, d.Rule)
}

// validShapes is the set of DOT shapes the workflow diagram may use.
var validShapes = map[string]bool{
	"box":          true,
	"ellipse":      true,
	"oval":         true,
	"circle":       true,
	"doublecircle": true,
	"diamond":      true,
	"hexagon":      true,
	"plaintext":    true,
	"record":       true,
}

// validRankdirs is the set of valid rankdir attribute values.
var validRankdirs = map[string]bool{
	"LR": true,
	"TB": true,
	"RL": true,
	"BT": true,
}

// Lint runs all lint rules on the graph and returns any diagnostics found.
func Lint(g *dot.Graph) []Diagnostic {
	var diags []Diagnostic

	diags = append(diags, checkEdgeTargets(g)...)
	diags = append(diags, checkRoots(g)...)
	diags = append(diags, checkSinks(g)...)
	diags = append(diags, checkReachability(g)...)
	diags = append(diags, checkSelfLoops(g)...)
	diags = append(diags, checkShapes(g)...)
	diags = append(diags, checkRankdir(g)...)

	return diags
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == "error" {
			return true
		}
	}
	return false
}

// roots returns the nodes with no incoming edges, sorted.
func roots(g *dot.Graph) []string {
	var ids []string
	for _, id := range g.NodeIDs() {
		if len(g.IncomingEdges(id)) == 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// checkRoots verifies exactly one node has no incoming edges.
func checkRoots(g *dot.Graph) []Diagnostic {
	ids := roots(g)
	switch len(ids) {
	case 1:
		return nil
	case 0:
		return []Diagnostic{{
			Severity: "error",
			Message:  "graph has no root node (every node has an incoming edge)",
			Rule:     "single_root",
		}}
	default:
		return []Diagnostic{{
			Severity: "error",
			Message:  fmt.Sprintf("graph has %d root nodes, expected exactly 1: %v", len(ids), ids),
			Rule:     "single_root",
		}}
	}
}

// checkSinks flags graphs whose work does not converge on exactly one node.
func checkSinks(g *dot.Graph) []Diagnostic {
	var ids []string
	for _, id := range g.NodeIDs() {
		if len(g.OutgoingEdges(id)) == 0 && len(g.IncomingEdges(id)) > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 1 {
		return nil
	}
	sort.Strings(ids)
	var diags []Diagnostic
	for _, id := range ids {
		diags = append(diags, Diagnostic{
			Severity: "warning",
			Message:  fmt.Sprintf("node %q has no outgoing edges (dead end)", id),
			NodeID:   id,
			Rule:     "single_sink",
		})
	}
	if len(ids) == 0 {
		diags = append(diags, Diagnostic{
			Severity: "warning",
			Message:  "graph has no sink node",
			Rule:     "single_sink",
		})
	}
	return diags
}

// checkReachability performs BFS from the root and flags unreachable nodes.
func checkReachability(g *dot.Graph) []Diagnostic {
	ids := roots(g)
	if len(ids) != 1 {
		return nil
	}
	start := ids[0]

	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range g.OutgoingEdges(current) {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}

	var diags []Diagnostic
	for _, id := range g.NodeIDs() {
		if !visited[id] {
			diags = append(diags, Diagnostic{
				Severity: "error",
				Message:  fmt.Sprintf("node %q is not reachable from root %q", id, start),
				NodeID:   id,
				Rule:     "reachability",
			})
		}
	}
	return diags
}

// checkSelfLoops flags edges where From == To.
func checkSelfLoops(g *dot.Graph) []Diagnostic {
	var diags []Diagnostic
	for _, e := range g.Edges {
		if e.From == e.To {
			diags = append(diags, Diagnostic{
				Severity: "error",
				Message:  fmt.Sprintf("self-loop on node %q", e.From),
				EdgeID:   e.From + "->" + e.To,
				Rule:     "self_loop",
			})
		}
	}
	return diags
}

// checkEdgeTargets flags edges whose endpoints are not declared nodes.
func checkEdgeTargets(g *dot.Graph) []Diagnostic {
	var diags []Diagnostic
	for _, e := range g.Edges {
		for _, id := range []string{e.From, e.To} {
			if g.FindNode(id) == nil {
				diags = append(diags, Diagnostic{
					Severity: "error",
					Message:  fmt.Sprintf("edge %s->%s references unknown node %q", e.From, e.To, id),
					EdgeID:   e.From + "->" + e.To,
					Rule:     "edge_target",
				})
			}
		}
	}
	return diags
}

// checkShapes validates node and default shape attributes.
func checkShapes(g *dot.Graph) []Diagnostic {
	var diags []Diagnostic
	if shape := g.NodeDefaults["shape"]; shape != "" && !validShapes[shape] {
		diags = append(diags, Diagnostic{
			Severity: "warning",
			Message:  fmt.Sprintf("default node shape %q is not recognized", shape),
			Rule:     "shape",
		})
	}
	for _, id := range g.NodeIDs() {
		n := g.FindNode(id)
		if n == nil || n.Attrs == nil {
			continue
		}
		if shape := n.Attrs["shape"]; shape != "" && !validShapes[shape] {
			diags = append(diags, Diagnostic{
				Severity: "warning",
				Message:  fmt.Sprintf("node %q has unrecognized shape %q", id, shape),
				NodeID:   id,
				Rule:     "shape",
			})
		}
	}
	return diags
}

// checkRankdir validates the graph-level rankdir attribute.
func checkRankdir(g *dot.Graph) []Diagnostic {
	rd, ok := g.Attrs["rankdir"]
	if !ok || validRankdirs[rd] {
		return nil
	}
	return []Diagnostic{{
		Severity: "warning",
		Message:  fmt.Sprintf("rankdir %q is not one of LR, TB, RL, BT", rd),
		Rule:     "rankdir",
	}}
}
