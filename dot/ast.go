// ABOUTME: Minimal DOT graph AST used to describe the MDT agent workflow diagram.
// ABOUTME: Keeps node insertion order so serialized output follows the agent catalog order.
package dot

import "fmt"

// Graph is a directed graph with graph-level attributes and defaults.
type Graph struct {
	Name         string
	Nodes        map[string]*Node
	Edges        []*Edge
	Attrs        map[string]string // graph [...] attributes
	NodeDefaults map[string]string // node [...] defaults
	EdgeDefaults map[string]string // edge [...] defaults

	order []string
}

// Node is a graph node with key-value attributes.
type Node struct {
	ID    string
	Attrs map[string]string
}

// Edge is a directed edge between two node IDs.
type Edge struct {
	From  string
	To    string
	Attrs map[string]string
}

// NewGraph returns an empty graph with the given name.
func NewGraph(name string) *Graph {
	return &Graph{
		Name:         name,
		Nodes:        make(map[string]*Node),
		Attrs:        make(map[string]string),
		NodeDefaults: make(map[string]string),
		EdgeDefaults: make(map[string]string),
	}
}

// AddNode adds or replaces a node. Replacing keeps the original position.
func (g *Graph) AddNode(n *Node) {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	if _, exists := g.Nodes[n.ID]; !exists {
		g.order = append(g.order, n.ID)
	}
	g.Nodes[n.ID] = n
}

// AddEdge appends an edge. Both endpoints must already exist.
func (g *Graph) AddEdge(e *Edge) error {
	if g.FindNode(e.From) == nil {
		return fmt.Errorf("edge %s -> %s: unknown source node", e.From, e.To)
	}
	if g.FindNode(e.To) == nil {
		return fmt.Errorf("edge %s -> %s: unknown target node", e.From, e.To)
	}
	g.Edges = append(g.Edges, e)
	return nil
}

// FindNode returns the node with the given ID, or nil.
func (g *Graph) FindNode(id string) *Node {
	if g.Nodes == nil {
		return nil
	}
	return g.Nodes[id]
}

// OutgoingEdges returns edges leaving nodeID in insertion order.
func (g *Graph) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns edges arriving at nodeID in insertion order.
func (g *Graph) IncomingEdges(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.To == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// NodeIDs returns node IDs in insertion order. Nodes placed directly into the
// Nodes map (bypassing AddNode) are appended in sorted order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	seen := make(map[string]bool, len(g.order))
	for _, id := range g.order {
		if _, ok := g.Nodes[id]; ok && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	for _, id := range sortedKeys(g.Nodes) {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	return ids
}
