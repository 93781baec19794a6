// ABOUTME: Serializer that converts a Graph AST to DOT source text for graphviz.
// ABOUTME: Output is deterministic: nodes in insertion order, attributes sorted by key.
package dot

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Serialize converts a Graph to a DOT digraph string.
func Serialize(g *Graph) string {
	var b strings.Builder

	fmt.Fprintf(&b, "digraph %s {\n", quoteID(g.Name))

	if len(g.Attrs) > 0 {
		fmt.Fprintf(&b, "  graph [%s]\n", formatAttrs(g.Attrs))
	}
	if len(g.NodeDefaults) > 0 {
		fmt.Fprintf(&b, "  node [%s]\n", formatAttrs(g.NodeDefaults))
	}
	if len(g.EdgeDefaults) > 0 {
		fmt.Fprintf(&b, "  edge [%s]\n", formatAttrs(g.EdgeDefaults))
	}
	if len(g.Attrs) > 0 || len(g.NodeDefaults) > 0 || len(g.EdgeDefaults) > 0 {
		b.WriteString("\n")
	}

	nodeIDs := g.NodeIDs()
	for _, id := range nodeIDs {
		node := g.Nodes[id]
		if len(node.Attrs) > 0 {
			fmt.Fprintf(&b, "  %s [%s]\n", quoteID(id), formatAttrs(node.Attrs))
		} else {
			fmt.Fprintf(&b, "  %s\n", quoteID(id))
		}
	}

	if len(nodeIDs) > 0 && len(g.Edges) > 0 {
		b.WriteString("\n")
	}

	for _, e := range g.Edges {
		if len(e.Attrs) > 0 {
			fmt.Fprintf(&b, "  %s -> %s [%s]\n", quoteID(e.From), quoteID(e.To), formatAttrs(e.Attrs))
		} else {
			fmt.Fprintf(&b, "  %s -> %s\n", quoteID(e.From), quoteID(e.To))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// formatAttrs renders key=value pairs with sorted keys.
func formatAttrs(attrs map[string]string) string {
	keys := sortedKeys(attrs)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, quoteValue(attrs[k])))
	}
	return strings.Join(parts, ", ")
}

// quoteID quotes an identifier unless it is a bare identifier.
func quoteID(id string) string {
	if isBareIdentifier(id) {
		return id
	}
	return quoteValue(id)
}

// quoteValue returns a DOT-safe representation of a value.
func quoteValue(val string) string {
	if val == "" {
		return `""`
	}
	if isBareIdentifier(val) {
		return val
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, ch := range val {
		switch ch {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// isBareIdentifier reports whether val is a number or made only of lowercase
// letters, digits and underscores.
func isBareIdentifier(val string) bool {
	if val == "" {
		return false
	}
	if isNumeric(val) {
		return true
	}
	for _, ch := range val {
		if ch != '_' && !unicode.IsLower(ch) && !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// isNumeric reports whether val looks like an integer or float, possibly negative.
func isNumeric(val string) bool {
	start := 0
	if val[0] == '-' {
		if len(val) == 1 {
			return false
		}
		start = 1
	}
	hasDot, hasDigit := false, false
	for i := start; i < len(val); i++ {
		switch ch := val[i]; {
		case ch == '.':
			if hasDot {
				return false
			}
			hasDot = true
		case ch >= '0' && ch <= '9':
			hasDigit = true
		default:
			return false
		}
	}
	return hasDigit
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
