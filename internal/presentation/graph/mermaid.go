// Package graph exports project trees as Mermaid diagrams.
package graph

import (
	"fmt"
	"strings"

	"github.com/kmol-editor/kmol/pkg/domain"
)

// GraphOverlay marks nodes to highlight on the graph.
type GraphOverlay struct {
	Matches     []domain.NodeID
	CurrentNode domain.NodeID
}

// GenerateMermaid produces a Mermaid flowchart of a project tree.
// Shapes:
// - Root: ((Circle))
// - Node with content: [[Subroutine]]
// - Empty node: [Rectangle]
// Overlay styles are applied when overlay is not nil.
func GenerateMermaid(tree *domain.Tree, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	_ = tree.Walk(func(n *domain.Node, depth int) error {
		opener, closer := "[", "]"
		switch {
		case depth == 0:
			opener, closer = "((", "))"
		case n.Content() != "":
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", mermaidID(n.ID()), opener, escapeLabel(n.Name()), closer)

		for _, c := range n.Children() {
			fmt.Fprintf(&sb, "    %s --> %s\n", mermaidID(n.ID()), mermaidID(c.ID()))
		}
		return nil
	})

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps the labels readable on both themes.
		sb.WriteString("    classDef match fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.NodeID]bool)
		for _, id := range overlay.Matches {
			if seen[id] {
				continue
			}
			if _, err := tree.FindNode(id); err != nil {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s match;\n", mermaidID(id))
		}

		if _, err := tree.FindNode(overlay.CurrentNode); err == nil {
			fmt.Fprintf(&sb, "    class %s current;\n", mermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func mermaidID(id domain.NodeID) string {
	return "n" + id.String()
}

func escapeLabel(name string) string {
	return strings.ReplaceAll(name, "\"", "'")
}
