// Package outline renders project trees as indented text.
package outline

import (
	"fmt"
	"strings"

	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/project"
	"github.com/muesli/termenv"
)

// DirtyMarker follows the name of a project with unsaved changes.
const DirtyMarker = "*"

// Render renders the project as an indented tree, one node per line:
//
//	proj *
//	  [2] n1 ~
//	    [3] n1.1
//
// Nodes with content are marked with "~". Colors follow profile; use
// termenv.Ascii for plain text.
func Render(p *project.Project, profile termenv.Profile) string {
	var sb strings.Builder

	sb.WriteString(paint(profile, p.Name(), "", true))
	if p.Dirty() {
		sb.WriteString(" " + paint(profile, DirtyMarker, "#f59e0b", false))
	}
	sb.WriteString("\n")

	_ = p.Walk(func(n *domain.Node, depth int) error {
		if depth == 0 {
			return nil
		}
		id := paint(profile, fmt.Sprintf("[%s]", n.ID()), "#6b7280", false)
		fmt.Fprintf(&sb, "%s%s %s", strings.Repeat("  ", depth), id, n.Name())
		if n.Content() != "" {
			sb.WriteString(" " + paint(profile, "~", "#34d399", false))
		}
		sb.WriteString("\n")
		return nil
	})
	return sb.String()
}

func paint(profile termenv.Profile, s, color string, bold bool) string {
	if profile == termenv.Ascii {
		return s
	}
	st := termenv.String(s)
	if color != "" {
		st = st.Foreground(profile.Color(color))
	}
	if bold {
		st = st.Bold()
	}
	return st.String()
}
