package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(0),
	)

	return func(markdown string) (string, error) {
		if err != nil {
			return markdown, err
		}
		return r.Render(markdown)
	}
}

// ContentMarkdown wraps node content in a fenced block titled with the node name.
func ContentMarkdown(name, content, lang string) string {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return fmt.Sprintf("### %s\n\n%s%s\n%s%s\n", name, fence, lang, content, fence)
}
