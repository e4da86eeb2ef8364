// Package tui holds terminal rendering helpers.
package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the kmol banner and version line to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _                    _ ", "#34d399"},
		{"| | ___ __ ___   ___ | |", "#2dd4bf"},
		{"| |/ / '_ ` _ \\ / _ \\| |", "#22d3ee"},
		{"|   <| | | | | | (_) | |", "#38bdf8"},
		{"|_|\\_\\_| |_| |_|\\___/|_|", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("kmol "+version+" - node-based project editor").Faint())
	fmt.Fprintln(w, termenv.String("Scripts run with your privileges. Only run projects you trust.").Faint())
	fmt.Fprintln(w)
}
