package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/kmol-editor/kmol"
	"github.com/kmol-editor/kmol/internal/presentation/graph"
	"github.com/kmol-editor/kmol/internal/presentation/outline"
	"github.com/kmol-editor/kmol/internal/presentation/tui"
	"github.com/kmol-editor/kmol/pkg/project"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree <project>",
	Short: "Print the node tree of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProject(cmd, args[0], false, func(_ context.Context, _ *kmol.Editor, p *project.Project) error {
			fmt.Fprint(cmd.OutOrStdout(), outline.Render(p, colorProfile()))
			return nil
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <project> <id>",
	Short: "Print the content of a node",
	Long:  `Prints the content of a node. On a terminal the content is rendered as markdown unless --raw is set.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseNodeID(args[1])
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetBool("raw")
		lang, _ := cmd.Flags().GetString("lang")

		return withProject(cmd, args[0], false, func(_ context.Context, _ *kmol.Editor, p *project.Project) error {
			n, err := p.FindNode(id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !raw && isTerminal() {
				rendered, err := tui.NewRenderer()(tui.ContentMarkdown(n.Name(), n.Content(), lang))
				if err == nil {
					fmt.Fprint(out, rendered)
					return nil
				}
			}
			fmt.Fprint(out, n.Content())
			if n.Content() != "" && !strings.HasSuffix(n.Content(), "\n") {
				fmt.Fprintln(out)
			}
			return nil
		})
	},
}

var findCmd = &cobra.Command{
	Use:   "find <project> <pattern>",
	Short: "List nodes whose name path matches a glob pattern",
	Long: `Matches slash-joined name paths such as "proj/setup/install" against a
doublestar pattern, for example "proj/**/test*".`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProject(cmd, args[0], false, func(_ context.Context, _ *kmol.Editor, p *project.Project) error {
			ids, err := p.Glob(args[1])
			if err != nil {
				return err
			}
			for _, id := range ids {
				path, err := p.NodePath(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, path)
			}
			return nil
		})
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph <project>",
	Short: "Export the node tree as a Mermaid diagram",
	Long:  `Outputs a Mermaid diagram (graph TD) of the project tree. Nodes matching --highlight are styled.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern, _ := cmd.Flags().GetString("highlight")
		return withProject(cmd, args[0], false, func(_ context.Context, _ *kmol.Editor, p *project.Project) error {
			var overlay *graph.GraphOverlay
			if pattern != "" {
				ids, err := p.Glob(pattern)
				if err != nil {
					return err
				}
				overlay = &graph.GraphOverlay{Matches: ids}
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(p.Snapshot(), overlay))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(treeCmd, catCmd, findCmd, graphCmd)
	catCmd.Flags().Bool("raw", false, "Print content without markdown rendering")
	catCmd.Flags().String("lang", "", "Language used to highlight the content")
	graphCmd.Flags().String("highlight", "", "Glob pattern of nodes to highlight")
}
