package main

import (
	"context"

	"github.com/kmol-editor/kmol"
	"github.com/kmol-editor/kmol/pkg/project"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <project> <id>",
	Short: "Execute the content of a node",
	Long: `Executes the content of a node with the configured script engine and prints
its output. Script errors and timeouts are part of the output and do not fail
the command. Scripts run with your privileges: only run projects you trust.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseNodeID(args[1])
		if err != nil {
			return err
		}
		return withProject(cmd, args[0], false, func(ctx context.Context, ed *kmol.Editor, p *project.Project) error {
			return ed.Execute(ctx, p.Path(), id, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
