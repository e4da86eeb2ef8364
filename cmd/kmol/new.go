package main

import (
	"fmt"

	"github.com/kmol-editor/kmol/internal/cli"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new <path>",
	Short: "Create a new project file",
	Long: `Creates a project with a single root node named after the file.
The .kmol extension is added when the path has none. Existing files are kept
unless project.overwrite is enabled.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ed, _, _, err := newEditor(cmd)
		if err != nil {
			return err
		}
		p, err := ed.New(cmd.Context(), cli.EnsureExt(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", p.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
}
