package main

import (
	"context"
	"errors"

	"github.com/kmol-editor/kmol"
	"github.com/kmol-editor/kmol/internal/cli"
	"github.com/kmol-editor/kmol/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell [project...]",
	Short: "Start an interactive editing session",
	Long: `Starts a line-oriented session. Type 'help' for the command list. Leaving
the shell is refused while a project has unsaved changes; use 'quit!' to
discard them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ed, _, logger, err := newEditor(cmd)
		if err != nil {
			return err
		}

		opts := []cli.ShellOption{
			cli.WithShellLogger(logger),
			cli.WithProfile(colorProfile()),
		}
		if isTerminal() {
			opts = append(opts,
				cli.WithBanner(kmol.Version),
				cli.WithPrompt("kmol> "),
				cli.WithRenderer(tui.NewRenderer()),
			)
		}
		sh := cli.NewShell(ed, cmd.InOrStdin(), cmd.OutOrStdout(), opts...)

		ctx := cmd.Context()
		for _, path := range args {
			sh.Exec(ctx, "open "+path)
		}

		err = sh.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
