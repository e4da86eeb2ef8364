package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kmol-editor/kmol"
	"github.com/kmol-editor/kmol/internal/cli"
	"github.com/kmol-editor/kmol/internal/config"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/project"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "kmol",
	Short: "kmol is a node-based project editor",
	Long: `kmol edits projects made of a tree of named nodes, each holding text content
that can be executed as a script. Scripts run with your privileges: only run
projects you trust.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx := cli.NewSignalContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	ctx.Cancel()
	if code := cli.Interrupted(os.Stderr, ctx.Signal()); code != 0 {
		os.Exit(code)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the kmol configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// setup loads the configuration and builds the logger shared by every command.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	debug, _ := cmd.Flags().GetBool("debug")
	logger, err := cli.NewLogger(cfg.Log, debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newEditor builds an Editor from the command's configuration.
func newEditor(cmd *cobra.Command, extra ...domain.LifecycleHooks) (*kmol.Editor, *config.Config, *slog.Logger, error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	ed, err := cli.NewEditor(cfg, logger, extra...)
	if err != nil {
		return nil, nil, nil, err
	}
	return ed, cfg, logger, nil
}

// withProject opens path, runs fn and, when save is set, writes the project
// back if fn changed it.
func withProject(cmd *cobra.Command, path string, save bool, fn func(ctx context.Context, ed *kmol.Editor, p *project.Project) error) error {
	ed, _, _, err := newEditor(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	p, err := ed.Open(ctx, path)
	if err != nil {
		return err
	}
	if err := fn(ctx, ed, p); err != nil {
		return err
	}
	if save && p.Dirty() {
		return ed.Save(ctx, p.Path())
	}
	return nil
}

func parseNodeID(s string) (domain.NodeID, error) {
	return domain.ParseNodeID(s)
}

// isTerminal reports whether stdout is an interactive terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func colorProfile() termenv.Profile {
	if !isTerminal() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}
