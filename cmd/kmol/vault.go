package main

import (
	"fmt"
	"io/fs"

	"github.com/kmol-editor/kmol/internal/cli"
	"github.com/kmol-editor/kmol/pkg/adapters/loam"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/project"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <path> <dir>",
	Short: "Export a project to a markdown vault",
	Long: `Writes every node as a markdown document under dir. The node content is
the document body; name and position are kept in the frontmatter.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ed, _, _, err := newEditor(cmd)
		if err != nil {
			return err
		}
		p, err := ed.Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		repo, err := loam.Open(args[1])
		if err != nil {
			return err
		}
		if err := loam.Export(cmd.Context(), repo, p.Snapshot()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d nodes to %s\n", p.Len(), args[1])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <dir> <path>",
	Short: "Create a project from a markdown vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		codec, err := cli.NewCodec(cfg.Project, logger)
		if err != nil {
			return err
		}
		key, err := project.Key(cli.EnsureExt(args[1]))
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if !cfg.Project.Overwrite {
			exists, err := codec.Exists(ctx, key)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s: %w", domain.ErrIO, key, fs.ErrExist)
			}
		}

		repo, err := loam.Open(args[0])
		if err != nil {
			return err
		}
		tree, err := loam.Import(ctx, repo)
		if err != nil {
			return err
		}
		if err := codec.Save(ctx, key, tree); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d nodes into %s\n", tree.Len(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
