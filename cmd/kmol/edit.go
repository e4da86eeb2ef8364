package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kmol-editor/kmol"
	"github.com/kmol-editor/kmol/pkg/project"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <project> <parent-id> [name]",
	Short: "Append a child node and print its id",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, err := parseNodeID(args[1])
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 3 {
			name = args[2]
		}
		return withProject(cmd, args[0], true, func(ctx context.Context, ed *kmol.Editor, p *project.Project) error {
			id, err := ed.AddChild(ctx, p.Path(), parent, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <project> <id>",
	Short: "Delete a node and its subtree",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseNodeID(args[1])
		if err != nil {
			return err
		}
		return withProject(cmd, args[0], true, func(ctx context.Context, ed *kmol.Editor, p *project.Project) error {
			return ed.DeleteNode(ctx, p.Path(), id)
		})
	},
}

var cloneCmd = &cobra.Command{
	Use:   "clone <project> <id>",
	Short: "Copy a node and its subtree next to the original and print the new id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseNodeID(args[1])
		if err != nil {
			return err
		}
		return withProject(cmd, args[0], true, func(ctx context.Context, ed *kmol.Editor, p *project.Project) error {
			clone, err := ed.CloneNode(ctx, p.Path(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), clone)
			return nil
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <project> <id> [content]",
	Short: "Replace the content of a node",
	Long: `Replaces the content of a node with the given argument, the file named by
--file, or standard input when neither is given.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseNodeID(args[1])
		if err != nil {
			return err
		}
		content, err := readContent(cmd, args[2:])
		if err != nil {
			return err
		}
		return withProject(cmd, args[0], true, func(ctx context.Context, ed *kmol.Editor, p *project.Project) error {
			return ed.SetContent(ctx, p.Path(), id, content)
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <project> <id> <name>",
	Short: "Rename a node",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseNodeID(args[1])
		if err != nil {
			return err
		}
		return withProject(cmd, args[0], true, func(ctx context.Context, ed *kmol.Editor, p *project.Project) error {
			return ed.Rename(ctx, p.Path(), id, args[2])
		})
	},
}

func readContent(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("error reading %s: %w", file, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(addCmd, rmCmd, cloneCmd, setCmd, renameCmd)
	setCmd.Flags().StringP("file", "f", "", "Read the content from a file")
}
