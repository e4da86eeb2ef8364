package main

import (
	"fmt"
	"strings"

	"github.com/kmol-editor/kmol"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of kmol",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kmol version %s\n", strings.TrimSpace(kmol.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
