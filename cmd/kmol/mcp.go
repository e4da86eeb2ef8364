package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kmol-editor/kmol"
	"github.com/kmol-editor/kmol/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [project...]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the editor as MCP tools so AI agents can inspect and edit projects.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.

Logs always go to Stderr so they never corrupt the JSON-RPC stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ed, cfg, logger, err := newEditor(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		for _, path := range args {
			if _, err := ed.Open(ctx, path); err != nil {
				return err
			}
		}

		srv := mcp.NewServer(ed, kmol.Version, mcp.WithLogger(logger))

		transport, _ := cmd.Flags().GetString("transport")
		switch transport {
		case "stdio":
			logger.Info("Starting kmol MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			addr := cfg.Server.Listen
			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				addr = listen
			}
			logger.Info("Starting kmol MCP Server (SSE)", "address", addr)
			if err := srv.ServeSSE(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().StringP("listen", "l", "", "Address to listen on (only for SSE)")
}
