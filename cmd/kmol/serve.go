package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kmol-editor/kmol"
	"github.com/kmol-editor/kmol/internal/cli"
	kmolhttp "github.com/kmol-editor/kmol/pkg/adapters/http"
	"github.com/kmol-editor/kmol/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [project...]",
	Short: "Start the HTTP JSON API",
	Long: `Serves the editor over HTTP for web front ends, with Prometheus metrics on
/metrics and Server-Sent Events on /events. Projects given as arguments are
opened at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		metrics := observability.NewMetrics()
		streams := kmolhttp.NewStreamManager(logger)
		ed, err := cli.NewEditor(cfg, logger, metrics.Hooks(), streams.Hooks())
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		for _, path := range args {
			if _, err := ed.Open(ctx, path); err != nil {
				return err
			}
		}

		addr := cfg.Server.Listen
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			addr = listen
		}

		srv := &http.Server{
			Addr: addr,
			Handler: kmolhttp.NewHandler(ed,
				kmolhttp.WithStreams(streams),
				kmolhttp.WithMetrics(metrics.Handler()),
				kmolhttp.WithVersion(kmol.Version),
				kmolhttp.WithLogger(logger),
			),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("kmol server listening", "address", addr)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown did not complete", "error", err)
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
			if dirty := ed.DirtyPaths(); len(dirty) > 0 {
				logger.Warn("unsaved changes discarded", "paths", dirty)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (overrides server.listen)")
}
