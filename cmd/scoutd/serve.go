package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/courtvision/scoutgraph/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the scouting agent and serves the streaming chat API, session queries and report downloads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			s.Server.Addr = addr
		}
		logger := s.NewLogger(os.Stderr)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, s, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Warn("close failed", "error", err)
			}
		}()
		a.refresh(ctx)

		opts := []server.Option{
			server.WithLogger(logger),
			server.WithRegistry(a.registry),
			server.WithDebugErrors(s.Server.DebugErrors),
			server.WithAllowedOrigins(s.Server.AllowedOrigins...),
			server.WithLocalReports(a.local),
			server.WithPlayerSearch(a.searcher, 0),
		}
		if a.remote != nil {
			opts = append(opts, server.WithRemoteReports(a.remote))
		}

		srv := &http.Server{
			Addr:              s.Server.Addr,
			Handler:           server.New(a.service, opts...).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server",
				"addr", srv.Addr,
				"checkpoint_backend", s.Checkpoint.Backend,
				"report_backend", s.Reports.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server: %w", err)
		case <-ctx.Done():
			logger.Info("shutting down", "timeout", s.Server.ShutdownTimeout)
		}

		// Streams in flight get until the deadline to finish their turn.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown incomplete", "error", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("close server: %w", err)
			}
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
