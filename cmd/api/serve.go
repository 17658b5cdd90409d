package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fraud-ledger/internal/app"
	"fraud-ledger/internal/application/pipeline"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background pipeline worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return c.withApp(ctx, func(a *app.App) error {
				return serve(ctx, c, a)
			})
		},
	}
}

func serve(ctx context.Context, c *cli, a *app.App) error {
	worker := pipeline.NewWorker(a.Pipeline, c.cfg.Projection.PollInterval, c.logger)
	worker.Start(ctx)
	defer worker.Stop()

	server := &http.Server{
		Addr:         c.cfg.Server.Addr(),
		Handler:      a.Router(),
		ReadTimeout:  c.cfg.Server.ReadTimeout,
		WriteTimeout: c.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("HTTP server listening", zap.String("addr", server.Addr), zap.String("version", app.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	c.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	c.logger.Info("server stopped")
	return nil
}
