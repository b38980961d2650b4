package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-listings/internal/httpapi"
	"github.com/goliatone/go-listings/internal/telemetry"
)

var (
	ensureSchema    bool
	shutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&ensureSchema, "ensure-schema", false, "Create tables and indexes before serving")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: a.cfg.AppName,
		Endpoint:    a.cfg.Telemetry.Endpoint,
	})
	if err != nil {
		return err
	}

	if ensureSchema {
		if err := a.container.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	go func() {
		if err := a.container.RunListener(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("invalidation listener stopped", "error", err)
		}
	}()

	server := httpapi.NewServer(":"+a.cfg.Port, a.container.Handler(), a.logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if stopErr := server.Stop(shutdownCtx); stopErr != nil {
		a.logger.Error("http server shutdown failed", "error", stopErr)
	}
	if traceErr := shutdownTracing(shutdownCtx); traceErr != nil {
		a.logger.Error("tracer shutdown failed", "error", traceErr)
	}
	return err
}
