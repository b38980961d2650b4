package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/goliatone/go-listings/internal/config"
	"github.com/goliatone/go-listings/internal/logging"
	"github.com/goliatone/go-listings/pkg/di"
)

// app holds what every subcommand needs.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	container *di.Container
	closeLog  func() error
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: os.Stderr,
		Fluent: logging.FluentOptions{
			Enabled:   cfg.Log.FluentEnabled,
			Host:      cfg.Log.FluentHost,
			Port:      cfg.Log.FluentPort,
			TagPrefix: cfg.AppName,
		},
	})
	if err != nil {
		return nil, err
	}

	c, err := di.NewContainer(ctx, cfg, di.WithLogger(logger))
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, container: c, closeLog: closeLog}, nil
}

func (a *app) close() {
	if err := a.container.Close(); err != nil {
		a.logger.Error("container close failed", "error", err)
	}
	_ = a.closeLog()
}
