package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/events"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/vaultservice"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Structured JSON logger on stderr: stdout carries the MCP stdio
	// transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("watch", cfg.Vault.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Build the vault service and activate the configured vault. This
	// also runs the initial sync.
	svc := vaultservice.New(logger, cfg.Vault.RootName, cfg.Tasks.NonActionableTagList())
	if err := svc.SetActiveVault(cfg.Vault.Path, cfg.SQLite.Path); err != nil {
		return fmt.Errorf("activate vault: %w", err)
	}
	defer svc.Close()

	// Change event broker for watcher-driven notifications.
	broker := events.NewBroker(2 * time.Second)
	defer broker.Close()

	mcpSrv := mcpserver.New(svc)

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher publishing into the broker.
	if cfg.Vault.Watch {
		g.Go(func() error {
			err := index.Watch(gCtx, svc.DB(), svc.Store(), cfg.Vault.Path, logger, func(kind, path string) {
				broker.PublishPageEvent(kind, path)
			})
			if err != nil {
				logger.Error("watcher error", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Serve MCP tools on stdio.
	g.Go(func() error {
		logger.Info("MCP server starting on stdio")
		if err := mcpSrv.ServeStdio(); err != nil {
			return fmt.Errorf("mcp server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Stopped")
	return nil
}
