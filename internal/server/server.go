// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server runs the CloudCopy HTTP service.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/config"
	"codeberg.org/oliverandrich/cloudcopy/internal/database"
	"codeberg.org/oliverandrich/cloudcopy/internal/logging"
	"codeberg.org/oliverandrich/cloudcopy/internal/repository"
	"codeberg.org/oliverandrich/cloudcopy/internal/services/auth"
	"codeberg.org/oliverandrich/cloudcopy/internal/services/email"
	"codeberg.org/oliverandrich/cloudcopy/internal/sse"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.Setup(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"store", cfg.Store.Backend,
	)

	store, closer, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			slog.Error("failed to close store", "error", closeErr)
		}
	}()

	var mailer auth.Mailer
	if cfg.SMTP.Enabled() {
		mailSvc, mailErr := email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
		if mailErr != nil {
			return fmt.Errorf("failed to configure mail: %w", mailErr)
		}
		mailer = mailSvc
		slog.Info("welcome mail enabled", "smtp_host", cfg.SMTP.Host)
	}

	svc := NewServices(cfg, store, mailer)
	e := NewRouter(cfg, svc)

	return startWithGracefulShutdown(ctx, e, cfg, svc.Hub)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the configured storage backend. The returned closer
// releases its connections.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.StoreSQL:
		db, err := database.Open(cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return repository.New(db), db, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return repository.NewRedis(client, ""), client, nil

	case config.StoreMemory:
		slog.Warn("using in-memory store, state is lost on restart")
		return repository.NewMemory(), nopCloser{}, nil
	}

	return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownStore, cfg.Store.Backend)
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config, hub *sse.Hub) error {
	// Channel for server errors
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Event streams never end on their own; close them so Shutdown can drain.
	hub.Close()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
