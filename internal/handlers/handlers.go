// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers implements the HTTP endpoints devices talk to.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/services/auth"
	"codeberg.org/oliverandrich/cloudcopy/internal/services/copies"
	"codeberg.org/oliverandrich/cloudcopy/internal/sse"
	"github.com/labstack/echo/v4"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	auth      *auth.Service
	copies    *copies.Service
	hub       *sse.Hub
	store     Pinger
	heartbeat time.Duration
}

// Deps are the services the handlers dispatch to.
type Deps struct {
	Auth      *auth.Service
	Copies    *copies.Service
	Hub       *sse.Hub
	Store     Pinger
	Heartbeat time.Duration
}

// New creates a new Handlers instance.
func New(deps Deps) *Handlers {
	heartbeat := deps.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Handlers{
		auth:      deps.Auth,
		copies:    deps.Copies,
		hub:       deps.Hub,
		store:     deps.Store,
		heartbeat: heartbeat,
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if h.store != nil {
		if err := h.store.Ping(c.Request().Context()); err != nil {
			slog.Error("health_check_failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
