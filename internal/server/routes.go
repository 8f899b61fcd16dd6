// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/cloudcopy/internal/config"
	"codeberg.org/oliverandrich/cloudcopy/internal/handlers"
	"codeberg.org/oliverandrich/cloudcopy/internal/middleware"
	"codeberg.org/oliverandrich/cloudcopy/internal/repository"
	"codeberg.org/oliverandrich/cloudcopy/internal/services/auth"
	"codeberg.org/oliverandrich/cloudcopy/internal/services/copies"
	"codeberg.org/oliverandrich/cloudcopy/internal/sse"
	"github.com/labstack/echo/v4"
)

// Services bundles what the router dispatches to.
type Services struct {
	Store  repository.Store
	Auth   *auth.Service
	Copies *copies.Service
	Hub    *sse.Hub
}

// NewServices wires the auth and clipboard services onto store.
// mailer may be nil.
func NewServices(cfg *config.Config, store repository.Store, mailer auth.Mailer) *Services {
	hub := sse.NewHub()
	authSvc := auth.NewService(store, &cfg.Auth, mailer)
	return &Services{
		Store:  store,
		Auth:   authSvc,
		Copies: copies.NewService(store, authSvc, hub),
		Hub:    hub,
	}
}

// NewRouter builds the echo instance with middleware and all routes.
func NewRouter(cfg *config.Config, svc *Services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, cfg, svc)

	return e
}

func setupRoutes(e *echo.Echo, cfg *config.Config, svc *Services) {
	h := handlers.New(handlers.Deps{
		Auth:      svc.Auth,
		Copies:    svc.Copies,
		Hub:       svc.Hub,
		Store:     svc.Store,
		Heartbeat: cfg.SSE.Heartbeat,
	})
	requireToken := middleware.RequireToken(svc.Auth)

	e.GET("/health", h.Health)

	e.POST("/authenticate", h.Authenticate)
	e.POST("/share-copy", h.ShareCopy)
	e.GET("/newest-copy", h.NewestCopy)

	e.POST("/revoke", h.Revoke, requireToken)
	e.GET("/events", h.Events, requireToken)
}
