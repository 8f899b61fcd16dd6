// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/middleware"
	"codeberg.org/oliverandrich/cloudcopy/internal/sse"
	"github.com/labstack/echo/v4"
)

// Events streams copy notifications for the bearer's account.
func (h *Handlers) Events(c echo.Context) error {
	ctx := c.Request().Context()
	token := middleware.GetToken(c)
	if token == nil {
		return c.String(http.StatusUnauthorized, literalInvalidToken)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	sub := h.hub.Subscribe(token.Email)
	defer h.hub.Unsubscribe(token.Email, sub)

	slog.Debug("events_connected", "email", token.Email, "subscription", sub.ID)

	if _, err := w.Write([]byte(sse.FormatEvent(sse.EventConnected, "ok"))); err != nil {
		return nil
	}
	w.Flush()

	// Heartbeat ticker to keep connection alive through proxies
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Write([]byte(sse.Heartbeat)); err != nil {
				return nil // Client disconnected
			}
			w.Flush()
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			if _, err := w.Write([]byte(msg)); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
