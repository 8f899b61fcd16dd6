// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware holds echo middleware for bearer-token routes.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/cloudcopy/internal/models"
	"codeberg.org/oliverandrich/cloudcopy/internal/services/auth"
	"github.com/labstack/echo/v4"
)

const (
	tokenKey  = "auth_token"
	bearerKey = "auth_bearer"
)

// TokenResolver maps a bearer value to its active stored token.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*models.Token, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>",
// falling back to the token query parameter.
func BearerToken(r *http.Request) string {
	if header := r.Header.Get(echo.HeaderAuthorization); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
	}
	return r.URL.Query().Get("token")
}

// RequireToken rejects requests without an active token with 401 and the
// "invalid token" literal. On success the token is available via GetToken.
func RequireToken(resolver TokenResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bearer := BearerToken(c.Request())
			token, err := resolver.Resolve(c.Request().Context(), bearer)
			if errors.Is(err, auth.ErrInvalidToken) {
				return c.String(http.StatusUnauthorized, "invalid token")
			}
			if err != nil {
				return err
			}

			c.Set(tokenKey, token)
			c.Set(bearerKey, bearer)
			return next(c)
		}
	}
}

// GetToken returns the token resolved by RequireToken, or nil.
func GetToken(c echo.Context) *models.Token {
	if token, ok := c.Get(tokenKey).(*models.Token); ok {
		return token
	}
	return nil
}

// GetBearer returns the raw bearer value accepted by RequireToken.
func GetBearer(c echo.Context) string {
	if bearer, ok := c.Get(bearerKey).(string); ok {
		return bearer
	}
	return ""
}
