// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"codeberg.org/oliverandrich/cloudcopy/internal/middleware"
	"codeberg.org/oliverandrich/cloudcopy/internal/services/auth"
	"github.com/labstack/echo/v4"
)

type authenticateRequest struct {
	Token    string `json:"token" form:"token"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Authenticate handles POST /authenticate.
//
// A known token is echoed back, an unknown one yields "invalid token".
// Email and password sign up a new account or log in an existing one and
// return a fresh token; a wrong password yields "false".
func (h *Handlers) Authenticate(c echo.Context) error {
	var req authenticateRequest
	if err := bind(c, &req); err != nil {
		slog.Warn("authenticate_bad_request", "error", err)
		return respondLiteral(c, literalFalse)
	}

	token, err := h.auth.Authenticate(c.Request().Context(), auth.Credentials{
		Token:    req.Token,
		Email:    req.Email,
		Password: req.Password,
	})
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return respondLiteral(c, literalInvalidToken)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return respondLiteral(c, literalFalse)
	case err != nil:
		return err
	}

	return respondLiteral(c, token)
}

// Revoke handles POST /revoke. It invalidates the bearer token, or with
// all=true every token of the account.
func (h *Handlers) Revoke(c echo.Context) error {
	ctx := c.Request().Context()
	bearer := middleware.GetBearer(c)

	all, _ := strconv.ParseBool(c.QueryParam("all"))
	if !all {
		all, _ = strconv.ParseBool(c.FormValue("all"))
	}

	var err error
	if all {
		_, err = h.auth.RevokeAll(ctx, bearer)
	} else {
		err = h.auth.Revoke(ctx, bearer)
	}
	if errors.Is(err, auth.ErrInvalidToken) {
		return c.String(http.StatusUnauthorized, literalInvalidToken)
	}
	if err != nil {
		return err
	}

	return respondLiteral(c, literalTrue)
}
