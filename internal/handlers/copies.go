// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"codeberg.org/oliverandrich/cloudcopy/internal/services/auth"
	"codeberg.org/oliverandrich/cloudcopy/internal/services/copies"
	"github.com/labstack/echo/v4"
)

type shareCopyRequest struct {
	Token    string `json:"token" form:"token"`
	Contents string `json:"contents" form:"contents"`
}

type newestCopyResponse struct {
	CurrentCopy string `json:"current_copy"`
	Timestamp   string `json:"timestamp"`
}

// ShareCopy handles POST /share-copy.
func (h *Handlers) ShareCopy(c echo.Context) error {
	var req shareCopyRequest
	if err := bind(c, &req); err != nil {
		return respondLiteral(c, literalFalse)
	}

	_, err := h.copies.Push(c.Request().Context(), req.Token, req.Contents)
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, copies.ErrEmptyContents):
		return respondLiteral(c, literalFalse)
	case err != nil:
		return err
	}

	return respondLiteral(c, literalTrue)
}

// NewestCopy handles GET /newest-copy. It answers "false" both for an
// invalid token and for an account that never shared anything.
func (h *Handlers) NewestCopy(c echo.Context) error {
	state, err := h.copies.Pull(c.Request().Context(), c.QueryParam("token"))
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, copies.ErrNoClipboard):
		return respondLiteral(c, literalFalse)
	case err != nil:
		return err
	}

	return c.JSON(http.StatusOK, newestCopyResponse{
		CurrentCopy: state.Ciphertext,
		Timestamp:   state.UpdatedAt.Format(copies.TimestampFormat),
	})
}
