// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Protocol literals. All of them go out as text/plain with status 200.
const (
	literalTrue         = "true"
	literalFalse        = "false"
	literalInvalidToken = "invalid token"
)

func respondLiteral(c echo.Context, literal string) error {
	return c.String(http.StatusOK, literal)
}

// bind decodes a JSON or form body into dst. Bodies sent without a
// content type are read as JSON.
func bind(c echo.Context, dst any) error {
	req := c.Request()
	if req.Header.Get(echo.HeaderContentType) == "" && req.ContentLength != 0 {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return c.Bind(dst)
}
