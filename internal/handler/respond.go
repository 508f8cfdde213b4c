// Package handler implements the HTTP endpoints of the user API.  Every
// response carries the same envelope: a `success` boolean plus `message`,
// `error`, `errors` or payload keys as applicable.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// renderSuccess writes a 200 envelope, merging data and an optional message.
func renderSuccess(c echo.Context, data echo.Map, message string) error {
	return renderEnvelope(c, http.StatusOK, data, message)
}

// renderCreated writes a 201 envelope.
func renderCreated(c echo.Context, data echo.Map, message string) error {
	return renderEnvelope(c, http.StatusCreated, data, message)
}

func renderEnvelope(c echo.Context, status int, data echo.Map, message string) error {
	body := echo.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range data {
		body[k] = v
	}
	return c.JSON(status, body)
}

// renderError writes a single-error envelope with the given status.
func renderError(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": msg})
}

// renderValidationErrors reports the full list of violated constraints as a
// 422 so clients can surface every problem at once.
func renderValidationErrors(c echo.Context, errs []string) error {
	return c.JSON(http.StatusUnprocessableEntity, echo.Map{
		"success": false,
		"errors":  errs,
	})
}

func renderUnauthorized(c echo.Context) error {
	return renderError(c, http.StatusUnauthorized, "Unauthorized")
}

func renderForbidden(c echo.Context) error {
	return renderError(c, http.StatusForbidden, "Forbidden")
}

func renderNotFound(c echo.Context) error {
	return renderError(c, http.StatusNotFound, "User not found")
}

func renderInternal(c echo.Context, msg string) error {
	return renderError(c, http.StatusInternalServerError, msg)
}
