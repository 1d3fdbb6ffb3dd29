package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"collateral-lending/internal/domain/loan"
)

var statusByKind = []struct {
	err    error
	status int
}{
	{loan.ErrNotFound, http.StatusNotFound},
	{loan.ErrUnauthorized, http.StatusForbidden},
	{loan.ErrInvalidInput, http.StatusUnprocessableEntity},
	{loan.ErrInvalidState, http.StatusConflict},
	{loan.ErrValueMismatch, http.StatusBadRequest},
	{loan.ErrNotDue, http.StatusConflict},
	{loan.ErrTransferFailed, http.StatusBadGateway},
}

// StatusFor maps a rejection kind to its HTTP status; anything else is a 500.
func StatusFor(err error) int {
	for _, k := range statusByKind {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Map domain errors → HTTP codes
func writeError(c echo.Context, err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("lending: %v", err)
		return c.JSON(status, ErrorResponse{Error: "internal"})
	}
	return c.JSON(status, ErrorResponse{Error: loan.Kind(err), Reason: err.Error()})
}
