package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Register mounts the lending routes. mutating wraps the value-moving POSTs.
func Register(e *echo.Echo, h *Handler, lh *LoanHandler, mutating ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health)

	e.POST("/loans", lh.RequestLoan, mutating...)
	e.POST("/loans/:loan_id/fund", lh.FundLoan, mutating...)
	e.POST("/loans/:loan_id/repay", lh.RepayLoan, mutating...)
	e.POST("/loans/:loan_id/claim", lh.ClaimCollateral, mutating...)

	e.GET("/loans", lh.ListLoans)
	e.GET("/loans/:loan_id", lh.GetLoan)
	e.GET("/loans/:loan_id/quote", lh.QuoteLoan)
	e.GET("/loans/:loan_id/transfers", lh.ListTransfers)
	e.GET("/loans/:loan_id/events", lh.ListEvents)
	e.GET("/accounts/:address/balance", lh.Balance)
}
