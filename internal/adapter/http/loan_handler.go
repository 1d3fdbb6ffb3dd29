package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"collateral-lending/internal/usecase/lending"
	"collateral-lending/pkg/units"
)

// HeaderCallerAddress names the account a request acts for.
const HeaderCallerAddress = "Ax-Caller-Address"

// LendingService is the part of lending.Engine the HTTP layer drives.
type LendingService interface {
	Request(ctx context.Context, call lending.Call, in lending.RequestInput) (*lending.LoanDTO, error)
	Fund(ctx context.Context, call lending.Call, loanID uint64) (*lending.LoanDTO, error)
	Repay(ctx context.Context, call lending.Call, loanID uint64) (*lending.RepaymentDTO, error)
	Claim(ctx context.Context, call lending.Call, loanID uint64) (*lending.LoanDTO, error)
	Get(ctx context.Context, loanID uint64) (*lending.LoanDTO, error)
	List(ctx context.Context, offset, limit int) ([]lending.LoanDTO, error)
	Quote(ctx context.Context, loanID uint64, now time.Time) (*lending.QuoteDTO, error)
	Transfers(ctx context.Context, loanID uint64) ([]lending.TransferDTO, error)
	Events(ctx context.Context, loanID uint64) ([]lending.EventDTO, error)
	BalanceOf(ctx context.Context, addr common.Address) (*lending.BalanceDTO, error)
}

type LoanHandler struct {
	svc LendingService
	now func() time.Time
}

func NewLoanHandler(svc LendingService) *LoanHandler {
	return &LoanHandler{svc: svc, now: time.Now}
}

type requestLoanReq struct {
	Collateral      string `json:"collateral"       validate:"required,ether_positive"`
	InterestRate    uint64 `json:"interest_rate"    validate:"gte=1,lte=100"`
	// lte is math.MaxInt64 / int64(time.Second), the longest span a time.Duration holds.
	DurationSeconds int64  `json:"duration_seconds" validate:"gt=0,lte=9223372036"`
}

type valueReq struct {
	Value string `json:"value" validate:"required,ether"`
}

type claimReq struct {
	Value string `json:"value" validate:"omitempty,ether"`
}

type listResp struct {
	Loans  []lending.LoanDTO `json:"loans"`
	Offset int               `json:"offset"`
	Limit  int               `json:"limit"`
}

func (h *LoanHandler) RequestLoan(c echo.Context) error {
	caller, ok := callerFrom(c)
	if !ok {
		return nil
	}
	var req requestLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	collateral, _ := units.ParseEther(req.Collateral)

	dto, err := h.svc.Request(c.Request().Context(),
		lending.Call{Sender: caller, Value: collateral, Now: h.now()},
		lending.RequestInput{InterestRate: req.InterestRate, Duration: time.Duration(req.DurationSeconds) * time.Second},
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) FundLoan(c echo.Context) error {
	call, loanID, ok := h.valueCall(c)
	if !ok {
		return nil
	}
	dto, err := h.svc.Fund(c.Request().Context(), call, loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) RepayLoan(c echo.Context) error {
	call, loanID, ok := h.valueCall(c)
	if !ok {
		return nil
	}
	dto, err := h.svc.Repay(c.Request().Context(), call, loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ClaimCollateral(c echo.Context) error {
	loanID, ok := loanIDFrom(c)
	if !ok {
		return nil
	}
	caller, ok := callerFrom(c)
	if !ok {
		return nil
	}
	var req claimReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
		}
		if err := c.Validate(&req); err != nil {
			return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:   "validation failed",
				Details: ToFieldErrors(err),
			})
		}
	}
	call := lending.Call{Sender: caller, Now: h.now()}
	if req.Value != "" {
		call.Value, _ = units.ParseEther(req.Value)
	}
	dto, err := h.svc.Claim(c.Request().Context(), call, loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	loanID, ok := loanIDFrom(c)
	if !ok {
		return nil
	}
	dto, err := h.svc.Get(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ListLoans(c echo.Context) error {
	var offset, limit int
	if err := echo.QueryParamsBinder(c).
		Int("offset", &offset).
		Int("limit", &limit).
		BindError(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query", Reason: err.Error()})
	}
	loans, err := h.svc.List(c.Request().Context(), offset, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, listResp{Loans: loans, Offset: offset, Limit: limit})
}

// QuoteLoan prices repayment now, or at the RFC3339 instant in ?at=.
func (h *LoanHandler) QuoteLoan(c echo.Context) error {
	loanID, ok := loanIDFrom(c)
	if !ok {
		return nil
	}
	at := h.now()
	if raw := strings.TrimSpace(c.QueryParam("at")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid at query param", Reason: "must be RFC3339 with timezone"})
		}
		at = t
	}
	dto, err := h.svc.Quote(c.Request().Context(), loanID, at)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ListTransfers(c echo.Context) error {
	loanID, ok := loanIDFrom(c)
	if !ok {
		return nil
	}
	out, err := h.svc.Transfers(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) ListEvents(c echo.Context) error {
	loanID, ok := loanIDFrom(c)
	if !ok {
		return nil
	}
	out, err := h.svc.Events(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) Balance(c echo.Context) error {
	raw := c.Param("address")
	if !isAddress(raw) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid address path param"})
	}
	dto, err := h.svc.BalanceOf(c.Request().Context(), common.HexToAddress(raw))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// valueCall reads the loan id, caller and attached value shared by fund and repay.
// When ok is false the response has already been written.
func (h *LoanHandler) valueCall(c echo.Context) (lending.Call, uint64, bool) {
	loanID, ok := loanIDFrom(c)
	if !ok {
		return lending.Call{}, 0, false
	}
	caller, ok := callerFrom(c)
	if !ok {
		return lending.Call{}, 0, false
	}
	var req valueReq
	if err := c.Bind(&req); err != nil {
		_ = c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
		return lending.Call{}, 0, false
	}
	if err := c.Validate(&req); err != nil {
		_ = c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
		return lending.Call{}, 0, false
	}
	value, _ := units.ParseEther(req.Value)
	return lending.Call{Sender: caller, Value: value, Now: h.now()}, loanID, true
}

func loanIDFrom(c echo.Context) (uint64, bool) {
	raw := c.Param("loan_id")
	if raw == "" {
		_ = c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		_ = c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id path param"})
		return 0, false
	}
	return id, true
}

func callerFrom(c echo.Context) (common.Address, bool) {
	raw := strings.TrimSpace(c.Request().Header.Get(HeaderCallerAddress))
	if raw == "" {
		_ = c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing " + HeaderCallerAddress})
		return common.Address{}, false
	}
	if !isAddress(raw) {
		_ = c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + HeaderCallerAddress})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// isAddress requires the 0x prefix; common.IsHexAddress alone accepts bare hex.
func isAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
