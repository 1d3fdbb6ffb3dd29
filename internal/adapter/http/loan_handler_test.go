package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"collateral-lending/internal/adapter/repository/memory"
	"collateral-lending/internal/domain/loan"
	"collateral-lending/internal/domain/uow"
	"collateral-lending/internal/testutil/loanmock"
	"collateral-lending/internal/testutil/uowmock"
	"collateral-lending/internal/usecase/lending"
)

// -------- helpers --------

const (
	borrowerHex = "0x1111111111111111111111111111111111111111"
	lenderHex   = "0x2222222222222222222222222222222222222222"
	escrowHex   = "0x00000000000000000000000000000000000e5c70"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newEchoWithValidator() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func mustJSON(v any) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

// fixture serves requests through the real routes over an in-memory ledger,
// with the handler clock pinned to *now.
type fixture struct {
	e   *echo.Echo
	now *time.Time
}

func newFixture() *fixture {
	now := t0
	engine := lending.NewEngine(memory.NewUoW(memory.NewStore()), common.HexToAddress(escrowHex))
	lh := NewLoanHandler(engine)
	lh.now = func() time.Time { return now }

	e := newEchoWithValidator()
	Register(e, NewHandler(), lh)
	return &fixture{e: e, now: &now}
}

func (f *fixture) do(method, path, caller string, body any) *httptest.ResponseRecorder {
	var req *stdhttp.Request
	if body != nil {
		req = httptest.NewRequest(method, path, mustJSON(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if caller != "" {
		req.Header.Set(HeaderCallerAddress, caller)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("bad json: %v; raw=%s", err, rec.Body.String())
	}
	return v
}

func (f *fixture) requestLoan(t *testing.T) lending.LoanDTO {
	t.Helper()
	rec := f.do(stdhttp.MethodPost, "/loans", borrowerHex, map[string]any{
		"collateral":       "10",
		"interest_rate":    10,
		"duration_seconds": int64((15 * 24 * time.Hour).Seconds()),
	})
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("request: status = %d, body=%s", rec.Code, rec.Body.String())
	}
	return decode[lending.LoanDTO](t, rec)
}

func (f *fixture) fundLoan(t *testing.T, id string) lending.LoanDTO {
	t.Helper()
	rec := f.do(stdhttp.MethodPost, "/loans/"+id+"/fund", lenderHex, map[string]any{"value": "5"})
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("fund: status = %d, body=%s", rec.Code, rec.Body.String())
	}
	return decode[lending.LoanDTO](t, rec)
}

// -------- tests --------

func TestRequestLoan_Success(t *testing.T) {
	f := newFixture()
	got := f.requestLoan(t)

	if got.LoanID != 0 || got.Borrower != common.HexToAddress(borrowerHex).Hex() {
		t.Fatalf("unexpected dto: %+v", got)
	}
	if got.LoanAmount != "5" || got.Collateral != "10" {
		t.Fatalf("amounts = %s/%s, want 5/10", got.LoanAmount, got.Collateral)
	}
	if got.State != string(loan.StateRequested) {
		t.Fatalf("state = %s, want requested", got.State)
	}
	if !got.DueDate.Equal(t0.Add(15 * 24 * time.Hour)) {
		t.Fatalf("due = %v", got.DueDate)
	}
}

func TestRequestLoan_MissingCaller(t *testing.T) {
	f := newFixture()
	rec := f.do(stdhttp.MethodPost, "/loans", "", map[string]any{"collateral": "1", "interest_rate": 1, "duration_seconds": 60})
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if er := decode[ErrorResponse](t, rec); er.Error != "missing "+HeaderCallerAddress {
		t.Fatalf("error = %q", er.Error)
	}

	rec = f.do(stdhttp.MethodPost, "/loans", "1111111111111111111111111111111111111111", map[string]any{"collateral": "1"})
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bare hex caller: status = %d, want 400", rec.Code)
	}
}

func TestRequestLoan_BindError(t *testing.T) {
	e := newEchoWithValidator()
	h := NewLoanHandler(&lending.Engine{})

	req := httptest.NewRequest(stdhttp.MethodPost, "/loans", strings.NewReader(`{"collateral":`)) // broken JSON
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(HeaderCallerAddress, borrowerHex)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.RequestLoan(c); err != nil {
		t.Fatalf("RequestLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &er)
	if er.Error != "invalid body" {
		t.Fatalf("error = %q, want %q", er.Error, "invalid body")
	}
}

func TestRequestLoan_ValidationError(t *testing.T) {
	f := newFixture()
	rec := f.do(stdhttp.MethodPost, "/loans", borrowerHex, map[string]any{
		"collateral":       "0",
		"interest_rate":    101,
		"duration_seconds": 0,
	})
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	er := decode[ErrorResponse](t, rec)
	if er.Error != "validation failed" {
		t.Fatalf("error = %q, want %q", er.Error, "validation failed")
	}
	if !containsFieldMsg(er.Details, "Collateral", "greater than zero") {
		t.Fatalf("missing collateral detail: %+v", er.Details)
	}
	if !containsFieldMsg(er.Details, "InterestRate", "less than or equal to 100") {
		t.Fatalf("missing rate detail: %+v", er.Details)
	}
	if !containsFieldMsg(er.Details, "DurationSeconds", "greater than 0") {
		t.Fatalf("missing duration detail: %+v", er.Details)
	}
}

func TestRequestLoan_DurationBeyondTimeDurationRange(t *testing.T) {
	f := newFixture()

	// 18446744074s wraps to ~0.29s when multiplied by time.Second.
	rec := f.do(stdhttp.MethodPost, "/loans", borrowerHex, map[string]any{
		"collateral":       "10",
		"interest_rate":    10,
		"duration_seconds": int64(18446744074),
	})
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body=%s", rec.Code, rec.Body.String())
	}
	if er := decode[ErrorResponse](t, rec); !containsFieldMsg(er.Details, "DurationSeconds", "less than or equal to 9223372036") {
		t.Fatalf("missing duration detail: %+v", er.Details)
	}
	if rec := f.do(stdhttp.MethodGet, "/loans/0", "", nil); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("rejected request created a loan: status = %d", rec.Code)
	}

	rec = f.do(stdhttp.MethodPost, "/loans", borrowerHex, map[string]any{
		"collateral":       "10",
		"interest_rate":    10,
		"duration_seconds": int64(9223372036),
	})
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("longest duration: status = %d, body=%s", rec.Code, rec.Body.String())
	}
	got := decode[lending.LoanDTO](t, rec)
	if want := t0.Add(9223372036 * time.Second); !got.DueDate.Equal(want) {
		t.Fatalf("due = %v, want %v", got.DueDate, want)
	}
	if !got.DueDate.After(t0.AddDate(290, 0, 0)) {
		t.Fatalf("due date wrapped: %v", got.DueDate)
	}
}

func TestFundLoan_ValueMismatchAndSuccess(t *testing.T) {
	f := newFixture()
	f.requestLoan(t)

	rec := f.do(stdhttp.MethodPost, "/loans/0/fund", lenderHex, map[string]any{"value": "4.999"})
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if er := decode[ErrorResponse](t, rec); er.Error != "value_mismatch" || er.Reason == "" {
		t.Fatalf("unexpected error body: %+v", er)
	}

	got := f.fundLoan(t, "0")
	if !got.IsFunded || got.Lender != common.HexToAddress(lenderHex).Hex() {
		t.Fatalf("unexpected dto: %+v", got)
	}

	rec = f.do(stdhttp.MethodPost, "/loans/0/fund", lenderHex, map[string]any{"value": "5"})
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("second fund: status = %d, want 409", rec.Code)
	}
}

func TestFundLoan_NotFound(t *testing.T) {
	f := newFixture()
	rec := f.do(stdhttp.MethodPost, "/loans/99/fund", lenderHex, map[string]any{"value": "5"})
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if er := decode[ErrorResponse](t, rec); er.Error != "not_found" {
		t.Fatalf("error = %q, want not_found", er.Error)
	}
}

func TestFundLoan_BadPathParam(t *testing.T) {
	f := newFixture()
	rec := f.do(stdhttp.MethodPost, "/loans/abc/fund", lenderHex, map[string]any{"value": "5"})
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if er := decode[ErrorResponse](t, rec); er.Error != "invalid loan_id path param" {
		t.Fatalf("error = %q", er.Error)
	}
}

func TestRepayLoan_EarlyRepayment(t *testing.T) {
	f := newFixture()
	dto := f.requestLoan(t)
	f.fundLoan(t, "0")
	*f.now = dto.DueDate.Add(-48 * time.Hour)

	rec := f.do(stdhttp.MethodPost, "/loans/0/repay", borrowerHex, map[string]any{"value": "5.45"})
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	got := decode[lending.RepaymentDTO](t, rec)
	if !got.Loan.IsRepaid || !got.Quote.RebateApplied || got.Quote.TotalDue != "5.45" {
		t.Fatalf("unexpected repayment: %+v", got)
	}

	rec = f.do(stdhttp.MethodPost, "/loans/0/repay", borrowerHex, map[string]any{"value": "5.45"})
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("second repay: status = %d, want 409", rec.Code)
	}
}

func TestRepayLoan_WrongCaller(t *testing.T) {
	f := newFixture()
	f.requestLoan(t)
	f.fundLoan(t, "0")

	rec := f.do(stdhttp.MethodPost, "/loans/0/repay", lenderHex, map[string]any{"value": "6"})
	if rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestClaimCollateral(t *testing.T) {
	f := newFixture()
	dto := f.requestLoan(t)
	f.fundLoan(t, "0")

	rec := f.do(stdhttp.MethodPost, "/loans/0/claim", lenderHex, nil)
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("early claim: status = %d, want 409", rec.Code)
	}
	if er := decode[ErrorResponse](t, rec); er.Error != "not_due" {
		t.Fatalf("error = %q, want not_due", er.Error)
	}

	*f.now = dto.DueDate
	rec = f.do(stdhttp.MethodPost, "/loans/0/claim", lenderHex, map[string]any{"value": "1"})
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("claim with value: status = %d, want 422", rec.Code)
	}

	rec = f.do(stdhttp.MethodPost, "/loans/0/claim", lenderHex, nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("claim: status = %d, body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[lending.LoanDTO](t, rec); !got.IsClaimed {
		t.Fatalf("unexpected dto: %+v", got)
	}

	rec = f.do(stdhttp.MethodGet, "/accounts/"+lenderHex+"/balance", "", nil)
	if got := decode[lending.BalanceDTO](t, rec); got.Balance != "10" {
		t.Fatalf("lender balance = %s, want 10", got.Balance)
	}
}

func TestGetLoan_SuccessAndNotFound(t *testing.T) {
	f := newFixture()
	f.requestLoan(t)

	rec := f.do(stdhttp.MethodGet, "/loans/0", "", nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode[lending.LoanDTO](t, rec); got.LoanID != 0 {
		t.Fatalf("loan_id = %d", got.LoanID)
	}

	rec = f.do(stdhttp.MethodGet, "/loans/7", "", nil)
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListLoans(t *testing.T) {
	f := newFixture()
	f.requestLoan(t)
	f.requestLoan(t)

	rec := f.do(stdhttp.MethodGet, "/loans?offset=1&limit=10", "", nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decode[listResp](t, rec)
	if len(got.Loans) != 1 || got.Loans[0].LoanID != 1 {
		t.Fatalf("unexpected page: %+v", got)
	}

	rec = f.do(stdhttp.MethodGet, "/loans?limit=abc", "", nil)
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bad limit: status = %d, want 400", rec.Code)
	}
}

func TestQuoteLoan(t *testing.T) {
	f := newFixture()
	dto := f.requestLoan(t)

	at := dto.DueDate.Add(-48 * time.Hour).Format(time.RFC3339)
	rec := f.do(stdhttp.MethodGet, "/loans/0/quote?at="+at, "", nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[lending.QuoteDTO](t, rec); got.TotalDue != "5.45" || !got.RebateApplied {
		t.Fatalf("unexpected quote: %+v", got)
	}

	rec = f.do(stdhttp.MethodGet, "/loans/0/quote?at=yesterday", "", nil)
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bad at: status = %d, want 400", rec.Code)
	}
}

func TestTransfersAndEvents(t *testing.T) {
	f := newFixture()
	f.requestLoan(t)
	f.fundLoan(t, "0")

	rec := f.do(stdhttp.MethodGet, "/loans/0/transfers", "", nil)
	transfers := decode[[]lending.TransferDTO](t, rec)
	if len(transfers) != 3 || transfers[2].Kind != "disbursement" {
		t.Fatalf("unexpected transfers: %+v", transfers)
	}

	rec = f.do(stdhttp.MethodGet, "/loans/0/events", "", nil)
	events := decode[[]lending.EventDTO](t, rec)
	if len(events) != 2 || events[1].Kind != "loan.funded" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestBalance_InvalidAddress(t *testing.T) {
	f := newFixture()
	rec := f.do(stdhttp.MethodGet, "/accounts/nope/balance", "", nil)
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInternalError_IsOpaque(t *testing.T) {
	loans := &loanmock.Repo{
		GetByIDFn: func(context.Context, uint64) (*loan.Loan, error) {
			return nil, errors.New("dial tcp 10.0.0.3:3306: connection refused")
		},
	}
	engine := lending.NewEngine(uowmock.Passthrough(uow.Repos{Loans: loans}), common.HexToAddress(escrowHex))
	e := newEchoWithValidator()
	Register(e, NewHandler(), NewLoanHandler(engine))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/loans/0", nil))
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if er := decode[ErrorResponse](t, rec); er.Error != "internal" || er.Reason != "" {
		t.Fatalf("internal details leaked: %+v", er)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		loan.ErrNotFound:       stdhttp.StatusNotFound,
		loan.ErrUnauthorized:   stdhttp.StatusForbidden,
		loan.ErrInvalidInput:   stdhttp.StatusUnprocessableEntity,
		loan.ErrInvalidState:   stdhttp.StatusConflict,
		loan.ErrValueMismatch:  stdhttp.StatusBadRequest,
		loan.ErrNotDue:         stdhttp.StatusConflict,
		loan.ErrTransferFailed: stdhttp.StatusBadGateway,
		errors.New("other"):    stdhttp.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := StatusFor(err); got != want {
			t.Fatalf("StatusFor(%v) = %d, want %d", err, got, want)
		}
	}
}
