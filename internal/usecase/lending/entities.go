package lending

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"collateral-lending/internal/domain/event"
	"collateral-lending/internal/domain/loan"
	"collateral-lending/internal/domain/vault"
	"collateral-lending/pkg/units"
)

// Call is what the execution environment supplies with every operation.
type Call struct {
	Sender common.Address
	Value  *uint256.Int // attached value in wei; nil means none
	Now    time.Time
}

func (c Call) value() *uint256.Int {
	if c.Value == nil {
		return new(uint256.Int)
	}
	return c.Value
}

type RequestInput struct {
	InterestRate uint64 // percent, 1..100
	Duration     time.Duration
}

type LoanDTO struct {
	LoanID        uint64    `json:"loan_id"`
	Borrower      string    `json:"borrower"`
	Lender        string    `json:"lender,omitempty"`
	CollateralWei string    `json:"collateral_wei"`
	Collateral    string    `json:"collateral"`
	LoanAmountWei string    `json:"loan_amount_wei"`
	LoanAmount    string    `json:"loan_amount"`
	InterestRate  uint64    `json:"interest_rate"`
	DueDate       time.Time `json:"due_date"`
	IsFunded      bool      `json:"is_funded"`
	IsRepaid      bool      `json:"is_repaid"`
	RebateApplied bool      `json:"rebate_applied"`
	IsClaimed     bool      `json:"is_claimed"`
	State         string    `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
}

type QuoteDTO struct {
	LoanID        uint64    `json:"loan_id"`
	At            time.Time `json:"at"`
	PrincipalWei  string    `json:"principal_wei"`
	InterestWei   string    `json:"interest_wei"`
	RebateWei     string    `json:"rebate_wei"`
	RebateApplied bool      `json:"rebate_applied"`
	TotalDueWei   string    `json:"total_due_wei"`
	TotalDue      string    `json:"total_due"`
}

type RepaymentDTO struct {
	Loan        LoanDTO  `json:"loan"`
	Quote       QuoteDTO `json:"quote"`
	RefundedWei string   `json:"refunded_wei"`
}

type TransferDTO struct {
	TransferID string    `json:"transfer_id"`
	LoanID     uint64    `json:"loan_id"`
	Kind       string    `json:"kind"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	AmountWei  string    `json:"amount_wei"`
	At         time.Time `json:"at"`
}

type EventDTO struct {
	Seq    uint64            `json:"seq"`
	ID     string            `json:"event_id"`
	Kind   string            `json:"kind"`
	LoanID uint64            `json:"loan_id"`
	Attrs  map[string]string `json:"attrs,omitempty"`
	At     time.Time         `json:"at"`
}

// BalanceDTO is what the ledger holds for an address: value paid out to it, or for the escrow
// address the value currently locked. Attached value arrives from outside the ledger, so it is
// never debited from the sender here.
type BalanceDTO struct {
	Address    string `json:"address"`
	BalanceWei string `json:"balance_wei"`
	Balance    string `json:"balance"`
}

func toLoanDTO(l *loan.Loan) *LoanDTO {
	dto := &LoanDTO{
		LoanID:        l.ID,
		Borrower:      l.Borrower.Hex(),
		CollateralWei: l.CollateralAmount.Dec(),
		Collateral:    units.FormatEther(&l.CollateralAmount),
		LoanAmountWei: l.LoanAmount.Dec(),
		LoanAmount:    units.FormatEther(&l.LoanAmount),
		InterestRate:  l.InterestRate,
		DueDate:       l.DueDate,
		IsFunded:      l.IsFunded,
		IsRepaid:      l.IsRepaid,
		RebateApplied: l.RebateApplied,
		IsClaimed:     l.IsClaimed,
		State:         string(l.State()),
		CreatedAt:     l.CreatedAt,
	}
	if l.Lender != nil {
		dto.Lender = l.Lender.Hex()
	}
	return dto
}

func toQuoteDTO(id uint64, at time.Time, q *loan.Quote) QuoteDTO {
	return QuoteDTO{
		LoanID:        id,
		At:            at,
		PrincipalWei:  q.Principal.Dec(),
		InterestWei:   q.Interest.Dec(),
		RebateWei:     q.Rebate.Dec(),
		RebateApplied: q.RebateApplied,
		TotalDueWei:   q.TotalDue.Dec(),
		TotalDue:      units.FormatEther(&q.TotalDue),
	}
}

func toTransferDTO(t *vault.Transfer) TransferDTO {
	return TransferDTO{
		TransferID: t.ID,
		LoanID:     t.LoanID,
		Kind:       string(t.Kind),
		From:       t.From.Hex(),
		To:         t.To.Hex(),
		AmountWei:  t.Amount.Dec(),
		At:         t.At,
	}
}

func toEventDTO(e *event.Event) EventDTO {
	return EventDTO{Seq: e.Seq, ID: e.ID, Kind: string(e.Kind), LoanID: e.LoanID, Attrs: e.Attrs, At: e.At}
}

func formatBool(b bool) string { return strconv.FormatBool(b) }
