package sqlstore

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"collateral-lending/internal/domain/event"
	"collateral-lending/internal/domain/loan"
	"collateral-lending/internal/domain/vault"
)

// Records keep amounts as base-10 wei strings and addresses as 0x hex so the same
// schema migrates on MySQL and SQLite.

type loanRecord struct {
	ID            uint64    `gorm:"primaryKey;column:id;autoIncrement"`
	LoanID        uint64    `gorm:"column:loan_id;not null;uniqueIndex:ux_loans_loan_id"`
	Borrower      string    `gorm:"column:borrower;size:42;not null;index:idx_loans_borrower"`
	Lender        *string   `gorm:"column:lender;size:42;index:idx_loans_lender"`
	CollateralWei string    `gorm:"column:collateral_wei;size:78;not null"`
	LoanAmountWei string    `gorm:"column:loan_amount_wei;size:78;not null"`
	InterestRate  uint64    `gorm:"column:interest_rate;not null"`
	DueDate       time.Time `gorm:"column:due_date;not null"`
	IsFunded      bool      `gorm:"column:is_funded;not null;default:false"`
	IsRepaid      bool      `gorm:"column:is_repaid;not null;default:false"`
	RebateApplied bool      `gorm:"column:rebate_applied;not null;default:false"`
	IsClaimed     bool      `gorm:"column:is_claimed;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (loanRecord) TableName() string { return "loans" }

type sequenceRecord struct {
	Name string `gorm:"primaryKey;column:name;size:32"`
	Next uint64 `gorm:"column:next_value;not null"`
}

func (sequenceRecord) TableName() string { return "ledger_sequences" }

type balanceRecord struct {
	Address    string    `gorm:"primaryKey;column:address;size:42"`
	BalanceWei string    `gorm:"column:balance_wei;size:78;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (balanceRecord) TableName() string { return "balances" }

type transferRecord struct {
	ID         uint64    `gorm:"primaryKey;column:id;autoIncrement"`
	TransferID string    `gorm:"column:transfer_id;size:32;not null;uniqueIndex:ux_transfers_transfer_id"`
	LoanID     uint64    `gorm:"column:loan_id;not null;index:idx_transfers_loan"`
	Kind       string    `gorm:"column:kind;size:16;not null"`
	FromAddr   string    `gorm:"column:from_addr;size:42;not null"`
	ToAddr     string    `gorm:"column:to_addr;size:42;not null"`
	AmountWei  string    `gorm:"column:amount_wei;size:78;not null"`
	At         time.Time `gorm:"column:at;not null"`
}

func (transferRecord) TableName() string { return "transfers" }

type eventRecord struct {
	Seq       uint64            `gorm:"primaryKey;column:seq;autoIncrement"`
	EventID   string            `gorm:"column:event_id;size:32;not null;uniqueIndex:ux_events_event_id"`
	Kind      string            `gorm:"column:kind;size:32;not null"`
	LoanID    uint64            `gorm:"column:loan_id;not null;index:idx_events_loan"`
	Attrs     map[string]string `gorm:"column:attrs;type:text;serializer:json"`
	At        time.Time         `gorm:"column:at;not null"`
	Published bool              `gorm:"column:published;not null;default:false;index:idx_events_published"`
}

func (eventRecord) TableName() string { return "events" }

// ---- conversions ----

func parseWei(field, s string) (uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("decode %s %q: %w", field, s, err)
	}
	return *v, nil
}

func loanToRecord(l *loan.Loan) *loanRecord {
	rec := &loanRecord{
		LoanID:        l.ID,
		Borrower:      l.Borrower.Hex(),
		CollateralWei: l.CollateralAmount.Dec(),
		LoanAmountWei: l.LoanAmount.Dec(),
		InterestRate:  l.InterestRate,
		DueDate:       l.DueDate.UTC(),
		IsFunded:      l.IsFunded,
		IsRepaid:      l.IsRepaid,
		RebateApplied: l.RebateApplied,
		IsClaimed:     l.IsClaimed,
		CreatedAt:     l.CreatedAt.UTC(),
	}
	if l.Lender != nil {
		hex := l.Lender.Hex()
		rec.Lender = &hex
	}
	return rec
}

func (rec *loanRecord) toDomain() (*loan.Loan, error) {
	collateral, err := parseWei("collateral_wei", rec.CollateralWei)
	if err != nil {
		return nil, err
	}
	amount, err := parseWei("loan_amount_wei", rec.LoanAmountWei)
	if err != nil {
		return nil, err
	}
	l := &loan.Loan{
		ID:               rec.LoanID,
		Borrower:         common.HexToAddress(rec.Borrower),
		CollateralAmount: collateral,
		LoanAmount:       amount,
		InterestRate:     rec.InterestRate,
		DueDate:          rec.DueDate.UTC(),
		CreatedAt:        rec.CreatedAt.UTC(),
		IsFunded:         rec.IsFunded,
		IsRepaid:         rec.IsRepaid,
		RebateApplied:    rec.RebateApplied,
		IsClaimed:        rec.IsClaimed,
	}
	if rec.Lender != nil {
		lender := common.HexToAddress(*rec.Lender)
		l.Lender = &lender
	}
	return l, nil
}

func transferToRecord(t *vault.Transfer) *transferRecord {
	return &transferRecord{
		TransferID: t.ID,
		LoanID:     t.LoanID,
		Kind:       string(t.Kind),
		FromAddr:   t.From.Hex(),
		ToAddr:     t.To.Hex(),
		AmountWei:  t.Amount.Dec(),
		At:         t.At.UTC(),
	}
}

func (rec *transferRecord) toDomain() (*vault.Transfer, error) {
	amount, err := parseWei("amount_wei", rec.AmountWei)
	if err != nil {
		return nil, err
	}
	return &vault.Transfer{
		ID:     rec.TransferID,
		LoanID: rec.LoanID,
		Kind:   vault.Kind(rec.Kind),
		From:   common.HexToAddress(rec.FromAddr),
		To:     common.HexToAddress(rec.ToAddr),
		Amount: amount,
		At:     rec.At.UTC(),
	}, nil
}

func eventToRecord(e *event.Event) *eventRecord {
	return &eventRecord{
		EventID:   e.ID,
		Kind:      string(e.Kind),
		LoanID:    e.LoanID,
		Attrs:     e.Attrs,
		At:        e.At.UTC(),
		Published: e.Published,
	}
}

func (rec *eventRecord) toDomain() *event.Event {
	return &event.Event{
		Seq:       rec.Seq,
		ID:        rec.EventID,
		Kind:      event.Kind(rec.Kind),
		LoanID:    rec.LoanID,
		Attrs:     rec.Attrs,
		At:        rec.At.UTC(),
		Published: rec.Published,
	}
}
