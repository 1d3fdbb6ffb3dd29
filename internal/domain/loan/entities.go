package loan

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type State string

const (
	StateRequested State = "requested"
	StateFunded    State = "funded"
	StateRepaid    State = "repaid"
	StateClaimed   State = "claimed"
)

// Loan is one ledger entry. Amounts are in base units (wei).
// Borrower, CollateralAmount, LoanAmount, InterestRate and DueDate never change after creation;
// the flags only ever move from false to true.
type Loan struct {
	ID               uint64
	Borrower         common.Address
	Lender           *common.Address // nil until funded
	CollateralAmount uint256.Int
	LoanAmount       uint256.Int
	InterestRate     uint64 // percent, 1..100
	DueDate          time.Time
	CreatedAt        time.Time
	IsFunded         bool
	IsRepaid         bool
	RebateApplied    bool
	IsClaimed        bool
}

func (l *Loan) State() State {
	switch {
	case l.IsClaimed:
		return StateClaimed
	case l.IsRepaid:
		return StateRepaid
	case l.IsFunded:
		return StateFunded
	default:
		return StateRequested
	}
}

// Terminal reports whether no further value may move for this loan.
func (l *Loan) Terminal() bool { return l.IsRepaid || l.IsClaimed }

// IsLender is false for unfunded loans regardless of addr.
func (l *Loan) IsLender(addr common.Address) bool {
	return l.Lender != nil && *l.Lender == addr
}

// Clone returns a copy that shares no pointers with l.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	out := *l
	if l.Lender != nil {
		lender := *l.Lender
		out.Lender = &lender
	}
	return &out
}
