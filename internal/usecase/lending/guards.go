package lending

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"collateral-lending/internal/domain/loan"
)

// Preconditions. Each returns nil or a rejection wrapping one of the loan.Err* kinds.

func checkRequest(value *uint256.Int, in RequestInput) error {
	if value.IsZero() {
		return fmt.Errorf("%w: collateral must be greater than zero", loan.ErrInvalidInput)
	}
	if in.InterestRate < loan.MinInterestRate || in.InterestRate > loan.MaxInterestRate {
		return fmt.Errorf("%w: interest rate %d outside %d..%d", loan.ErrInvalidInput,
			in.InterestRate, loan.MinInterestRate, loan.MaxInterestRate)
	}
	if in.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", loan.ErrInvalidInput)
	}
	return nil
}

func notFunded(l *loan.Loan) error {
	if l.IsFunded {
		return fmt.Errorf("%w: loan %d already funded", loan.ErrInvalidState, l.ID)
	}
	return nil
}

func exactValue(l *loan.Loan, value *uint256.Int) error {
	if !value.Eq(&l.LoanAmount) {
		return fmt.Errorf("%w: funding loan %d requires exactly %s wei, got %s",
			loan.ErrValueMismatch, l.ID, l.LoanAmount.Dec(), value.Dec())
	}
	return nil
}

func onlyBorrower(l *loan.Loan, caller common.Address) error {
	if l.Borrower != caller {
		return fmt.Errorf("%w: only the borrower can repay loan %d", loan.ErrUnauthorized, l.ID)
	}
	return nil
}

func onlyLender(l *loan.Loan, caller common.Address) error {
	if !l.IsLender(caller) {
		return fmt.Errorf("%w: only the lender can claim loan %d", loan.ErrUnauthorized, l.ID)
	}
	return nil
}

// outstanding holds for funded loans that were neither repaid nor claimed.
func outstanding(l *loan.Loan) error {
	switch {
	case !l.IsFunded:
		return fmt.Errorf("%w: loan %d is not funded", loan.ErrInvalidState, l.ID)
	case l.IsRepaid:
		return fmt.Errorf("%w: loan %d already repaid", loan.ErrInvalidState, l.ID)
	case l.IsClaimed:
		return fmt.Errorf("%w: collateral of loan %d already claimed", loan.ErrInvalidState, l.ID)
	}
	return nil
}

func coversTotal(q *loan.Quote, value *uint256.Int) error {
	if value.Lt(&q.TotalDue) {
		return fmt.Errorf("%w: repayment requires at least %s wei, got %s",
			loan.ErrValueMismatch, q.TotalDue.Dec(), value.Dec())
	}
	return nil
}

func pastDue(l *loan.Loan, now time.Time) error {
	if now.Before(l.DueDate) {
		return fmt.Errorf("%w: loan %d is due at %s", loan.ErrNotDue, l.ID, l.DueDate.UTC().Format(time.RFC3339))
	}
	return nil
}

func noValue(value *uint256.Int) error {
	if !value.IsZero() {
		return fmt.Errorf("%w: claim does not accept attached value", loan.ErrInvalidInput)
	}
	return nil
}

// firstErr runs checks in order and stops at the first rejection.
func firstErr(checks ...func() error) error {
	for _, c := range checks {
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}
