package loan

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

const (
	// LTVRatio is the share of collateral advanced as principal, in percent.
	LTVRatio = 50
	// RebatePercent is the share of interest waived on early repayment.
	RebatePercent = 10
	// RebateWindow is how far ahead of the due date a repayment must land to earn the rebate.
	RebateWindow = 24 * time.Hour

	MinInterestRate = 1
	MaxInterestRate = 100
)

var hundred = uint256.NewInt(100)

// percentOf returns floor(amount * pct / 100). The product is computed at
// 512 bits so it never overflows; the quotient always fits because pct <= 100.
func percentOf(amount *uint256.Int, pct uint64) *uint256.Int {
	out, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(pct), hundred)
	return out
}

func LoanAmountFor(collateral *uint256.Int) *uint256.Int {
	return percentOf(collateral, LTVRatio)
}

func InterestFor(principal *uint256.Int, rate uint64) *uint256.Int {
	return percentOf(principal, rate)
}

func RebateFor(interest *uint256.Int) *uint256.Int {
	return percentOf(interest, RebatePercent)
}

func EligibleForRebate(now, dueDate time.Time) bool {
	return now.Before(dueDate.Add(-RebateWindow))
}

// Quote is the repayment breakdown for a loan at a given instant.
type Quote struct {
	Principal     uint256.Int
	Interest      uint256.Int
	Rebate        uint256.Int
	RebateApplied bool
	TotalDue      uint256.Int
}

// QuoteFor prices repayment of l at now. It fails only when the total
// would not fit in 256 bits.
func QuoteFor(l *Loan, now time.Time) (*Quote, error) {
	q := &Quote{Principal: l.LoanAmount}
	q.Interest = *InterestFor(&l.LoanAmount, l.InterestRate)
	if EligibleForRebate(now, l.DueDate) {
		q.RebateApplied = true
		q.Rebate = *RebateFor(&q.Interest)
	}
	// rebate <= interest, so the subtraction cannot underflow
	owed := new(uint256.Int).Sub(&q.Interest, &q.Rebate)
	total, overflow := new(uint256.Int).AddOverflow(&q.Principal, owed)
	if overflow {
		return nil, fmt.Errorf("%w: total due overflows", ErrInvalidState)
	}
	q.TotalDue = *total
	return q, nil
}
