package vault

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Kind string

const (
	KindDeposit      Kind = "deposit"      // attached value into escrow
	KindDisbursement Kind = "disbursement" // principal to borrower
	KindRepayment    Kind = "repayment"    // total due to lender
	KindCollateral   Kind = "collateral"   // collateral back to borrower
	KindRefund       Kind = "refund"       // overpayment back to borrower
	KindForfeiture   Kind = "forfeiture"   // collateral to lender
)

// Transfer is one value movement, journaled inside the same unit of work as the balances it touched.
type Transfer struct {
	ID     string
	LoanID uint64
	Kind   Kind
	From   common.Address
	To     common.Address
	Amount uint256.Int
	At     time.Time
}
