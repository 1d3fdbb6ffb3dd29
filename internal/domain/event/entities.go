package event

import "time"

type Kind string

const (
	KindLoanRequested     Kind = "loan.requested"
	KindLoanFunded        Kind = "loan.funded"
	KindLoanRepaid        Kind = "loan.repaid"
	KindCollateralClaimed Kind = "collateral.claimed"
)

// Event is an externally observable notification. Seq orders events in the outbox.
type Event struct {
	Seq       uint64
	ID        string
	Kind      Kind
	LoanID    uint64
	Attrs     map[string]string
	At        time.Time
	Published bool
}
