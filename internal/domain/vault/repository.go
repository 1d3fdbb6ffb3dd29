package vault

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Repository keeps the value held inside the ledger. Escrow is credited by attached value and
// debited by payouts; every other address only receives payouts.
type Repository interface {
	// BalanceOf is zero for addresses never seen.
	BalanceOf(ctx context.Context, addr common.Address) (*uint256.Int, error)
	SetBalance(ctx context.Context, addr common.Address, amount *uint256.Int) error

	Record(ctx context.Context, t *Transfer) error
	ListByLoan(ctx context.Context, loanID uint64) ([]*Transfer, error)
}
