package lending

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"collateral-lending/internal/domain/event"
	"collateral-lending/internal/domain/loan"
	"collateral-lending/internal/domain/uow"
	"collateral-lending/internal/domain/vault"
	"collateral-lending/pkg/id"
)

// Receiver is code that runs when value arrives at an address. It executes inside the
// caller's unit of work and may call back into the Engine with the ctx it is given;
// returning an error fails the transfer and with it the whole operation.
type Receiver func(ctx context.Context, from common.Address, amount *uint256.Int) error

// exec binds one operation's repositories and call.
type exec struct {
	*Engine
	r    uow.Repos
	call Call
}

// deposit moves the attached value into escrow.
func (x *exec) deposit(ctx context.Context, loanID uint64) error {
	value := x.call.value()
	if value.IsZero() {
		return nil
	}
	if err := x.credit(ctx, x.escrow, value); err != nil {
		return err
	}
	return x.record(ctx, loanID, vault.KindDeposit, x.call.Sender, x.escrow, value)
}

// send pays amount out of escrow to to, then runs to's receiver if any. Zero amounts move nothing.
func (x *exec) send(ctx context.Context, loanID uint64, kind vault.Kind, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	held, err := x.r.Vault.BalanceOf(ctx, x.escrow)
	if err != nil {
		return err
	}
	if held.Lt(amount) {
		return fmt.Errorf("%w: escrow holds %s wei, cannot send %s", loan.ErrTransferFailed, held.Dec(), amount.Dec())
	}
	if err := x.r.Vault.SetBalance(ctx, x.escrow, new(uint256.Int).Sub(held, amount)); err != nil {
		return err
	}
	if err := x.credit(ctx, to, amount); err != nil {
		return err
	}
	if err := x.record(ctx, loanID, kind, x.escrow, to, amount); err != nil {
		return err
	}
	x.metrics.ObserveTransfer(string(kind))

	if recv := x.receiver(to); recv != nil {
		if err := recv(ctx, x.escrow, new(uint256.Int).Set(amount)); err != nil {
			return fmt.Errorf("%w: recipient %s rejected %s: %v", loan.ErrTransferFailed, to.Hex(), kind, err)
		}
	}
	return nil
}

func (x *exec) credit(ctx context.Context, addr common.Address, amount *uint256.Int) error {
	bal, err := x.r.Vault.BalanceOf(ctx, addr)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("%w: balance of %s would overflow", loan.ErrTransferFailed, addr.Hex())
	}
	return x.r.Vault.SetBalance(ctx, addr, sum)
}

func (x *exec) record(ctx context.Context, loanID uint64, kind vault.Kind, from, to common.Address, amount *uint256.Int) error {
	return x.r.Vault.Record(ctx, &vault.Transfer{
		ID:     id.NewID32(),
		LoanID: loanID,
		Kind:   kind,
		From:   from,
		To:     to,
		Amount: *amount,
		At:     x.call.Now.UTC(),
	})
}

func (x *exec) emit(ctx context.Context, kind event.Kind, loanID uint64, attrs map[string]string) error {
	return x.r.Events.Append(ctx, &event.Event{
		ID:     id.NewID32(),
		Kind:   kind,
		LoanID: loanID,
		Attrs:  attrs,
		At:     x.call.Now.UTC(),
	})
}
