package uow

import (
	"context"

	"collateral-lending/internal/domain/event"
	"collateral-lending/internal/domain/loan"
	"collateral-lending/internal/domain/vault"
)

// Repos are bound to one unit of work.
type Repos struct {
	Loans  loan.Repository
	Vault  vault.Repository
	Events event.Repository
}

// UnitOfWork runs fn all-or-nothing: any error from fn discards every write made through r.
// The context handed to fn carries the unit of work; calling WithinTx again with it nests
// (a savepoint) instead of opening a second top-level unit. Top-level units run one at a time.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

type readOnlyKey struct{}

// ReadOnly marks the unit opened with the returned ctx as one that makes no writes, so a store
// may skip its rollback bookkeeping. The mark does not reach units nested inside it.
func ReadOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, readOnlyKey{}, true)
}

// TakeReadOnly reports whether ctx carries the ReadOnly mark and returns ctx with it cleared.
func TakeReadOnly(ctx context.Context) (context.Context, bool) {
	if ro, _ := ctx.Value(readOnlyKey{}).(bool); !ro {
		return ctx, false
	}
	return context.WithValue(ctx, readOnlyKey{}, false), true
}
