package memory

import (
	"context"
	"sync"

	"collateral-lending/internal/domain/uow"
)

var _ uow.UnitOfWork = (*UoW)(nil)

type txKey struct{}

// UoW serializes top-level units on the store and restores a snapshot when fn fails or panics.
// Units opened with uow.ReadOnly take no snapshot.
type UoW struct {
	store *Store
	mu    sync.Mutex
}

func NewUoW(s *Store) *UoW { return &UoW{store: s} }

func (u *UoW) repos() uow.Repos {
	return uow.Repos{
		Loans:  u.store.Loans(),
		Vault:  u.store.Vault(),
		Events: u.store.Events(),
	}
}

func (u *UoW) WithinTx(ctx context.Context, fn func(ctx context.Context, r uow.Repos) error) error {
	if owner, _ := ctx.Value(txKey{}).(*UoW); owner != u {
		u.mu.Lock()
		defer u.mu.Unlock()
		ctx = context.WithValue(ctx, txKey{}, u)
	}
	ctx, readOnly := uow.TakeReadOnly(ctx)
	if readOnly {
		return fn(ctx, u.repos())
	}

	snapshot := u.store.st.clone()
	committed := false
	// runs on error and on panic
	defer func() {
		if !committed {
			u.store.st = snapshot
		}
	}()
	if err := fn(ctx, u.repos()); err != nil {
		return err
	}
	committed = true
	return nil
}
