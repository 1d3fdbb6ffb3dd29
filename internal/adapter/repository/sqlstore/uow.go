package sqlstore

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"collateral-lending/internal/domain/uow"
)

var _ uow.UnitOfWork = (*GormUoW)(nil)

type txKey struct{}

type boundTx struct {
	owner *GormUoW
	tx    *gorm.DB
}

// GormUoW maps units of work onto gorm transactions; nested units become savepoints.
type GormUoW struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func reposFor(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Loans:  &LoanRepository{db: tx},
		Vault:  &VaultRepository{db: tx},
		Events: &EventRepository{db: tx},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, r uow.Repos) error) error {
	if cur, ok := ctx.Value(txKey{}).(boundTx); ok && cur.owner == u {
		return cur.tx.Transaction(func(sp *gorm.DB) error {
			return fn(context.WithValue(ctx, txKey{}, boundTx{owner: u, tx: sp}), reposFor(sp))
		})
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, boundTx{owner: u, tx: tx}), reposFor(tx))
	})
}
