package sqlstore

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"collateral-lending/internal/domain/vault"
)

type VaultRepository struct{ db *gorm.DB }

func NewVaultRepository(db *gorm.DB) *VaultRepository { return &VaultRepository{db: db} }

var _ vault.Repository = (*VaultRepository)(nil)

func (r *VaultRepository) BalanceOf(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	var rec balanceRecord
	res := r.db.WithContext(ctx).Clauses(forUpdate()).
		Where("address = ?", addr.Hex()).
		Limit(1).
		Find(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return new(uint256.Int), nil
	}
	v, err := parseWei("balance_wei", rec.BalanceWei)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VaultRepository) SetBalance(ctx context.Context, addr common.Address, amount *uint256.Int) error {
	rec := balanceRecord{Address: addr.Hex(), BalanceWei: amount.Dec()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance_wei", "updated_at"}),
	}).Create(&rec).Error
}

func (r *VaultRepository) Record(ctx context.Context, t *vault.Transfer) error {
	return r.db.WithContext(ctx).Create(transferToRecord(t)).Error
}

func (r *VaultRepository) ListByLoan(ctx context.Context, loanID uint64) ([]*vault.Transfer, error) {
	var recs []transferRecord
	if err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*vault.Transfer, 0, len(recs))
	for i := range recs {
		t, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
