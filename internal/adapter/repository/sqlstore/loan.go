package sqlstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	loanDomain "collateral-lending/internal/domain/loan"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

var _ loanDomain.Repository = (*LoanRepository)(nil)

func forUpdate() clause.Locking { return clause.Locking{Strength: "UPDATE"} }

// nextSequence hands out the current value and bumps it; callers run it inside a transaction.
func nextSequence(ctx context.Context, tx *gorm.DB, name string) (uint64, error) {
	var seq sequenceRecord
	res := tx.WithContext(ctx).Clauses(forUpdate()).Where("name = ?", name).Limit(1).Find(&seq)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		seq = sequenceRecord{Name: name}
		if err := tx.WithContext(ctx).Create(&seq).Error; err != nil {
			return 0, err
		}
	}
	id := seq.Next
	err := tx.WithContext(ctx).Model(&sequenceRecord{}).
		Where("name = ?", name).
		Update("next_value", id+1).Error
	return id, err
}

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) (uint64, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := nextSequence(ctx, tx, loanSequence)
		if err != nil {
			return err
		}
		l.ID = id
		return tx.WithContext(ctx).Create(loanToRecord(l)).Error
	})
	if err != nil {
		return 0, err
	}
	return l.ID, nil
}

func (r *LoanRepository) find(ctx context.Context, db *gorm.DB, id uint64) (*loanRecord, error) {
	var rec loanRecord
	err := db.WithContext(ctx).Where("loan_id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, loanDomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id uint64) (*loanDomain.Loan, error) {
	rec, err := r.find(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return rec.toDomain()
}

// Update locks the row for the rest of the surrounding transaction.
func (r *LoanRepository) Update(ctx context.Context, id uint64, mutate func(l *loanDomain.Loan) error) (*loanDomain.Loan, error) {
	var out *loanDomain.Loan
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := r.find(ctx, tx.Clauses(forUpdate()), id)
		if err != nil {
			return err
		}
		l, err := rec.toDomain()
		if err != nil {
			return err
		}
		if err := mutate(l); err != nil {
			return err
		}
		l.ID = id
		next := loanToRecord(l)
		next.ID = rec.ID
		if err := tx.WithContext(ctx).Save(next).Error; err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) List(ctx context.Context, offset, limit int) ([]*loanDomain.Loan, error) {
	var recs []loanRecord
	err := r.db.WithContext(ctx).
		Order("loan_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]*loanDomain.Loan, 0, len(recs))
	for i := range recs {
		l, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
