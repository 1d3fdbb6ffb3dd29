package loanmock

import (
	"context"

	domain "collateral-lending/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset reads report domain.ErrNotFound; unset writes succeed.
type Repo struct {
	CreateFn  func(ctx context.Context, l *domain.Loan) (uint64, error)
	GetByIDFn func(ctx context.Context, id uint64) (*domain.Loan, error)
	UpdateFn  func(ctx context.Context, id uint64, mutate func(*domain.Loan) error) (*domain.Loan, error)
	ListFn    func(ctx context.Context, offset, limit int) ([]*domain.Loan, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) (uint64, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return 0, nil
}

func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.Loan, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *Repo) Update(ctx context.Context, id uint64, mutate func(*domain.Loan) error) (*domain.Loan, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, mutate)
	}
	return nil, domain.ErrNotFound
}

func (m *Repo) List(ctx context.Context, offset, limit int) ([]*domain.Loan, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, offset, limit)
	}
	return nil, nil
}
