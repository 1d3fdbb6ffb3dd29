package loan

import "context"

// Repository is the loan ledger. Ids are dense and start at zero; entries are never deleted.
type Repository interface {
	// Create stores l under the next id, sets l.ID and returns it.
	Create(ctx context.Context, l *Loan) (uint64, error)
	// GetByID returns ErrNotFound for ids that were never assigned.
	GetByID(ctx context.Context, id uint64) (*Loan, error)
	// Update loads the entry, applies mutate and writes it back. A mutate error
	// aborts the update and is returned unchanged.
	Update(ctx context.Context, id uint64, mutate func(l *Loan) error) (*Loan, error)
	List(ctx context.Context, offset, limit int) ([]*Loan, error)
}
