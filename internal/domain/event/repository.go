package event

import "context"

type Repository interface {
	// Append assigns Seq.
	Append(ctx context.Context, e *Event) error
	ListByLoan(ctx context.Context, loanID uint64) ([]*Event, error)
	ListUnpublished(ctx context.Context, limit int) ([]*Event, error)
	MarkPublished(ctx context.Context, seqs []uint64) error
}

// Publisher delivers events outside the process.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}
