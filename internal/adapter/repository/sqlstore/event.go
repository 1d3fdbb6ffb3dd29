package sqlstore

import (
	"context"

	"gorm.io/gorm"

	"collateral-lending/internal/domain/event"
)

type EventRepository struct{ db *gorm.DB }

func NewEventRepository(db *gorm.DB) *EventRepository { return &EventRepository{db: db} }

var _ event.Repository = (*EventRepository)(nil)

func (r *EventRepository) Append(ctx context.Context, e *event.Event) error {
	rec := eventToRecord(e)
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return err
	}
	e.Seq = rec.Seq
	return nil
}

func (r *EventRepository) ListByLoan(ctx context.Context, loanID uint64) ([]*event.Event, error) {
	var recs []eventRecord
	if err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("seq ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return toEvents(recs), nil
}

func (r *EventRepository) ListUnpublished(ctx context.Context, limit int) ([]*event.Event, error) {
	var recs []eventRecord
	err := r.db.WithContext(ctx).
		Where("published = ?", false).
		Order("seq ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toEvents(recs), nil
}

func (r *EventRepository) MarkPublished(ctx context.Context, seqs []uint64) error {
	if len(seqs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&eventRecord{}).
		Where("seq IN ?", seqs).
		Update("published", true).Error
}

func toEvents(recs []eventRecord) []*event.Event {
	out := make([]*event.Event, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain())
	}
	return out
}
