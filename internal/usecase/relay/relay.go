// Package relay moves committed notifications from the outbox to a publisher.
// Delivery is at least once: an event is marked only after Publish returned nil.
package relay

import (
	"context"
	"log/slog"
	"time"

	"collateral-lending/internal/domain/event"
	"collateral-lending/internal/domain/uow"
	"collateral-lending/internal/infrastructure/metrics"
)

const defaultBatch = 100

type Relay struct {
	uow      uow.UnitOfWork
	pub      event.Publisher
	batch    int
	interval time.Duration
	metrics  *metrics.LendingMetrics
	logger   *slog.Logger
}

type Option func(*Relay)

func WithBatch(n int) Option { return func(r *Relay) { r.batch = n } }

func WithMetrics(m *metrics.LendingMetrics) Option { return func(r *Relay) { r.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(r *Relay) { r.logger = l } }

func New(tx uow.UnitOfWork, pub event.Publisher, interval time.Duration, opts ...Option) *Relay {
	r := &Relay{
		uow:      tx,
		pub:      pub,
		batch:    defaultBatch,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.batch <= 0 {
		r.batch = defaultBatch
	}
	return r
}

// Flush publishes one batch in sequence order and stops at the first failure,
// so later events never overtake an undelivered one. It returns how many were delivered.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	var pending []*event.Event
	err := r.uow.WithinTx(uow.ReadOnly(ctx), func(ctx context.Context, repos uow.Repos) error {
		evs, err := repos.Events.ListUnpublished(ctx, r.batch)
		pending = evs
		return err
	})
	if err != nil || len(pending) == 0 {
		return 0, err
	}

	delivered := make([]uint64, 0, len(pending))
	var pubErr error
	for _, e := range pending {
		if pubErr = r.pub.Publish(ctx, e); pubErr != nil {
			break
		}
		delivered = append(delivered, e.Seq)
	}

	if len(delivered) > 0 {
		if err := r.uow.WithinTx(ctx, func(ctx context.Context, repos uow.Repos) error {
			return repos.Events.MarkPublished(ctx, delivered)
		}); err != nil {
			return 0, err
		}
		r.metrics.ObservePublished(len(delivered))
	}
	return len(delivered), pubErr
}

// Run flushes every interval until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// drain backlog before waiting again
			for {
				n, err := r.Flush(ctx)
				if err != nil {
					if ctx.Err() == nil {
						r.logger.Warn("outbox relay", "delivered", n, "error", err)
					}
					break
				}
				if n < r.batch {
					break
				}
			}
		}
	}
}
