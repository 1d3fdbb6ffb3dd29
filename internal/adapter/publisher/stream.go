// Package publisher delivers outbox events outside the process.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"collateral-lending/internal/domain/event"
)

var (
	_ event.Publisher = (*StreamPublisher)(nil)
	_ event.Publisher = (*LogPublisher)(nil)
)

// StreamPublisher appends each event to a Redis stream, trimmed to roughly maxLen entries.
type StreamPublisher struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

func NewStreamPublisher(rdb redis.Cmdable, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, e *event.Event) error {
	attrs, err := json.Marshal(e.Attrs)
	if err != nil {
		return fmt.Errorf("encode attrs of event %s: %w", e.ID, err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		ID:     "*",
		Values: map[string]any{
			"event_id": e.ID,
			"seq":      strconv.FormatUint(e.Seq, 10),
			"kind":     string(e.Kind),
			"loan_id":  strconv.FormatUint(e.LoanID, 10),
			"at":       e.At.UTC().Format(time.RFC3339Nano),
			"attrs":    string(attrs),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// LogPublisher writes events to the structured log; used when no Redis is configured.
type LogPublisher struct{ logger *slog.Logger }

func NewLogPublisher(l *slog.Logger) *LogPublisher {
	if l == nil {
		l = slog.Default()
	}
	return &LogPublisher{logger: l}
}

func (p *LogPublisher) Publish(ctx context.Context, e *event.Event) error {
	args := []any{"seq", e.Seq, "event_id", e.ID, "kind", string(e.Kind), "loan_id", e.LoanID}
	for k, v := range e.Attrs {
		args = append(args, "attr."+k, v)
	}
	p.logger.InfoContext(ctx, "lending event", args...)
	return nil
}
