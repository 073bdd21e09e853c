package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tharunsai190/classy-commerce-storefront/internal/infrastructure/events"
	"github.com/tharunsai190/classy-commerce-storefront/internal/metrics"
	"github.com/tharunsai190/classy-commerce-storefront/internal/repo"
)

// OutboxRelay publishes committed outbox events. Delivery is at least once:
// a crash between Publish and MarkSent sends the event again.
type OutboxRelay struct {
	outbox    repo.OutboxRepo
	publisher events.Publisher
	log       *zap.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batch     int
}

func NewOutboxRelay(
	outbox repo.OutboxRepo,
	publisher events.Publisher,
	log *zap.Logger,
	m *metrics.Metrics,
	interval time.Duration,
	batch int,
) *OutboxRelay {
	if batch < 1 {
		batch = 100
	}
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		log:       log,
		metrics:   m,
		interval:  interval,
		batch:     batch,
	}
}

func (rw *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.log.Info("outbox relay started", zap.Duration("interval", rw.interval))

	for {
		select {
		case <-ctx.Done():
			rw.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := rw.process(ctx); err != nil && ctx.Err() == nil {
				rw.log.Warn("outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// process sends one batch in insertion order and stops at the first failure
// so later events for the same order are not published ahead of it.
func (rw *OutboxRelay) process(ctx context.Context) (int, error) {
	pending, err := rw.outbox.FetchPending(ctx, rw.batch)
	if err != nil {
		return 0, fmt.Errorf("fetch pending: %w", err)
	}

	sent := 0
	for _, rec := range pending {
		msg := events.Message{
			Topic:   rec.Topic,
			Key:     rec.Key,
			Type:    eventType(rec.Payload),
			Payload: rec.Payload,
		}
		if err := rw.publisher.Publish(ctx, msg); err != nil {
			rw.metrics.ObserveOutbox("failed")
			return sent, fmt.Errorf("publish event %s: %w", rec.EventID, err)
		}
		if err := rw.outbox.MarkSent(ctx, rec.ID); err != nil {
			return sent, fmt.Errorf("mark event %s sent: %w", rec.EventID, err)
		}
		rw.metrics.ObserveOutbox("published")
		sent++
	}

	if sent > 0 {
		rw.log.Debug("outbox events published", zap.Int("count", sent))
	}
	return sent, nil
}

func eventType(payload []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return ""
	}
	return head.Type
}
