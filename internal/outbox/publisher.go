// Package outbox is C6: the background publisher draining the
// transactional outbox. It leases due, unpublished rows with
// FOR UPDATE SKIP LOCKED (via the store), publishes each to the event
// bus, and on failure schedules an exponential backoff retry up to a
// configured cap before routing the row to the dead-letter queue.
// Adapted from the join-service outbox worker's poll/claim/backoff loop.
package outbox

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/elik56a/orderflow/internal/audit"
	"github.com/elik56a/orderflow/internal/domain"
	"github.com/elik56a/orderflow/internal/obsmetrics"
	"github.com/elik56a/orderflow/internal/pkg/logger"
	"github.com/google/uuid"
)

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 1600 * time.Millisecond
	}
	return c
}

// topicForEventType routes an outbox row to the bus topic its event type
// belongs on.
func topicForEventType(eventType string) string {
	switch eventType {
	case domain.EventTypeOrderCreated:
		return domain.TopicOrderEvents
	case domain.EventTypeOrderShipped, domain.EventTypeOrderDelivered:
		return domain.TopicDeliveryEvents
	default:
		return domain.TopicUnknownEvents
	}
}

type Publisher struct {
	cfg   Config
	store domain.Store
	bus   domain.EventBus
	audit *audit.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

func New(store domain.Store, bus domain.EventBus, auditLogger *audit.Logger, cfg Config) *Publisher {
	return &Publisher{cfg: cfg.withDefaults(), store: store, bus: bus, audit: auditLogger}
}

// Start launches the poll loop in the background. Calling Start twice
// without an intervening Stop is a no-op.
func (p *Publisher) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopped = make(chan struct{})
	p.mu.Unlock()

	go p.run(runCtx)
}

// Stop cancels the poll loop and waits for the in-flight batch to drain.
func (p *Publisher) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	stopped := p.stopped
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (p *Publisher) run(ctx context.Context) {
	defer close(p.stopped)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Publisher) pollOnce(ctx context.Context) {
	batch, err := p.store.LeaseOutboxBatch(ctx, p.cfg.BatchSize, p.cfg.MaxRetries, time.Now())
	if err != nil {
		logger.WithCtx(ctx).Error().Err(err).Msg("outbox: failed to lease batch")
		return
	}
	if len(batch) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, row := range batch {
		wg.Add(1)
		go func(r domain.OutboxRecord) {
			defer wg.Done()
			p.publishOne(ctx, r)
		}(row)
	}
	wg.Wait()
}

// publishOne publishes a single outbox row and, on failure, schedules a
// retry or routes it to the dead-letter queue once maxRetries is
// exhausted (invariant: every row is eventually published or dead-lettered,
// never silently dropped).
func (p *Publisher) publishOne(ctx context.Context, row domain.OutboxRecord) {
	start := time.Now()
	topic := topicForEventType(row.EventType)

	err := p.bus.Publish(ctx, topic, row.Payload)
	if err == nil {
		eventID, _ := extractEventID(row.Payload)
		if markErr := p.store.MarkPublished(ctx, row.ID, eventID, row.EventType, time.Now()); markErr != nil {
			logger.WithCtx(ctx).Error().Err(markErr).Str("outbox_id", row.ID.String()).Msg("outbox: publish succeeded but mark-published failed")
			return
		}
		obsmetrics.RecordOutboxPublished(time.Since(start))
		p.audit.OutboxSent(ctx, row.ID.String(), row.EventType)
		return
	}

	newRetryCount := row.RetryCount + 1
	if newRetryCount >= p.cfg.MaxRetries {
		p.deadLetter(ctx, row, err)
		return
	}

	delay := backoffFor(newRetryCount, p.cfg.BaseDelay, p.cfg.MaxDelay)
	nextRetryAt := time.Now().Add(delay)
	if scheduleErr := p.store.ScheduleRetry(ctx, row.ID, newRetryCount, nextRetryAt); scheduleErr != nil {
		logger.WithCtx(ctx).Error().Err(scheduleErr).Str("outbox_id", row.ID.String()).Msg("outbox: failed to schedule retry")
		return
	}
	obsmetrics.RecordOutboxRetry()
	logger.WithCtx(ctx).Warn().
		Err(err).
		Str("outbox_id", row.ID.String()).
		Str("event_type", row.EventType).
		Int("retry_count", newRetryCount).
		Dur("retry_in", delay).
		Msg("outbox publish failed; scheduled retry")
}

// deadLetter marks the row published (so it is never leased again) and
// then publishes a DLQEvent describing it. Marking happens first: if the
// DLQ publish itself fails, the row is not retried forever — it is
// logged and left for operator inspection.
func (p *Publisher) deadLetter(ctx context.Context, row domain.OutboxRecord, cause error) {
	now := time.Now()
	logger.WithCtx(ctx).Error().Err(cause).Str("outbox_id", row.ID.String()).Msg("outbox: max retries exceeded; routing to dead-letter queue")

	if err := p.store.MarkPublishedForDLQ(ctx, row.ID, now); err != nil {
		logger.WithCtx(ctx).Error().Err(err).Str("outbox_id", row.ID.String()).Msg("outbox: failed to mark row dead-lettered")
		return
	}

	dlqEvent := domain.DLQEvent{
		EventID:   uuid.New().String(),
		EventType: domain.EventTypeDLQ,
		Timestamp: domain.RFC3339UTC(now),
		OriginalEvent: domain.OutboxSnapshot{
			ID:          row.ID.String(),
			EventType:   row.EventType,
			AggregateID: row.AggregateID.String(),
			Payload:     string(row.Payload),
			RetryCount:  row.RetryCount + 1,
			CreatedAt:   domain.RFC3339UTC(row.CreatedAt),
		},
		Reason: "Max retries exceeded",
	}
	payload, err := json.Marshal(dlqEvent)
	if err != nil {
		logger.WithCtx(ctx).Error().Err(err).Msg("outbox: failed to marshal DLQ event")
		return
	}

	if err := p.bus.Publish(ctx, domain.TopicDeadLetter, payload); err != nil {
		logger.WithCtx(ctx).Error().Err(err).Str("outbox_id", row.ID.String()).Msg("outbox: failed to publish DLQ event")
	}

	obsmetrics.RecordOutboxDeadLetter()
	p.audit.OutboxDead(ctx, row.ID.String(), row.EventType, row.RetryCount+1)
}

// backoffFor computes baseDelay * 2^(retryCount-1), capped at maxDelay.
func backoffFor(retryCount int, baseDelay, maxDelay time.Duration) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	d := baseDelay
	for i := 1; i < retryCount; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

func extractEventID(payload []byte) (string, error) {
	var probe struct {
		EventID string `json:"eventId"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return "", err
	}
	return probe.EventID, nil
}
