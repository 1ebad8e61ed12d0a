// Package memstore is an in-memory domain.Store used by unit tests for
// the packages that depend on C4 (orderservice, outbox, statusconsumer),
// since no live Postgres instance is available to test against.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/elik56a/orderflow/internal/domain"
	"github.com/google/uuid"
)

type Store struct {
	mu sync.Mutex

	orders          map[uuid.UUID]domain.Order
	ordersByKey     map[string]uuid.UUID
	outbox          map[uuid.UUID]domain.OutboxRecord
	processedEvents map[string]struct{}
}

func New() *Store {
	return &Store{
		orders:          make(map[uuid.UUID]domain.Order),
		ordersByKey:     make(map[string]uuid.UUID),
		outbox:          make(map[uuid.UUID]domain.OutboxRecord),
		processedEvents: make(map[string]struct{}),
	}
}

func (s *Store) FindOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	if key == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ordersByKey[key]
	if !ok {
		return nil, nil
	}
	o := s.orders[id]
	return &o, nil
}

func (s *Store) FindOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (s *Store) CreateOrderWithOutbox(ctx context.Context, order domain.Order, outbox domain.OutboxRecord) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	s.orders[order.ID] = order
	if order.IdempotencyKey != "" {
		s.ordersByKey[order.IdempotencyKey] = order.ID
	}

	outbox.CreatedAt = now
	s.outbox[outbox.ID] = outbox

	stored := order
	return &stored, nil
}

func (s *Store) UpdateStatusAndMarkProcessed(ctx context.Context, id uuid.UUID, newStatus domain.OrderStatus, eventID, eventType string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.processedEvents[eventID]; seen {
		return nil, domain.ErrDuplicateEvent
	}

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if !domain.CanTransition(o.Status, newStatus) {
		return nil, domain.ErrInvalidStatusTransition
	}

	s.processedEvents[eventID] = struct{}{}
	o.Status = newStatus
	o.UpdatedAt = time.Now()
	s.orders[id] = o

	stored := o
	return &stored, nil
}

func (s *Store) LeaseOutboxBatch(ctx context.Context, limit, maxRetries int, now time.Time) ([]domain.OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.OutboxRecord
	for _, r := range s.outbox {
		if r.Published {
			continue
		}
		if r.RetryCount > maxRetries {
			continue
		}
		if r.NextRetryAt != nil && r.NextRetryAt.After(now) {
			continue
		}
		due = append(due, r)
		if len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (s *Store) MarkPublished(ctx context.Context, id uuid.UUID, eventID, eventType string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.outbox[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	r.Published = true
	r.PublishedAt = &publishedAt
	s.outbox[id] = r
	s.processedEvents[eventID] = struct{}{}
	return nil
}

func (s *Store) ScheduleRetry(ctx context.Context, id uuid.UUID, newRetryCount int, nextRetryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.outbox[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	r.RetryCount = newRetryCount
	r.NextRetryAt = &nextRetryAt
	s.outbox[id] = r
	return nil
}

func (s *Store) MarkPublishedForDLQ(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.outbox[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	r.Published = true
	r.PublishedAt = &publishedAt
	s.outbox[id] = r
	return nil
}

var _ domain.Store = (*Store)(nil)
