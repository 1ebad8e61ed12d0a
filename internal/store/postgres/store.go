// Package postgres is C4: the pgx-backed Store. It owns the orders,
// outbox_events, and processed_events tables and is the only package
// that issues SQL against them. Every multi-row mutation below commits
// inside a single transaction, matching the locking discipline the
// join-service repository uses for its own capacity/joins rows.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/elik56a/orderflow/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type itemRow struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

func encodeItems(items []domain.Item) ([]byte, error) {
	rows := make([]itemRow, len(items))
	for i, it := range items {
		rows[i] = itemRow{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice.String()}
	}
	return json.Marshal(rows)
}

func decodeItems(raw []byte) ([]domain.Item, error) {
	var rows []itemRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	items := make([]domain.Item, len(rows))
	for i, r := range rows {
		price, err := decimal.NewFromString(r.UnitPrice)
		if err != nil {
			return nil, err
		}
		items[i] = domain.Item{ProductID: r.ProductID, Quantity: r.Quantity, UnitPrice: price}
	}
	return items, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o         domain.Order
		itemsRaw  []byte
		total     string
		idemp     *string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &itemsRaw, &total, &o.Status, &idemp, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	items, err := decodeItems(itemsRaw)
	if err != nil {
		return nil, err
	}
	totalAmount, err := decimal.NewFromString(total)
	if err != nil {
		return nil, err
	}
	o.Items = items
	o.TotalAmount = totalAmount
	if idemp != nil {
		o.IdempotencyKey = *idemp
	}
	return &o, nil
}

const orderColumns = `id, customer_id, items, total_amount, status, idempotency_key, created_at, updated_at`

func (s *Store) FindOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	if key == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) FindOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// CreateOrderWithOutbox inserts order and its order.created outbox row in
// one transaction, satisfying invariant I1 (the order is only ever
// visible once its outbox event is guaranteed to eventually publish).
func (s *Store) CreateOrderWithOutbox(ctx context.Context, order domain.Order, outbox domain.OutboxRecord) (*domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	itemsRaw, err := encodeItems(order.Items)
	if err != nil {
		return nil, err
	}

	var idemp any
	if order.IdempotencyKey != "" {
		idemp = order.IdempotencyKey
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (id, customer_id, items, total_amount, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+orderColumns, order.ID, order.CustomerID, itemsRaw, order.TotalAmount.String(), order.Status, idemp)

	created, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, published, retry_count, created_at)
		VALUES ($1, $2, $3, $4, false, 0, NOW())
	`, outbox.ID, outbox.EventType, outbox.AggregateID, outbox.Payload)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateStatusAndMarkProcessed applies a status transition and records
// the triggering eventId as processed in the same transaction (invariant
// I4): either both happen or neither does, so a redelivered event can
// never reapply a transition it already caused.
func (s *Store) UpdateStatusAndMarkProcessed(ctx context.Context, id uuid.UUID, newStatus domain.OrderStatus, eventID, eventType string) (*domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_events (event_id, event_type, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrDuplicateEvent
	}

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	current, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(current.Status, newStatus) {
		return nil, domain.ErrInvalidStatusTransition
	}

	row = tx.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderColumns, id, newStatus)
	updated, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// LeaseOutboxBatch claims up to limit unpublished, due rows with
// retryCount <= maxRetries using FOR UPDATE SKIP LOCKED so concurrent
// publisher instances never contend for the same row. A row already at
// maxRetries is still leasable for its final attempt (spec.md §4.4); it
// drops out once MarkPublished or MarkPublishedForDLQ flips published.
func (s *Store) LeaseOutboxBatch(ctx context.Context, limit, maxRetries int, now time.Time) ([]domain.OutboxRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, aggregate_id, payload, published, retry_count, next_retry_at, created_at, published_at
		FROM outbox_events
		WHERE published = false
		  AND retry_count <= $2
		  AND (next_retry_at IS NULL OR next_retry_at <= $3)
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit, maxRetries, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OutboxRecord
	for rows.Next() {
		var r domain.OutboxRecord
		if err := rows.Scan(&r.ID, &r.EventType, &r.AggregateID, &r.Payload, &r.Published, &r.RetryCount, &r.NextRetryAt, &r.CreatedAt, &r.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) MarkPublished(ctx context.Context, id uuid.UUID, eventID, eventType string, publishedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `UPDATE outbox_events SET published = true, published_at = $2 WHERE id = $1`, id, publishedAt)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO processed_events (event_id, event_type, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) ScheduleRetry(ctx context.Context, id uuid.UUID, newRetryCount int, nextRetryAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET retry_count = $2, next_retry_at = $3 WHERE id = $1
	`, id, newRetryCount, nextRetryAt)
	return err
}

func (s *Store) MarkPublishedForDLQ(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET published = true, published_at = $2 WHERE id = $1
	`, id, publishedAt)
	return err
}

var _ domain.Store = (*Store)(nil)
