// Package domain holds the shared value types, sentinel errors, and
// component interfaces that the order service, the outbox publisher, and
// the status consumer all depend on. Nothing here talks to Postgres,
// RabbitMQ, or HTTP directly — that's the infrastructure packages' job.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the order's position in its forward-only lifecycle.
type OrderStatus string

const (
	StatusPendingShipment OrderStatus = "PendingShipment"
	StatusShipped         OrderStatus = "Shipped"
	StatusDelivered       OrderStatus = "Delivered"
)

// allowedTransitions encodes the partial order
// PendingShipment < Shipped < Delivered with no other edges.
var allowedTransitions = map[OrderStatus]OrderStatus{
	StatusPendingShipment: StatusShipped,
	StatusShipped:         StatusDelivered,
}

// CanTransition reports whether from -> to is a legal forward-only move.
func CanTransition(from, to OrderStatus) bool {
	next, ok := allowedTransitions[from]
	return ok && next == to
}

// EventTypeForStatus derives the outbound/marker event type for a status,
// e.g. Shipped -> "order.shipped".
func EventTypeForStatus(s OrderStatus) string {
	lower := strings.ToLower(string(s))
	return "order." + strings.ReplaceAll(lower, " ", "_")
}

// displayStatus maps the canonical enum value to the spaced form clients
// see on the wire (spec.md §6, §8 scenario 1). The enum itself and every
// bus payload keep the canonical no-space form.
var displayStatus = map[OrderStatus]string{
	StatusPendingShipment: "Pending Shipment",
	StatusShipped:         "Shipped",
	StatusDelivered:       "Delivered",
}

// DisplayStatus returns the client-facing rendering of s.
func DisplayStatus(s OrderStatus) string {
	if d, ok := displayStatus[s]; ok {
		return d
	}
	return string(s)
}

// Sentinel errors. Matched with errors.Is at every component boundary;
// none of these are ever used as exception-style control flow.
var (
	ErrInsufficientInventory  = errors.New("insufficient inventory")
	ErrInventoryUnavailable   = errors.New("inventory service unavailable")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrDuplicateEvent         = errors.New("duplicate event")
	ErrValidation             = errors.New("validation error")
	ErrCircuitOpen            = errors.New("circuit open")
)

// Item is one line of an order, quoted at acceptance time.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns Quantity * UnitPrice.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the persisted business record. TotalAmount never changes
// after insert (invariant I5); Status only moves forward (invariant I3).
type Order struct {
	ID             uuid.UUID
	CustomerID     string
	Items          []Item
	TotalAmount    decimal.Decimal
	Status         OrderStatus
	IdempotencyKey string // empty when none was supplied
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OutboxRecord is a domain event awaiting delivery to the bus, co-committed
// with the write that produced it (invariant I1).
type OutboxRecord struct {
	ID            uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	Payload       []byte // the exact bytes published to the bus
	Published     bool
	RetryCount    int
	NextRetryAt   *time.Time
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// ProcessedEventMarker proves a given eventId has been handled exactly
// once, either by the outbox publisher (post-publish) or by the order
// service (post status-application). Keyed by the payload eventId, not
// the outbox row id: a row re-published after a failed MarkPublished
// carries the same payload eventId.
type ProcessedEventMarker struct {
	EventID     string
	EventType   string
	ProcessedAt time.Time
}

// InventoryAvailability is one line of CheckBatchAvailability's response,
// preserving the input item's position.
type InventoryAvailability struct {
	ProductID         string
	Available         bool
	AvailableQuantity int
}

// InventoryItemRequest is one line of a batch availability check.
type InventoryItemRequest struct {
	ProductID string
	Quantity  int
}

// InventoryClient is C2: batch availability check behind a circuit
// breaker. Implementations never retry internally; the caller decides.
type InventoryClient interface {
	CheckBatchAvailability(ctx context.Context, items []InventoryItemRequest) ([]InventoryAvailability, error)
}

// ExternalInventoryCollaborator is the RPC shape the real, external
// inventory system must satisfy (spec gives only this shape; the
// production implementation is out of scope for this repo).
type ExternalInventoryCollaborator interface {
	CheckBatchAvailability(ctx context.Context, items []InventoryItemRequest) ([]InventoryAvailability, error)
}

// BreakerState is the circuit breaker's externally observable state.
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker is C1: guards a single external operation.
type CircuitBreaker interface {
	Execute(ctx context.Context, op func(ctx context.Context) error) error
	State() BreakerState
	FailureCount() int
	LastFailureAt() time.Time
	NextAttemptAt() time.Time
}

// EventBus is C3: in-process topic fan-out, abstracting whatever broker
// (or none) eventually realizes it. Delivery is at-least-once per
// subscriber registered at publish time; a subscriber fault must not
// abort fan-out to the others.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler func(ctx context.Context, payload []byte)) error
}

// Store is C4: the sole owner of orders, outbox rows, and processed
// event markers. Every mutation below is transactional as described in
// spec.md §4.4.
type Store interface {
	FindOrderByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	CreateOrderWithOutbox(ctx context.Context, order Order, outbox OutboxRecord) (*Order, error)
	FindOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateStatusAndMarkProcessed(ctx context.Context, id uuid.UUID, newStatus OrderStatus, eventID, eventType string) (*Order, error)

	LeaseOutboxBatch(ctx context.Context, limit, maxRetries int, now time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, eventID, eventType string, publishedAt time.Time) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, newRetryCount int, nextRetryAt time.Time) error
	MarkPublishedForDLQ(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
}
