// Package orderservice is C5: order creation and status transitions. It
// owns no storage of its own — every mutation is delegated to the
// domain.Store transaction that makes it durable — and it is the only
// caller of the inventory client and the only producer of order.created
// outbox rows.
package orderservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elik56a/orderflow/internal/audit"
	"github.com/elik56a/orderflow/internal/domain"
	"github.com/elik56a/orderflow/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	store     domain.Store
	inventory domain.InventoryClient
	audit     *audit.Logger
}

func New(store domain.Store, inventory domain.InventoryClient, auditLogger *audit.Logger) *Service {
	return &Service{store: store, inventory: inventory, audit: auditLogger}
}

// CreateOrderInput is the validated shape of an incoming order request.
type CreateOrderInput struct {
	CustomerID     string
	Items          []domain.Item
	IdempotencyKey string
}

// InsufficientInventoryDetail names one item that failed availability.
type InsufficientInventoryDetail struct {
	ProductID         string
	RequestedQuantity int
	AvailableQuantity int
}

// InsufficientInventoryError carries the per-item detail spec.md §6
// requires in the 409 response body. It wraps domain.ErrInsufficientInventory
// so callers can still match it with errors.Is.
type InsufficientInventoryError struct {
	Details []InsufficientInventoryDetail
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for %d item(s)", len(e.Details))
}

func (e *InsufficientInventoryError) Unwrap() error {
	return domain.ErrInsufficientInventory
}

// CreateOrder validates the request, checks batch availability, computes
// the total with fixed-point decimal arithmetic, and persists the order
// together with its order.created outbox row in one transaction.
//
// Idempotency: a request replayed with the same idempotency key returns
// the original order unchanged, without re-checking inventory or writing
// a second outbox row (invariant: CreateOrder is exactly-once per key).
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, fmt.Errorf("%w: customerId is required", domain.ErrValidation)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: items must not be empty", domain.ErrValidation)
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, fmt.Errorf("%w: productId is required", domain.ErrValidation)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: unitPrice must not be negative", domain.ErrValidation)
		}
	}

	if in.IdempotencyKey != "" {
		existing, err := s.store.FindOrderByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	requests := make([]domain.InventoryItemRequest, len(in.Items))
	for i, it := range in.Items {
		requests[i] = domain.InventoryItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	availability, err := s.inventory.CheckBatchAvailability(ctx, requests)
	if err != nil {
		return nil, err
	}

	var insufficient []InsufficientInventoryDetail
	for i, avail := range availability {
		if !avail.Available || avail.AvailableQuantity < in.Items[i].Quantity {
			insufficient = append(insufficient, InsufficientInventoryDetail{
				ProductID:         in.Items[i].ProductID,
				RequestedQuantity: in.Items[i].Quantity,
				AvailableQuantity: avail.AvailableQuantity,
			})
		}
	}
	if len(insufficient) > 0 {
		s.audit.OrderRejectedInsufficientInventory(ctx, in.CustomerID, len(insufficient))
		return nil, &InsufficientInventoryError{Details: insufficient}
	}

	total := decimal.Zero
	for _, it := range in.Items {
		total = total.Add(it.LineTotal())
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:             uuid.New(),
		CustomerID:     in.CustomerID,
		Items:          in.Items,
		TotalAmount:    total,
		Status:         domain.StatusPendingShipment,
		IdempotencyKey: in.IdempotencyKey,
	}

	payload, err := buildOrderCreatedPayload(order, now)
	if err != nil {
		return nil, err
	}

	outbox := domain.OutboxRecord{
		ID:          uuid.New(),
		EventType:   domain.EventTypeOrderCreated,
		AggregateID: order.ID,
		Payload:     payload,
	}

	created, err := s.store.CreateOrderWithOutbox(ctx, order, outbox)
	if err != nil {
		return nil, err
	}

	logger.WithCtx(ctx).Info().
		Str("order_id", created.ID.String()).
		Str("customer_id", created.CustomerID).
		Str("total_amount", created.TotalAmount.StringFixed(2)).
		Msg("order created")
	s.audit.OrderCreated(ctx, created.ID.String(), created.CustomerID, created.TotalAmount.StringFixed(2), created.IdempotencyKey)

	return created, nil
}

func buildOrderCreatedPayload(order domain.Order, now time.Time) ([]byte, error) {
	items := make([]domain.EventItem, len(order.Items))
	for i, it := range order.Items {
		items[i] = domain.EventItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.UnitPrice.StringFixed(2)}
	}
	evt := domain.OrderCreatedEvent{
		EventID:     uuid.New().String(),
		EventType:   domain.EventTypeOrderCreated,
		Timestamp:   domain.RFC3339UTC(now),
		OrderID:     order.ID.String(),
		CustomerID:  order.CustomerID,
		Items:       items,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Status:      string(order.Status),
		CreatedAt:   domain.RFC3339UTC(now),
	}
	return json.Marshal(evt)
}

// UpdateOrderStatus applies a delivery-driven status transition. It
// delegates entirely to the store's single-transaction
// UpdateStatusAndMarkProcessed so the transition and the idempotency
// marker for eventID are committed atomically (invariant I4).
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus domain.OrderStatus, eventID, eventType string) (*domain.Order, error) {
	updated, err := s.store.UpdateStatusAndMarkProcessed(ctx, orderID, newStatus, eventID, eventType)
	if err != nil {
		return nil, err
	}

	logger.WithCtx(ctx).Info().
		Str("order_id", orderID.String()).
		Str("new_status", string(newStatus)).
		Str("event_id", eventID).
		Msg("order status updated")

	return updated, nil
}
