// Package statusconsumer is C7: subscribes to delivery-events and drives
// the order's forward-only status transitions. It is deliberately
// tolerant of malformed or unrecognized messages — it logs and drops
// them rather than ever NACKing, since the in-process bus has no
// redelivery mechanism to NACK into.
package statusconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/elik56a/orderflow/internal/audit"
	"github.com/elik56a/orderflow/internal/domain"
	"github.com/elik56a/orderflow/internal/pkg/logger"
	"github.com/google/uuid"
)

var eventTypeToStatus = map[string]domain.OrderStatus{
	domain.EventTypeOrderShipped:   domain.StatusShipped,
	domain.EventTypeOrderDelivered: domain.StatusDelivered,
}

type orderStatusUpdater interface {
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus domain.OrderStatus, eventID, eventType string) (*domain.Order, error)
}

type Consumer struct {
	orders orderStatusUpdater
	audit  *audit.Logger
}

func New(orders orderStatusUpdater, auditLogger *audit.Logger) *Consumer {
	return &Consumer{orders: orders, audit: auditLogger}
}

// Subscribe registers the consumer's Handle method on bus's delivery
// topic.
func (c *Consumer) Subscribe(bus domain.EventBus) error {
	return bus.Subscribe(domain.TopicDeliveryEvents, c.Handle)
}

// Handle validates and applies one delivery status event. It never
// returns an error to the bus: every failure path is logged and
// swallowed here so a single bad message can't stall the subscription.
func (c *Consumer) Handle(ctx context.Context, payload []byte) {
	var evt domain.DeliveryStatusEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		logger.WithCtx(ctx).Warn().Err(err).Msg("status consumer: invalid delivery event payload; dropping")
		return
	}

	eventType := strings.TrimSpace(evt.EventType)
	newStatus, recognized := eventTypeToStatus[eventType]
	if !recognized {
		logger.WithCtx(ctx).Warn().Str("event_type", eventType).Msg("status consumer: unrecognized event type; dropping")
		return
	}

	orderIDStr := strings.TrimSpace(evt.OrderID)
	if orderIDStr == "" {
		logger.WithCtx(ctx).Warn().Msg("status consumer: missing orderId; dropping")
		return
	}
	orderID, err := uuid.Parse(orderIDStr)
	if err != nil {
		logger.WithCtx(ctx).Warn().Err(err).Str("order_id", orderIDStr).Msg("status consumer: invalid orderId; dropping")
		return
	}

	eventID := strings.TrimSpace(evt.EventID)
	if eventID == "" {
		logger.WithCtx(ctx).Warn().Str("order_id", orderIDStr).Msg("status consumer: missing eventId; dropping")
		return
	}

	_, err = c.orders.UpdateOrderStatus(ctx, orderID, newStatus, eventID, eventType)
	switch {
	case err == nil:
		c.audit.StatusUpdated(ctx, orderIDStr, string(newStatus), eventID)
	case errors.Is(err, domain.ErrDuplicateEvent):
		c.audit.DuplicateEventSuppressed(ctx, eventID, eventType)
	case errors.Is(err, domain.ErrOrderNotFound):
		logger.WithCtx(ctx).Warn().Str("order_id", orderIDStr).Msg("status consumer: order not found; dropping")
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		logger.WithCtx(ctx).Warn().Str("order_id", orderIDStr).Str("new_status", string(newStatus)).Msg("status consumer: illegal transition; dropping")
	default:
		logger.WithCtx(ctx).Error().Err(err).Str("order_id", orderIDStr).Msg("status consumer: failed to apply status update")
	}
}
