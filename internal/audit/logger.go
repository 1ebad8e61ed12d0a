// Package audit provides structured audit logging for order lifecycle
// events, adapted from the join-service audit logger to this domain's
// business events instead of join/cancel/ban actions.
package audit

import (
	"context"

	appctx "github.com/elik56a/orderflow/internal/pkg/context"
	"github.com/rs/zerolog"
)

type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{log: log.With().Bool("audit", true).Logger()}
}

func (l *Logger) OrderCreated(ctx context.Context, orderID, customerID, totalAmount, idempotencyKey string) {
	l.log.Info().
		Str("action", "order_created").
		Str("order_id", orderID).
		Str("customer_id", customerID).
		Str("total_amount", totalAmount).
		Str("idempotency_key", idempotencyKey).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("order created")
}

func (l *Logger) OrderRejectedInsufficientInventory(ctx context.Context, customerID string, itemCount int) {
	l.log.Warn().
		Str("action", "order_rejected_insufficient_inventory").
		Str("customer_id", customerID).
		Int("item_count", itemCount).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("order rejected: insufficient inventory")
}

func (l *Logger) StatusUpdated(ctx context.Context, orderID, newStatus, eventID string) {
	l.log.Info().
		Str("action", "status_updated").
		Str("order_id", orderID).
		Str("new_status", newStatus).
		Str("event_id", eventID).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("order status updated")
}

func (l *Logger) DuplicateEventSuppressed(ctx context.Context, eventID, eventType string) {
	l.log.Info().
		Str("action", "duplicate_event_suppressed").
		Str("event_id", eventID).
		Str("event_type", eventType).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("duplicate event suppressed")
}

func (l *Logger) OutboxSent(ctx context.Context, outboxID, eventType string) {
	l.log.Debug().
		Str("action", "outbox_sent").
		Str("outbox_id", outboxID).
		Str("event_type", eventType).
		Msg("outbox row published")
}

func (l *Logger) OutboxDead(ctx context.Context, outboxID, eventType string, retries int) {
	l.log.Error().
		Str("action", "outbox_dead").
		Str("outbox_id", outboxID).
		Str("event_type", eventType).
		Int("retries", retries).
		Msg("outbox row moved to dead-letter queue")
}
