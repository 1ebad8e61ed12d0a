package domain

import "time"

// Topic names used on the bus (spec.md §4.3/§6).
const (
	TopicOrderEvents   = "order-events"
	TopicDeliveryEvents = "delivery-events"
	TopicDeadLetter    = "dead-letter-queue"
	TopicUnknownEvents = "unknown-events"
)

// Event type strings carried in OutboxRecord.EventType and in payload
// eventType fields.
const (
	EventTypeOrderCreated   = "order.created"
	EventTypeOrderShipped   = "order.shipped"
	EventTypeOrderDelivered = "order.delivered"
	EventTypeDLQ            = "dlq.event"
)

// EventItem is the wire shape of one order line inside OrderCreatedEvent.
type EventItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// OrderCreatedEvent is published on TopicOrderEvents.
type OrderCreatedEvent struct {
	EventID     string      `json:"eventId"`
	EventType   string      `json:"eventType"`
	Timestamp   string      `json:"timestamp"`
	OrderID     string      `json:"orderId"`
	CustomerID  string      `json:"customerId"`
	Items       []EventItem `json:"items"`
	TotalAmount string      `json:"totalAmount"`
	Status      string      `json:"status"`
	CreatedAt   string      `json:"createdAt"`
}

// DeliveryStatusEvent is published on TopicDeliveryEvents by the
// (out-of-scope) delivery collaborator and consumed by the status
// consumer (C7).
type DeliveryStatusEvent struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	Timestamp string `json:"timestamp"`
	OrderID   string `json:"orderId"`
}

// DLQEvent is published on TopicDeadLetter when an outbox row exhausts
// its retry budget.
type DLQEvent struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     string          `json:"timestamp"`
	OriginalEvent OutboxSnapshot  `json:"originalEvent"`
	Reason        string          `json:"reason"`
}

// OutboxSnapshot is the opaque outbox-row snapshot embedded in a DLQEvent.
type OutboxSnapshot struct {
	ID          string `json:"id"`
	EventType   string `json:"eventType"`
	AggregateID string `json:"aggregateId"`
	Payload     string `json:"payload"`
	RetryCount  int    `json:"retryCount"`
	CreatedAt   string `json:"createdAt"`
}

func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// RFC3339UTC formats t the way every bus event timestamp is formatted.
func RFC3339UTC(t time.Time) string {
	return rfc3339(t)
}
