// Package simulated is a fake external delivery collaborator: it
// subscribes to order-events and, after fixed delays, emits the
// order.shipped then order.delivered events on delivery-events that a
// real carrier integration would otherwise produce. It exists to drive
// the order lifecycle end to end without a live shipping provider wired
// up (spec.md §8 scenario 4).
package simulated

import (
	"context"
	"encoding/json"
	"time"

	"github.com/elik56a/orderflow/internal/domain"
	"github.com/elik56a/orderflow/internal/pkg/logger"
	"github.com/google/uuid"
)

type Collaborator struct {
	bus          domain.EventBus
	shipDelay    time.Duration
	deliverDelay time.Duration
}

func New(bus domain.EventBus, shipDelay, deliverDelay time.Duration) *Collaborator {
	if shipDelay <= 0 {
		shipDelay = 2 * time.Second
	}
	if deliverDelay <= 0 {
		deliverDelay = 4 * time.Second
	}
	return &Collaborator{bus: bus, shipDelay: shipDelay, deliverDelay: deliverDelay}
}

// Start subscribes to order-events and begins the simulated fulfillment
// timeline for every order.created it observes.
func (c *Collaborator) Start() error {
	return c.bus.Subscribe(domain.TopicOrderEvents, c.onOrderEvent)
}

func (c *Collaborator) onOrderEvent(ctx context.Context, payload []byte) {
	var probe struct {
		EventType string `json:"eventType"`
		OrderID   string `json:"orderId"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return
	}
	if probe.EventType != domain.EventTypeOrderCreated || probe.OrderID == "" {
		return
	}

	go c.simulateFulfillment(probe.OrderID)
}

func (c *Collaborator) simulateFulfillment(orderID string) {
	time.Sleep(c.shipDelay)
	c.emit(orderID, domain.EventTypeOrderShipped)

	time.Sleep(c.deliverDelay)
	c.emit(orderID, domain.EventTypeOrderDelivered)
}

func (c *Collaborator) emit(orderID, eventType string) {
	ctx := context.Background()
	evt := domain.DeliveryStatusEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: domain.RFC3339UTC(time.Now()),
		OrderID:   orderID,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.WithCtx(ctx).Error().Err(err).Msg("simulated delivery: failed to marshal event")
		return
	}
	if err := c.bus.Publish(ctx, domain.TopicDeliveryEvents, payload); err != nil {
		logger.WithCtx(ctx).Error().Err(err).Str("order_id", orderID).Str("event_type", eventType).Msg("simulated delivery: publish failed")
	}
}
