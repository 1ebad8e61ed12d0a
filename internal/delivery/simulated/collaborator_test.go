package simulated

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/elik56a/orderflow/internal/domain"
	"github.com/elik56a/orderflow/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollaboratorEmitsShippedThenDelivered(t *testing.T) {
	bus := eventbus.New()
	c := New(bus, 5*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, c.Start())

	received := make(chan domain.DeliveryStatusEvent, 2)
	require.NoError(t, bus.Subscribe(domain.TopicDeliveryEvents, func(ctx context.Context, payload []byte) {
		var evt domain.DeliveryStatusEvent
		_ = json.Unmarshal(payload, &evt)
		received <- evt
	}))

	created, _ := json.Marshal(map[string]string{"eventType": domain.EventTypeOrderCreated, "orderId": "order-123"})
	require.NoError(t, bus.Publish(context.Background(), domain.TopicOrderEvents, created))

	first := waitFor(t, received)
	assert.Equal(t, domain.EventTypeOrderShipped, first.EventType)
	assert.Equal(t, "order-123", first.OrderID)

	second := waitFor(t, received)
	assert.Equal(t, domain.EventTypeOrderDelivered, second.EventType)
}

func TestCollaboratorIgnoresNonCreatedEvents(t *testing.T) {
	bus := eventbus.New()
	c := New(bus, time.Millisecond, time.Millisecond)
	require.NoError(t, c.Start())

	received := make(chan struct{}, 1)
	require.NoError(t, bus.Subscribe(domain.TopicDeliveryEvents, func(ctx context.Context, payload []byte) {
		received <- struct{}{}
	}))

	shipped, _ := json.Marshal(map[string]string{"eventType": domain.EventTypeOrderShipped, "orderId": "order-123"})
	require.NoError(t, bus.Publish(context.Background(), domain.TopicOrderEvents, shipped))

	select {
	case <-received:
		t.Fatal("collaborator must not react to non order.created events")
	case <-time.After(30 * time.Millisecond):
	}
}

func waitFor(t *testing.T, ch chan domain.DeliveryStatusEvent) domain.DeliveryStatusEvent {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery event")
		return domain.DeliveryStatusEvent{}
	}
}
