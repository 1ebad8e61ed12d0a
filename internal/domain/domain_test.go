package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to shipped", StatusPendingShipment, StatusShipped, true},
		{"shipped to delivered", StatusShipped, StatusDelivered, true},
		{"pending to delivered direct", StatusPendingShipment, StatusDelivered, false},
		{"shipped to pending backward", StatusShipped, StatusPendingShipment, false},
		{"delivered to anything", StatusDelivered, StatusShipped, false},
		{"self transition", StatusShipped, StatusShipped, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestEventTypeForStatus(t *testing.T) {
	assert.Equal(t, "order.shipped", EventTypeForStatus(StatusShipped))
	assert.Equal(t, "order.delivered", EventTypeForStatus(StatusDelivered))
	assert.Equal(t, "order.pendingshipment", EventTypeForStatus(StatusPendingShipment))
}

func TestItemLineTotal(t *testing.T) {
	i := Item{ProductID: "p-1", Quantity: 3, UnitPrice: decimal.NewFromFloat(10.00)}
	assert.True(t, decimal.NewFromFloat(30.00).Equal(i.LineTotal()))
}
