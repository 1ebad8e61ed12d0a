package simulated

import (
	"context"
	"testing"

	"github.com/elik56a/orderflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollaboratorReportsRequestedQuantityAvailable(t *testing.T) {
	c := New(0)

	got, err := c.CheckBatchAvailability(context.Background(), []domain.InventoryItemRequest{
		{ProductID: "p-1", Quantity: 5},
		{ProductID: "p-2", Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, []domain.InventoryAvailability{
		{ProductID: "p-1", Available: true, AvailableQuantity: 5},
		{ProductID: "p-2", Available: true, AvailableQuantity: 1},
	}, got)
}

func TestCollaboratorAlwaysFailsAtFullRate(t *testing.T) {
	c := New(100)

	_, err := c.CheckBatchAvailability(context.Background(), []domain.InventoryItemRequest{{ProductID: "p-1", Quantity: 1}})

	assert.Error(t, err)
}

func TestCollaboratorClampsOutOfRangeRate(t *testing.T) {
	c := New(250)
	assert.Equal(t, 100, c.failureRatePercent)

	c = New(-5)
	assert.Equal(t, 0, c.failureRatePercent)
}
