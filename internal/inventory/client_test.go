package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elik56a/orderflow/internal/breaker"
	"github.com/elik56a/orderflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollaborator struct {
	resp []domain.InventoryAvailability
	err  error
	delay time.Duration
}

func (f *fakeCollaborator) CheckBatchAvailability(ctx context.Context, items []domain.InventoryItemRequest) ([]domain.InventoryAvailability, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestCheckBatchAvailabilityPreservesOrder(t *testing.T) {
	want := []domain.InventoryAvailability{
		{ProductID: "p-1", Available: true, AvailableQuantity: 10},
		{ProductID: "p-2", Available: false, AvailableQuantity: 0},
	}
	c := New(&fakeCollaborator{resp: want}, breaker.New(breaker.Config{}))

	got, err := c.CheckBatchAvailability(context.Background(), []domain.InventoryItemRequest{
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-2", Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCheckBatchAvailabilityMapsCollaboratorErrors(t *testing.T) {
	c := New(&fakeCollaborator{err: errors.New("rpc failed")}, breaker.New(breaker.Config{FailureThreshold: 5}))

	_, err := c.CheckBatchAvailability(context.Background(), []domain.InventoryItemRequest{{ProductID: "p-1", Quantity: 1}})

	assert.ErrorIs(t, err, domain.ErrInventoryUnavailable)
}

func TestCheckBatchAvailabilityMapsOpenBreaker(t *testing.T) {
	b := breaker.New(breaker.Config{FailureThreshold: 1, Timeout: time.Second, ResetTimeout: time.Minute})
	c := New(&fakeCollaborator{err: errors.New("rpc failed")}, b)

	_, err := c.CheckBatchAvailability(context.Background(), []domain.InventoryItemRequest{{ProductID: "p-1", Quantity: 1}})
	require.ErrorIs(t, err, domain.ErrInventoryUnavailable)
	require.Equal(t, domain.Open, b.State())

	_, err = c.CheckBatchAvailability(context.Background(), []domain.InventoryItemRequest{{ProductID: "p-1", Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrInventoryUnavailable)
}

func TestCheckBatchAvailabilityMapsTimeout(t *testing.T) {
	b := breaker.New(breaker.Config{FailureThreshold: 5, Timeout: 5 * time.Millisecond, ResetTimeout: time.Minute})
	c := New(&fakeCollaborator{delay: 50 * time.Millisecond}, b)

	_, err := c.CheckBatchAvailability(context.Background(), []domain.InventoryItemRequest{{ProductID: "p-1", Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrInventoryUnavailable)
}
