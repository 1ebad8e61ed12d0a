package orderservice

import (
	"context"
	"errors"
	"testing"

	"github.com/elik56a/orderflow/internal/audit"
	"github.com/elik56a/orderflow/internal/domain"
	"github.com/elik56a/orderflow/internal/store/memstore"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInventory struct {
	resp []domain.InventoryAvailability
	err  error
}

func (f *fakeInventory) CheckBatchAvailability(ctx context.Context, items []domain.InventoryItemRequest) ([]domain.InventoryAvailability, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	out := make([]domain.InventoryAvailability, len(items))
	for i, it := range items {
		out[i] = domain.InventoryAvailability{ProductID: it.ProductID, Available: true, AvailableQuantity: it.Quantity}
	}
	return out, nil
}

func validInput() CreateOrderInput {
	return CreateOrderInput{
		CustomerID: "cust-1",
		Items: []domain.Item{
			{ProductID: "p-1", Quantity: 2, UnitPrice: decimal.NewFromFloat(10.50)},
			{ProductID: "p-2", Quantity: 1, UnitPrice: decimal.NewFromFloat(5.00)},
		},
	}
}

func TestCreateOrderComputesTotalAndPersists(t *testing.T) {
	svc := New(memstore.New(), &fakeInventory{}, audit.New(zerolog.Nop()))

	order, err := svc.CreateOrder(context.Background(), validInput())

	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(26.00).Equal(order.TotalAmount))
	assert.Equal(t, domain.StatusPendingShipment, order.Status)
}

func TestCreateOrderRejectsEmptyCustomerID(t *testing.T) {
	svc := New(memstore.New(), &fakeInventory{}, audit.New(zerolog.Nop()))
	in := validInput()
	in.CustomerID = ""

	_, err := svc.CreateOrder(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	svc := New(memstore.New(), &fakeInventory{}, audit.New(zerolog.Nop()))
	in := validInput()
	in.Items = nil

	_, err := svc.CreateOrder(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateOrderReturnsInsufficientInventoryDetails(t *testing.T) {
	svc := New(memstore.New(), &fakeInventory{resp: []domain.InventoryAvailability{
		{ProductID: "p-1", Available: false, AvailableQuantity: 1},
		{ProductID: "p-2", Available: true, AvailableQuantity: 1},
	}}, audit.New(zerolog.Nop()))

	_, err := svc.CreateOrder(context.Background(), validInput())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)

	var detailErr *InsufficientInventoryError
	require.True(t, errors.As(err, &detailErr))
	require.Len(t, detailErr.Details, 1)
	assert.Equal(t, "p-1", detailErr.Details[0].ProductID)
	assert.Equal(t, 2, detailErr.Details[0].RequestedQuantity)
	assert.Equal(t, 1, detailErr.Details[0].AvailableQuantity)
}

func TestCreateOrderPropagatesInventoryUnavailable(t *testing.T) {
	svc := New(memstore.New(), &fakeInventory{err: domain.ErrInventoryUnavailable}, audit.New(zerolog.Nop()))

	_, err := svc.CreateOrder(context.Background(), validInput())

	assert.ErrorIs(t, err, domain.ErrInventoryUnavailable)
}

func TestCreateOrderIsIdempotentOnReplayedKey(t *testing.T) {
	svc := New(memstore.New(), &fakeInventory{}, audit.New(zerolog.Nop()))
	in := validInput()
	in.IdempotencyKey = "req-123"

	first, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)

	second, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestUpdateOrderStatusAppliesForwardTransition(t *testing.T) {
	store := memstore.New()
	svc := New(store, &fakeInventory{}, audit.New(zerolog.Nop()))
	order, err := svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)

	updated, err := svc.UpdateOrderStatus(context.Background(), order.ID, domain.StatusShipped, "evt-1", domain.EventTypeOrderShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, updated.Status)
}

func TestUpdateOrderStatusRejectsDuplicateEvent(t *testing.T) {
	store := memstore.New()
	svc := New(store, &fakeInventory{}, audit.New(zerolog.Nop()))
	order, err := svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(context.Background(), order.ID, domain.StatusShipped, "evt-1", domain.EventTypeOrderShipped)
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(context.Background(), order.ID, domain.StatusShipped, "evt-1", domain.EventTypeOrderShipped)
	assert.ErrorIs(t, err, domain.ErrDuplicateEvent)
}

func TestUpdateOrderStatusRejectsUnknownOrder(t *testing.T) {
	svc := New(memstore.New(), &fakeInventory{}, audit.New(zerolog.Nop()))

	_, err := svc.UpdateOrderStatus(context.Background(), domain.Order{}.ID, domain.StatusShipped, "evt-1", domain.EventTypeOrderShipped)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
