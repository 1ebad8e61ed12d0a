// Package inventory implements C2: a batch availability check against the
// external inventory collaborator, guarded by a circuit breaker (C1). It
// never retries internally and never reorders the caller's items.
package inventory

import (
	"context"

	"github.com/elik56a/orderflow/internal/domain"
	"github.com/elik56a/orderflow/internal/pkg/logger"
)

// Client wraps an ExternalInventoryCollaborator with breaker protection.
// It satisfies domain.InventoryClient.
type Client struct {
	collaborator domain.ExternalInventoryCollaborator
	breaker      domain.CircuitBreaker
}

func New(collaborator domain.ExternalInventoryCollaborator, breaker domain.CircuitBreaker) *Client {
	return &Client{collaborator: collaborator, breaker: breaker}
}

// CheckBatchAvailability runs the collaborator call through the breaker.
// Any failure — a collaborator error, a breaker timeout, or the breaker
// already being open — collapses to domain.ErrInventoryUnavailable so
// callers never need to distinguish the cause.
func (c *Client) CheckBatchAvailability(ctx context.Context, items []domain.InventoryItemRequest) ([]domain.InventoryAvailability, error) {
	var result []domain.InventoryAvailability

	err := c.breaker.Execute(ctx, func(opCtx context.Context) error {
		res, err := c.collaborator.CheckBatchAvailability(opCtx, items)
		if err != nil {
			return err
		}
		result = res
		return nil
	})

	if err != nil {
		logger.WithCtx(ctx).Warn().
			Err(err).
			Str("breaker_state", c.breaker.State().String()).
			Int("item_count", len(items)).
			Msg("inventory availability check failed")
		return nil, domain.ErrInventoryUnavailable
	}

	return result, nil
}

var _ domain.InventoryClient = (*Client)(nil)
