// Package simulated provides a fake external inventory collaborator for
// environments with no real inventory system wired up. It always reports
// every requested item as available at the requested quantity, except for
// an injected failure rate used to exercise the breaker and the
// inventory-unavailable rejection path end to end (spec.md §6's test hook).
package simulated

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/elik56a/orderflow/internal/domain"
)

var errSimulatedFailure = errors.New("simulated inventory collaborator: injected failure")

// Collaborator satisfies domain.ExternalInventoryCollaborator.
type Collaborator struct {
	failureRatePercent int
}

func New(failureRatePercent int) *Collaborator {
	if failureRatePercent < 0 {
		failureRatePercent = 0
	}
	if failureRatePercent > 100 {
		failureRatePercent = 100
	}
	return &Collaborator{failureRatePercent: failureRatePercent}
}

func (c *Collaborator) CheckBatchAvailability(ctx context.Context, items []domain.InventoryItemRequest) ([]domain.InventoryAvailability, error) {
	if c.failureRatePercent > 0 && c.roll() {
		return nil, errSimulatedFailure
	}

	out := make([]domain.InventoryAvailability, len(items))
	for i, item := range items {
		out[i] = domain.InventoryAvailability{
			ProductID:         item.ProductID,
			Available:         true,
			AvailableQuantity: item.Quantity,
		}
	}
	return out, nil
}

// roll reports true with probability failureRatePercent/100, using
// crypto/rand rather than math/rand so callers never need to seed it.
func (c *Collaborator) roll() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		return false
	}
	return n.Int64() < int64(c.failureRatePercent)
}

var _ domain.ExternalInventoryCollaborator = (*Collaborator)(nil)
