// Package breaker implements a failure-count circuit breaker guarding a
// single external operation (spec.md §4.1): closed/open/half-open, a
// per-call timeout, and a cooldown before the next probe.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/elik56a/orderflow/internal/domain"
)

const (
	DefaultFailureThreshold = 5
	DefaultTimeout          = 5 * time.Second
	DefaultResetTimeout     = 30 * time.Second
)

type Config struct {
	FailureThreshold int
	Timeout          time.Duration
	ResetTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	return c
}

// Breaker is a mutex-guarded circuit breaker. The zero value is not
// usable; construct with New.
type Breaker struct {
	mu  sync.Mutex
	cfg Config

	state         domain.BreakerState
	failureCount  int
	lastFailureAt time.Time
	nextAttemptAt time.Time
}

func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), state: domain.Closed}
}

// Execute races op against the configured timeout and updates breaker
// state from the outcome. It returns domain.ErrCircuitOpen without
// calling op at all when the breaker is open and the cooldown hasn't
// elapsed.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if !b.allow() {
		return domain.ErrCircuitOpen
	}

	opCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(opCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-opCtx.Done():
		err = opCtx.Err()
	}

	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// allow transitions Open -> HalfOpen once the cooldown has elapsed and
// reports whether the caller may attempt the operation.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.Open:
		if time.Now().Before(b.nextAttemptAt) {
			return false
		}
		b.state = domain.HalfOpen
		return true
	default:
		return true
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.state = domain.Closed
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = time.Now()
	b.failureCount++

	if b.state == domain.HalfOpen || b.failureCount >= b.cfg.FailureThreshold {
		b.state = domain.Open
		b.nextAttemptAt = time.Now().Add(b.cfg.ResetTimeout)
	}
}

func (b *Breaker) State() domain.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

func (b *Breaker) LastFailureAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFailureAt
}

func (b *Breaker) NextAttemptAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextAttemptAt
}

var _ domain.CircuitBreaker = (*Breaker)(nil)
