package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elik56a/orderflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, Timeout: time.Second, ResetTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		err := b.Execute(context.Background(), func(ctx context.Context) error { return errBoom })
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, domain.Closed, b.State())
	}

	err := b.Execute(context.Background(), func(ctx context.Context) error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, domain.Open, b.State())
	assert.Equal(t, 3, b.FailureCount())
}

func TestBreakerFailsFastWhenOpen(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Timeout: time.Second, ResetTimeout: time.Minute})

	err := b.Execute(context.Background(), func(ctx context.Context) error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, domain.Open, b.State())

	called := false
	err = b.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.False(t, called, "op must not run while circuit is open and cooldown hasn't elapsed")
}

func TestBreakerHalfOpenSuccessCloses(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Timeout: time.Second, ResetTimeout: 10 * time.Millisecond})

	err := b.Execute(context.Background(), func(ctx context.Context) error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, domain.Open, b.State())

	time.Sleep(20 * time.Millisecond)

	err = b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, domain.Closed, b.State())
	assert.Equal(t, 0, b.FailureCount())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Timeout: time.Second, ResetTimeout: 10 * time.Millisecond})

	require.ErrorIs(t, b.Execute(context.Background(), func(ctx context.Context) error { return errBoom }), errBoom)
	require.Equal(t, domain.Open, b.State())
	firstAttempt := b.NextAttemptAt()

	time.Sleep(20 * time.Millisecond)

	err := b.Execute(context.Background(), func(ctx context.Context) error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, domain.Open, b.State())
	assert.True(t, b.NextAttemptAt().After(firstAttempt))
}

func TestBreakerTimeoutCountsAsFailure(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Timeout: 5 * time.Millisecond, ResetTimeout: time.Minute})

	err := b.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, domain.Open, b.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New(Config{FailureThreshold: 3, Timeout: time.Second, ResetTimeout: time.Minute})

	require.ErrorIs(t, b.Execute(context.Background(), func(ctx context.Context) error { return errBoom }), errBoom)
	require.NoError(t, b.Execute(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, 0, b.FailureCount())
	assert.Equal(t, domain.Closed, b.State())
}
