package eventbus

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var got []string

	require.NoError(t, b.Subscribe("topic-a", func(ctx context.Context, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "sub1:"+string(payload))
	}))
	require.NoError(t, b.Subscribe("topic-a", func(ctx context.Context, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "sub2:"+string(payload))
	}))

	require.NoError(t, b.Publish(context.Background(), "topic-a", []byte("hello")))

	assert.Equal(t, []string{"sub1:hello", "sub2:hello"}, got)
}

func TestPublishOnlyReachesMatchingTopic(t *testing.T) {
	b := New()
	called := false
	require.NoError(t, b.Subscribe("topic-a", func(ctx context.Context, payload []byte) { called = true }))

	require.NoError(t, b.Publish(context.Background(), "topic-b", []byte("x")))

	assert.False(t, called)
}

func TestPublishIsolatesPanickingSubscriber(t *testing.T) {
	b := New()
	secondRan := false

	require.NoError(t, b.Subscribe("topic-a", func(ctx context.Context, payload []byte) {
		panic("boom")
	}))
	require.NoError(t, b.Subscribe("topic-a", func(ctx context.Context, payload []byte) {
		secondRan = true
	}))

	require.NoError(t, b.Publish(context.Background(), "topic-a", []byte("x")))

	assert.True(t, secondRan, "a panicking subscriber must not prevent later subscribers from running")
}

func TestPublishWithNoSubscribersIsANoop(t *testing.T) {
	b := New()
	assert.NoError(t, b.Publish(context.Background(), "nobody-listening", []byte("x")))
}

func TestPublishPerPublisherOrderingPreserved(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var got []string
	require.NoError(t, b.Subscribe("topic-a", func(ctx context.Context, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(payload))
	}))

	for _, msg := range []string{"1", "2", "3"} {
		require.NoError(t, b.Publish(context.Background(), "topic-a", []byte(msg)))
	}

	assert.Equal(t, []string{"1", "2", "3"}, got)
}
