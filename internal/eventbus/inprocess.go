// Package eventbus implements C3: an in-process, topic-based publish
// subscribe bus. It is the bus the core system talks to directly; an
// external broker (see the rabbitmq subpackage) is an optional
// realization bolted on behind the same domain.EventBus interface.
package eventbus

import (
	"context"
	"sync"

	"github.com/elik56a/orderflow/internal/domain"
	"github.com/elik56a/orderflow/internal/pkg/logger"
)

// Handler processes one published message. A handler panic never aborts
// fan-out to the other subscribers of the same topic.
type Handler func(ctx context.Context, payload []byte)

// InProcessBus fans a published message out, synchronously and in
// registration order, to every subscriber of its topic. A single
// publisher's messages are delivered to each subscriber in the order
// they were published; messages from different publishers interleave
// only as their Publish calls interleave.
type InProcessBus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
}

func New() *InProcessBus {
	return &InProcessBus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers handler for topic. Subscription is not safe to
// call concurrently with an in-flight Publish to the same topic from
// the caller's perspective of ordering guarantees, but it will never
// race or panic — the subscriber list is copied under Publish's read lock.
func (b *InProcessBus) Subscribe(topic string, handler func(ctx context.Context, payload []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
	return nil
}

// Publish fans payload out to every subscriber of topic, synchronously,
// isolating each subscriber's panics and letting the others still run.
// It never returns an error itself; a subscriber's own errors are its
// own concern to log and handle.
func (b *InProcessBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subscribers[topic]))
	copy(handlers, b.subscribers[topic])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(ctx, topic, h, payload)
	}
	return nil
}

func (b *InProcessBus) invoke(ctx context.Context, topic string, h Handler, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error().
				Str("topic", topic).
				Interface("panic", r).
				Msg("event bus subscriber panicked; other subscribers unaffected")
		}
	}()
	h(ctx, payload)
}

var _ domain.EventBus = (*InProcessBus)(nil)
