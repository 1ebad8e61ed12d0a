// Package rabbitmq is an optional realization of domain.EventBus backed by
// a real broker, adapted from the join-service outbox worker's
// publisher-confirms connection handling. It is wired in only when
// EVENT_BUS_DRIVER=rabbitmq; the default is the in-process bus.
package rabbitmq

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/elik56a/orderflow/internal/domain"
	"github.com/elik56a/orderflow/internal/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

const confirmWait = 2 * time.Second

// Bus publishes to a topic exchange, using the topic name as the routing
// key, and declares one durable queue per Subscribe call bound to that
// routing key.
type Bus struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func New(url, exchange string) *Bus {
	return &Bus{url: strings.TrimSpace(url), exchange: strings.TrimSpace(exchange)}
}

// Connect dials the broker, opens one channel, declares the topic
// exchange, and enables publisher confirms. It must be called once
// before Publish or Subscribe.
func (b *Bus) Connect(ctx context.Context) error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("exchange declare %q: %w", b.exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}

	b.mu.Lock()
	b.conn, b.ch = conn, ch
	b.mu.Unlock()
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// Publish sends payload to the exchange with topic as the routing key and
// blocks for the broker's publisher-confirm ack. A nacked or unconfirmed
// publish is reported as an error so the outbox publisher retries it.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("rabbitmq bus: not connected")
	}

	confirmCh := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	returnCh := ch.NotifyReturn(make(chan amqp.Return, 1))

	err := ch.PublishWithContext(ctx, b.exchange, topic, true, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish to %q: %w", topic, err)
	}

	select {
	case ret := <-returnCh:
		return fmt.Errorf("publish to %q returned: code=%d text=%s", topic, ret.ReplyCode, ret.ReplyText)
	case conf := <-confirmCh:
		if !conf.Ack {
			return fmt.Errorf("publish to %q nacked by broker", topic)
		}
		return nil
	case <-time.After(confirmWait):
		return fmt.Errorf("publish to %q: confirm timeout", topic)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe declares a durable queue bound to topic and delivers each
// message to handler, acking on return and requeuing (nack-requeue) on
// panic so the message isn't lost.
func (b *Bus) Subscribe(topic string, handler func(ctx context.Context, payload []byte)) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("rabbitmq bus: not connected")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("subscribe channel for %q: %w", topic, err)
	}

	queueName := "orderflow." + topic
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("queue declare %q: %w", queueName, err)
	}
	if err := ch.QueueBind(q.Name, topic, b.exchange, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("queue bind %q -> %q: %w", q.Name, topic, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("qos: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "orderflow", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume %q: %w", q.Name, err)
	}

	go func() {
		defer ch.Close()
		for d := range deliveries {
			dispatch(context.Background(), topic, d, handler)
		}
	}()
	return nil
}

func dispatch(ctx context.Context, topic string, d amqp.Delivery, handler func(ctx context.Context, payload []byte)) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error().
				Str("topic", topic).
				Interface("panic", r).
				Msg("rabbitmq subscriber panicked; requeuing delivery")
			_ = d.Nack(false, true)
		}
	}()
	handler(ctx, d.Body)
	_ = d.Ack(false)
}

var _ domain.EventBus = (*Bus)(nil)
