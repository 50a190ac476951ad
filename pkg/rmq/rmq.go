package rmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultPrefetch = 10

// session is one connection with one channel bound to a durable queue.
type session struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func dial(url, queue string) (*session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &session{conn: conn, ch: ch, queue: queue}, nil
}

func (s *session) close() error {
	_ = s.ch.Close()
	return s.conn.Close()
}

// Publisher sends persistent JSON messages to one queue. It is safe for
// concurrent use.
type Publisher struct {
	mu sync.Mutex
	s  *session
}

func NewPublisher(url, queue string) (*Publisher, error) {
	s, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	return &Publisher{s: s}, nil
}

func (p *Publisher) Close() error { return p.s.close() }

func (p *Publisher) PublishJSON(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s.ch.PublishWithContext(ctx, "", p.s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Consumer reads the queue with manual acks.
type Consumer struct {
	s *session
}

// NewConsumer limits unacked deliveries to prefetch (10 when prefetch <= 0).
func NewConsumer(url, queue string, prefetch int) (*Consumer, error) {
	s, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	if err := s.ch.Qos(prefetch, 0, false); err != nil {
		s.close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{s: s}, nil
}

func (c *Consumer) Consume() (<-chan amqp.Delivery, error) {
	return c.s.ch.Consume(c.s.queue, "", false, false, false, false, nil)
}

func (c *Consumer) Close() error { return c.s.close() }
