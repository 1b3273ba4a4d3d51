package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/actionlog/internal/infrastructure/contracts"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ publishes to a durable topic exchange where the routing key is the
// topic name. The connection is dialled on first use and re-dialled after the
// broker closes it.
type RabbitMQ struct {
	uri      string
	exchange string
	queue    string

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

type RabbitMQOption func(*RabbitMQ)

// WithQueue names the durable queue Consume binds to the topic.
func WithQueue(name string) RabbitMQOption {
	return func(r *RabbitMQ) { r.queue = name }
}

func NewRabbitMQ(uri, exchange string, opts ...RabbitMQOption) *RabbitMQ {
	if exchange == "" {
		exchange = contracts.DefaultExchange
	}
	r := &RabbitMQ{
		uri:      uri,
		exchange: exchange,
		queue:    contracts.TailQueue,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RabbitMQ) channel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if r.conn != nil && !r.conn.IsClosed() && r.ch != nil && !r.ch.IsClosed() {
		return r.ch, nil
	}
	r.resetLocked()

	conn, err := amqp.Dial(r.uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		r.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", r.exchange, err)
	}

	r.conn = conn
	r.ch = ch
	return ch, nil
}

func (r *RabbitMQ) resetLocked() {
	if r.ch != nil {
		_ = r.ch.Close()
		r.ch = nil
	}
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, topic string, body []byte) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		r.exchange, // exchange
		topic,      // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  contracts.HeaderContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			AppId:        contracts.HeaderSource,
			Body:         body,
		},
	)
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			r.mu.Lock()
			r.resetLocked()
			r.mu.Unlock()
		}
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.resetLocked()
	return nil
}

// Consume binds the configured queue to topic and hands every delivery to
// handler. Failed messages are rejected to the dead letter exchange.
func (r *RabbitMQ) Consume(ctx context.Context, topic string, handler Handler) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}

	if err := r.declareDeadLetter(ch); err != nil {
		return err
	}
	if err := r.declareAndBindQueue(ch, r.queue, []string{topic}); err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx,
		r.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", r.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ErrClosed
			}
			if err := handler(ctx, msg.Body); err != nil {
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

func (r *RabbitMQ) declareDeadLetter(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(contracts.DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead letter exchange: %w", err)
	}

	q, err := ch.QueueDeclare(contracts.DeadLetterQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", contracts.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead letter queue: %w", err)
	}
	return nil
}

func (r *RabbitMQ) declareAndBindQueue(ch *amqp.Channel, queueName string, routingKeys []string) error {
	args := amqp.Table{
		"x-dead-letter-exchange": contracts.DeadLetterExchange,
	}

	q, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		args,      // arguments with DLX config
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(
			q.Name,     // queue name
			key,        // routing key
			r.exchange, // exchange
			false,
			nil,
		); err != nil {
			return fmt.Errorf("failed to bind queue to %s: %w", queueName, err)
		}
	}

	return nil
}
