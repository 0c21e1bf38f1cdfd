package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
)

const exchangeKind = "topic"

// AMQPPublisher publishes messages to a durable topic exchange, routed by
// message type.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

var _ Publisher = (*AMQPPublisher)(nil)

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish sends msg with its type as the routing key. Channels are not safe
// for concurrent publishing, so calls are serialised.
func (p *AMQPPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx,
		p.exchange,
		msg.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    msg.OccurredAt,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	log.Debug(log.CatNotify, "published", "exchange", p.exchange, "routing_key", msg.Type,
		"registration_id", msg.RegistrationID)
	return nil
}

func (p *AMQPPublisher) Close() error {
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
