package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher is the subset of *amqp091.Channel the sink uses.
type AMQPPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPSink publishes events to a topic exchange, routed by event type.
type AMQPSink struct {
	ch       AMQPPublisher
	exchange string
	timeout  time.Duration
}

// NewAMQPSink declares a durable topic exchange on ch and returns a sink for it.
func NewAMQPSink(ch *amqp091.Channel, exchange string) (*AMQPSink, error) {
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return newAMQPSink(ch, exchange), nil
}

func newAMQPSink(ch AMQPPublisher, exchange string) *AMQPSink {
	return &AMQPSink{ch: ch, exchange: exchange, timeout: 5 * time.Second}
}

// Publish sends e as a persistent JSON message with routing key e.Type.
func (s *AMQPSink) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.ch.PublishWithContext(ctx,
		s.exchange, // exchange
		e.Type,     // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    e.At,
		})
	if err != nil {
		return fmt.Errorf("amqp publish %s: %w", e.Type, err)
	}
	return nil
}
