package notification

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the subset of *amqp.Channel the notifier needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes events to a RabbitMQ exchange using the event kind as routing key.
type AMQPNotifier struct {
	channel  Publisher
	exchange string
}

// NewAMQPNotifier builds a RabbitMQ publisher bound to exchange.
func NewAMQPNotifier(channel Publisher, exchange string) *AMQPNotifier {
	return &AMQPNotifier{channel: channel, exchange: exchange}
}

// Send publishes a persistent JSON message.
func (n *AMQPNotifier) Send(ctx context.Context, message Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = n.channel.PublishWithContext(ctx, n.exchange, message.Kind, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    message.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", message.Kind, err)
	}
	return nil
}
