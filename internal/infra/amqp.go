package infra

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQP bundles a RabbitMQ connection and the channel events are published on.
type AMQP struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// NewAMQP dials RabbitMQ, opens a channel and declares a durable topic exchange.
func NewAMQP(url, exchange, appName string) (*AMQP, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp url is required")
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{"connection_name": appName},
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQP{Conn: conn, Channel: ch}, nil
}

// Close releases the channel and the connection.
func (a *AMQP) Close() error {
	if a == nil {
		return nil
	}
	_ = a.Channel.Close()
	return a.Conn.Close()
}
