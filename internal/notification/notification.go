package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Wallet request lifecycle event kinds.
const (
	KindRequestCreated   = "wallet_request.created"
	KindRequestApproved  = "wallet_request.approved"
	KindRequestDeclined  = "wallet_request.declined"
	KindRequestConfirmed = "wallet_request.confirmed"
)

// Message describes a lifecycle event. Destination is the user who should hear about it.
type Message struct {
	Kind        string    `json:"kind" bson:"kind"`
	Destination string    `json:"destination" bson:"destination"`
	Body        string    `json:"body" bson:"body"`
	RequestID   string    `json:"request_id" bson:"request_id"`
	ActorID     string    `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	Amount      string    `json:"amount" bson:"amount"`
	Status      string    `json:"status" bson:"status"`
	OccurredAt  time.Time `json:"occurred_at" bson:"occurred_at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("request_id", message.RequestID),
		slog.String("status", message.Status),
		slog.String("body", message.Body),
	)
	return nil
}

// Multi fans a message out to every notifier. A failing sink does not stop the others.
type Multi []Notifier

// Send delivers to all sinks and joins their errors.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
