package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/graindesk/wallet_topup/internal/walletrequest"
)

// ErrNotSupported is returned when the gateway cannot settle a payment method.
var ErrNotSupported = errors.New("payment method not supported")

// UnsupportedError names the method a gateway refused.
type UnsupportedError struct {
	Method walletrequest.PaymentMethod
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s payments are not supported in production", e.Method)
}

func (e *UnsupportedError) Unwrap() error { return ErrNotSupported }

// Settlement statuses.
const (
	StatusOK      = "ok"
	StatusPending = "pending"
	StatusFail    = "fail"
)

// Gateway names accepted by New.
const (
	NameMock     = "mock"
	NameDisabled = "disabled"
)

// Settlement captures the simulated response from the payment gateway.
type Settlement struct {
	Status    string
	Reference string
}

// Gateway settles the payout of an approved top-up.
type Gateway interface {
	Settle(ctx context.Context, amount decimal.Decimal, payment walletrequest.Payment) (Settlement, error)
}

// MockGateway settles every method immediately with a synthetic reference.
type MockGateway struct {
	logger *slog.Logger
}

// NewMockGateway builds a mock gateway for development environments.
func NewMockGateway(logger *slog.Logger) MockGateway {
	return MockGateway{logger: logger}
}

// Settle approves the payout.
func (g MockGateway) Settle(_ context.Context, amount decimal.Decimal, payment walletrequest.Payment) (Settlement, error) {
	ref := uuid.NewString()
	if g.logger != nil && payment.Method == walletrequest.MethodMobileMoney {
		g.logger.Info("mock mobile money settlement",
			slog.String("reference", ref),
			slog.String("provider", payment.Provider),
			slog.String("amount", amount.String()),
		)
	}
	return Settlement{Status: StatusOK, Reference: ref}, nil
}

// FailClosedGateway is used until a real provider integration exists. Cash and bank
// transfers are paid out manually and settle ok; mobile money is refused.
type FailClosedGateway struct{}

// Settle refuses mobile money payouts.
func (FailClosedGateway) Settle(_ context.Context, _ decimal.Decimal, payment walletrequest.Payment) (Settlement, error) {
	if payment.Method == walletrequest.MethodMobileMoney {
		return Settlement{Status: StatusFail}, &UnsupportedError{Method: payment.Method}
	}
	return Settlement{Status: StatusOK, Reference: uuid.NewString()}, nil
}

// New selects a gateway by name. An empty name means mock outside production and
// disabled in production.
func New(name string, production bool, logger *slog.Logger) (Gateway, error) {
	if name == "" {
		name = NameMock
		if production {
			name = NameDisabled
		}
	}
	switch name {
	case NameMock:
		return NewMockGateway(logger), nil
	case NameDisabled:
		return FailClosedGateway{}, nil
	}
	return nil, fmt.Errorf("unknown payment gateway %q", name)
}
