package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service manages dashboard users as seen by the top-up flow.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Provision creates a user with a zero wallet balance.
func (s *Service) Provision(ctx context.Context, input ProvisionInput) (User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return User{}, errors.New("name is required")
	}
	if len(input.Roles) == 0 {
		return User{}, errors.New("at least one role is required")
	}

	user := User{
		ID:            uuid.New().String(),
		Name:          name,
		Roles:         input.Roles,
		WalletBalance: decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// Get looks a user up by identifier.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.Get(ctx, id)
}
