package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/graindesk/wallet_topup/internal/uow"
)

// MemoryRepository is an in-memory user store for tests and local development.
// It also holds the wallet balances the in-memory ledger credits.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository builds an in-memory user store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]User)}
}

func (r *MemoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.ID]; exists {
		return errors.New("user exists")
	}
	user.Roles = append([]string(nil), user.Roles...)
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	user.Roles = append([]string(nil), user.Roles...)
	return user, nil
}

// CreditBalance adds amount to the user's wallet balance and returns the new balance.
func (r *MemoryRepository) CreditBalance(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return decimal.Zero, ErrUserNotFound
	}
	user.WalletBalance = user.WalletBalance.Add(amount)
	r.users[id] = user

	uow.RecordUndo(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		u := r.users[id]
		u.WalletBalance = u.WalletBalance.Sub(amount)
		r.users[id] = u
	})
	return user.WalletBalance, nil
}
