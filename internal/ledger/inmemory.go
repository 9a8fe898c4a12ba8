package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/graindesk/wallet_topup/internal/uow"
)

// UserAccounts holds user wallet balances for the in-memory ledger.
type UserAccounts interface {
	CreditBalance(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error)
}

type inMemoryLedger struct {
	mu      sync.RWMutex
	wallets map[string]Wallet
	users   UserAccounts
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory(users UserAccounts) Ledger {
	return &inMemoryLedger{
		wallets: make(map[string]Wallet),
		users:   users,
	}
}

func (l *inMemoryLedger) EnsureWallet(_ context.Context, wallet Wallet) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.wallets[wallet.Name]; !exists {
		wallet.UpdatedAt = time.Now().UTC()
		l.wallets[wallet.Name] = wallet
	}
	return nil
}

func (l *inMemoryLedger) Wallets(_ context.Context) ([]Wallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Wallet, 0, len(l.wallets))
	for _, w := range l.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *inMemoryLedger) AppWallet(_ context.Context) (Wallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w, ok := l.findApp()
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (l *inMemoryLedger) DebitApp(ctx context.Context, amount decimal.Decimal) (Wallet, error) {
	if !amount.IsPositive() {
		return Wallet{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.findApp()
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	if w.Balance.LessThan(amount) {
		return w, ErrInsufficientFunds
	}

	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = time.Now().UTC()
	l.wallets[w.Name] = w

	name := w.Name
	uow.RecordUndo(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		restored := l.wallets[name]
		restored.Balance = restored.Balance.Add(amount)
		l.wallets[name] = restored
	})
	return w, nil
}

func (l *inMemoryLedger) CreditUser(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return l.users.CreditBalance(ctx, userID, amount)
}

// findApp expects l.mu to be held.
func (l *inMemoryLedger) findApp() (Wallet, bool) {
	for _, w := range l.wallets {
		if w.Type == TypeApp {
			return w, true
		}
	}
	return Wallet{}, false
}
