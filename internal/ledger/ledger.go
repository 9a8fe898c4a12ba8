package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when the app wallet balance cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound indicates the named system wallet has not been provisioned.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInvalidAmount rejects zero or negative postings.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Wallet types.
const (
	TypeApp  = "app"
	TypeCash = "cash"
	TypeUser = "user"
)

// AppWalletName is the name of the shared wallet that funds every top-up.
const AppWalletName = "app"

// Wallet is a named system ledger account.
type Wallet struct {
	Name      string
	Type      string
	System    bool
	Balance   decimal.Decimal
	Currency  string
	UpdatedAt time.Time
}

// Ledger owns system wallet balances and user wallet credits. Every mutation
// is an atomic increment; DebitApp never drives the app wallet negative.
// Callers combine DebitApp and CreditUser inside one unit of work.
type Ledger interface {
	EnsureWallet(ctx context.Context, wallet Wallet) error
	Wallets(ctx context.Context) ([]Wallet, error)
	// AppWallet reads the app wallet, locking it when a unit of work is active.
	AppWallet(ctx context.Context) (Wallet, error)
	DebitApp(ctx context.Context, amount decimal.Decimal) (Wallet, error)
	CreditUser(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)
}
