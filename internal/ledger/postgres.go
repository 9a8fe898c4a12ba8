package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/graindesk/wallet_topup/internal/identity"
	"github.com/graindesk/wallet_topup/internal/uow"
)

const walletColumns = `name, type, system, balance, currency, updated_at`

// PostgresLedger keeps wallet balances in PostgreSQL. Balance changes are single
// UPDATE statements so concurrent approvals never lose an update.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureWallet provisions a system wallet if it does not exist yet.
func (l *PostgresLedger) EnsureWallet(ctx context.Context, wallet Wallet) error {
	_, err := uow.Conn(ctx, l.db).Exec(ctx, `INSERT INTO wallets (id, name, type, system, balance, currency, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        ON CONFLICT (name) DO NOTHING`, uuid.New(), wallet.Name, wallet.Type, wallet.System, wallet.Balance, wallet.Currency)
	if err != nil {
		return fmt.Errorf("ensure wallet %s: %w", wallet.Name, err)
	}
	return nil
}

// Wallets lists system wallets ordered by name.
func (l *PostgresLedger) Wallets(ctx context.Context) ([]Wallet, error) {
	rows, err := uow.Conn(ctx, l.db).Query(ctx, `SELECT `+walletColumns+` FROM wallets WHERE system ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// AppWallet reads the app wallet row with FOR UPDATE. Outside a transaction the
// lock is released as soon as the statement completes.
func (l *PostgresLedger) AppWallet(ctx context.Context) (Wallet, error) {
	row := uow.Conn(ctx, l.db).QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE type = $1 FOR UPDATE`, TypeApp)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	return w, nil
}

// DebitApp decrements the app wallet only when it holds at least amount.
func (l *PostgresLedger) DebitApp(ctx context.Context, amount decimal.Decimal) (Wallet, error) {
	if !amount.IsPositive() {
		return Wallet{}, ErrInvalidAmount
	}

	conn := uow.Conn(ctx, l.db)
	row := conn.QueryRow(ctx, `UPDATE wallets SET balance = balance - $1, updated_at = NOW()
        WHERE type = $2 AND balance >= $1
        RETURNING `+walletColumns, amount, TypeApp)
	w, err := scanWallet(row)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, fmt.Errorf("debit app wallet: %w", err)
	}

	// No row updated: either the wallet is missing or the guard failed.
	current, err := scanWallet(conn.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE type = $1`, TypeApp))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	return current, ErrInsufficientFunds
}

// CreditUser increments the user's wallet balance and returns the new value.
func (l *PostgresLedger) CreditUser(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return decimal.Zero, identity.ErrUserNotFound
	}

	var balance decimal.Decimal
	err = uow.Conn(ctx, l.db).QueryRow(ctx, `UPDATE users SET wallet_balance = wallet_balance + $1
        WHERE id = $2 RETURNING wallet_balance`, amount, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, identity.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("credit user %s: %w", userID, err)
	}
	return balance, nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	if err := row.Scan(&w.Name, &w.Type, &w.System, &w.Balance, &w.Currency, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}
