package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/graindesk/wallet_topup/internal/uow"
)

// ErrUserNotFound is returned when no user matches the identifier.
var ErrUserNotFound = errors.New("user not found")

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	Get(ctx context.Context, id string) (User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = uow.Conn(ctx, r.db).Exec(ctx, `INSERT INTO users (id, name, roles, wallet_balance, created_at)
        VALUES ($1, $2, $3, $4, $5)`, userID, user.Name, user.Roles, user.WalletBalance, user.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Get fetches a user by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	row := uow.Conn(ctx, r.db).QueryRow(ctx, `SELECT id, name, roles, wallet_balance, created_at FROM users WHERE id = $1`, userID)
	var (
		idVal     uuid.UUID
		createdAt time.Time
		balance   decimal.Decimal
		user      User
	)
	if err := row.Scan(&idVal, &user.Name, &user.Roles, &balance, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	user.ID = idVal.String()
	user.WalletBalance = balance
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
