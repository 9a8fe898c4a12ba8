package walletrequest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/graindesk/wallet_topup/internal/uow"
)

var (
	// ErrNotFound is returned when no request matches the identifier.
	ErrNotFound = errors.New("wallet request not found")

	// ErrStatusConflict means the request was not in the status a transition requires.
	ErrStatusConflict = errors.New("wallet request status conflict")
)

// Repository persists top-up requests. Status only changes through the Mark methods,
// each of which is conditional on the prior status.
type Repository interface {
	Create(ctx context.Context, req Request) (Request, error)
	Get(ctx context.Context, id string) (Request, error)
	// GetForUpdate reads the request and locks it for the surrounding unit of work.
	GetForUpdate(ctx context.Context, id string) (Request, error)
	List(ctx context.Context, filter Filter) ([]Request, error)
	MarkApproved(ctx context.Context, id, reviewerID string, at time.Time, payment *Payment) (Request, error)
	MarkDeclined(ctx context.Context, id, reviewerID string, at time.Time, reason string) (Request, error)
	MarkSuccessful(ctx context.Context, id string, at time.Time) (Request, error)
}

const requestColumns = `id::text, user_id::text, amount, payment_method, provider, phone_number,
        bank_name, branch_name, reason, status, reviewed_by::text, reviewed_at, rejection_reason,
        confirmed_at, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed request store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a pending request with no payment method.
func (r *PostgresRepository) Create(ctx context.Context, req Request) (Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return Request{}, fmt.Errorf("request id: %w", err)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return Request{}, fmt.Errorf("user id: %w", err)
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}

	row := uow.Conn(ctx, r.db).QueryRow(ctx, `INSERT INTO wallet_requests (id, user_id, amount, reason, status, created_at, updated_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $6)
        RETURNING `+requestColumns, id, userID, req.Amount, req.Reason, string(StatusPending), req.CreatedAt.UTC())
	created, err := scanRequest(row)
	if err != nil {
		return Request{}, fmt.Errorf("insert wallet request: %w", err)
	}
	return created, nil
}

// Get fetches a request by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Request, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate fetches a request with a row lock held until the transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (Request, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *PostgresRepository) get(ctx context.Context, id, suffix string) (Request, error) {
	reqID, err := uuid.Parse(id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	row := uow.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+requestColumns+` FROM wallet_requests WHERE id = $1`+suffix, reqID)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// List returns requests newest first.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Request, error) {
	filter = filter.Normalize()

	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		userID, err := uuid.Parse(filter.UserID)
		if err != nil {
			return []Request{}, nil
		}
		args = append(args, userID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + requestColumns + ` FROM wallet_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := uow.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wallet requests: %w", err)
	}
	defer rows.Close()

	out := make([]Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// MarkApproved moves a pending request to approved.
func (r *PostgresRepository) MarkApproved(ctx context.Context, id, reviewerID string, at time.Time, payment *Payment) (Request, error) {
	var method, provider, phone, bank, branch string
	if payment != nil {
		method, provider, phone, bank, branch = string(payment.Method), payment.Provider, payment.PhoneNumber, payment.BankName, payment.BranchName
	}
	return r.transition(ctx, id, StatusPending, `status = 'approved', reviewed_by = $3, reviewed_at = $4, updated_at = $4,
        payment_method = NULLIF($5, ''), provider = NULLIF($6, ''), phone_number = NULLIF($7, ''),
        bank_name = NULLIF($8, ''), branch_name = NULLIF($9, '')`,
		reviewerUUID(reviewerID), at.UTC(), method, provider, phone, bank, branch)
}

// MarkDeclined moves a pending request to declined.
func (r *PostgresRepository) MarkDeclined(ctx context.Context, id, reviewerID string, at time.Time, reason string) (Request, error) {
	return r.transition(ctx, id, StatusPending, `status = 'declined', reviewed_by = $3, reviewed_at = $4, updated_at = $4,
        rejection_reason = $5`, reviewerUUID(reviewerID), at.UTC(), reason)
}

// MarkSuccessful moves an approved request to successful.
func (r *PostgresRepository) MarkSuccessful(ctx context.Context, id string, at time.Time) (Request, error) {
	return r.transition(ctx, id, StatusApproved, `status = 'successful', confirmed_at = $3, updated_at = $3`, at.UTC())
}

// transition runs a status-guarded UPDATE. $1 is the id and $2 the required prior status.
func (r *PostgresRepository) transition(ctx context.Context, id string, from Status, set string, args ...any) (Request, error) {
	reqID, err := uuid.Parse(id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	conn := uow.Conn(ctx, r.db)
	params := append([]any{reqID, string(from)}, args...)
	row := conn.QueryRow(ctx, `UPDATE wallet_requests SET `+set+`
        WHERE id = $1 AND status = $2
        RETURNING `+requestColumns, params...)
	req, err := scanRequest(row)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Request{}, fmt.Errorf("update wallet request %s: %w", id, err)
	}

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallet_requests WHERE id = $1)`, reqID).Scan(&exists); err != nil {
		return Request{}, err
	}
	if !exists {
		return Request{}, ErrNotFound
	}
	return Request{}, ErrStatusConflict
}

// reviewerUUID yields nil for identifiers that are not UUIDs so the column stays NULL.
func reviewerUUID(id string) any {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return parsed
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req                                   Request
		method, provider, phone, bank, branch *string
		reason, reviewedBy, rejection         *string
		status                                string
	)
	if err := row.Scan(&req.ID, &req.UserID, &req.Amount, &method, &provider, &phone, &bank, &branch,
		&reason, &status, &reviewedBy, &req.ReviewedAt, &rejection, &req.ConfirmedAt, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return Request{}, err
	}
	if method != nil {
		m := PaymentMethod(*method)
		req.PaymentMethod = &m
	}
	req.Provider = deref(provider)
	req.PhoneNumber = deref(phone)
	req.BankName = deref(bank)
	req.BranchName = deref(branch)
	req.Reason = deref(reason)
	req.Status = Status(status)
	req.ReviewedBy = deref(reviewedBy)
	req.RejectionReason = deref(rejection)
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()
	if req.ReviewedAt != nil {
		t := req.ReviewedAt.UTC()
		req.ReviewedAt = &t
	}
	if req.ConfirmedAt != nil {
		t := req.ConfirmedAt.UTC()
		req.ConfirmedAt = &t
	}
	return req, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
