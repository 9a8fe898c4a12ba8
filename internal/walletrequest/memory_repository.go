package walletrequest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graindesk/wallet_topup/internal/uow"
)

// MemoryRepository is an in-memory request store for tests and local development.
type MemoryRepository struct {
	mu       sync.RWMutex
	requests map[string]Request
}

// NewMemoryRepository builds an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{requests: make(map[string]Request)}
}

func (r *MemoryRepository) Create(ctx context.Context, req Request) (Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = req.CreatedAt
	req.Status = StatusPending
	req.PaymentMethod = nil
	req.Provider, req.PhoneNumber, req.BankName, req.BranchName = "", "", "", ""
	req.ReviewedBy, req.ReviewedAt, req.RejectionReason, req.ConfirmedAt = "", nil, "", nil

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = req

	id := req.ID
	uow.RecordUndo(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.requests, id)
	})
	return req, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

// GetForUpdate is Get; the memory unit of work already serializes writers.
func (r *MemoryRepository) GetForUpdate(ctx context.Context, id string) (Request, error) {
	return r.Get(ctx, id)
}

func (r *MemoryRepository) List(_ context.Context, filter Filter) ([]Request, error) {
	filter = filter.Normalize()

	r.mu.RLock()
	out := make([]Request, 0, len(r.requests))
	for _, req := range r.requests {
		if filter.UserID != "" && req.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, req)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset >= len(out) {
		return []Request{}, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) MarkApproved(ctx context.Context, id, reviewerID string, at time.Time, payment *Payment) (Request, error) {
	return r.transition(ctx, id, StatusApproved, func(req *Request) {
		req.ReviewedBy = reviewerID
		ts := at.UTC()
		req.ReviewedAt = &ts
		req.applyPayment(payment)
	})
}

func (r *MemoryRepository) MarkDeclined(ctx context.Context, id, reviewerID string, at time.Time, reason string) (Request, error) {
	return r.transition(ctx, id, StatusDeclined, func(req *Request) {
		req.ReviewedBy = reviewerID
		ts := at.UTC()
		req.ReviewedAt = &ts
		req.RejectionReason = reason
	})
}

func (r *MemoryRepository) MarkSuccessful(ctx context.Context, id string, at time.Time) (Request, error) {
	return r.transition(ctx, id, StatusSuccessful, func(req *Request) {
		ts := at.UTC()
		req.ConfirmedAt = &ts
	})
}

// transition moves the request to status to when the lifecycle allows it from the current status.
func (r *MemoryRepository) transition(ctx context.Context, id string, to Status, apply func(*Request)) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	if !prev.Status.CanTransition(to) {
		return Request{}, ErrStatusConflict
	}

	next := prev
	next.Status = to
	apply(&next)
	next.UpdatedAt = time.Now().UTC()
	r.requests[id] = next

	uow.RecordUndo(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.requests[id] = prev
	})
	return next, nil
}
