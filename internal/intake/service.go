package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/graindesk/wallet_topup/internal/approval"
	"github.com/graindesk/wallet_topup/internal/identity"
	"github.com/graindesk/wallet_topup/internal/notification"
	"github.com/graindesk/wallet_topup/internal/payments"
	"github.com/graindesk/wallet_topup/internal/walletrequest"
)

// Transactions is the wallet request state machine.
type Transactions interface {
	ProcessWalletApproval(ctx context.Context, in approval.ApprovalInput) approval.Result
	DeclineWalletRequest(ctx context.Context, requestID, reviewerID, rejectionReason string) approval.Result
	ConfirmWalletReceipt(ctx context.Context, requestID, confirmingUserID string) approval.Result
	CheckFunds(ctx context.Context, requestID string, amount decimal.Decimal) (approval.Result, bool)
}

// Requests is the read and create side of the request store.
type Requests interface {
	Create(ctx context.Context, req walletrequest.Request) (walletrequest.Request, error)
	Get(ctx context.Context, id string) (walletrequest.Request, error)
	List(ctx context.Context, filter walletrequest.Filter) ([]walletrequest.Request, error)
}

// Service validates caller input, applies the auto-approval policy and hands
// state changes to the transaction service.
type Service struct {
	requests  Requests
	tx        Transactions
	gateway   payments.Gateway
	notifier  notification.Notifier
	logger    *slog.Logger
	maxAmount decimal.Decimal
}

// NewService builds the intake service. maxAmount caps a single request; zero disables the cap.
func NewService(requests Requests, tx Transactions, gateway payments.Gateway, notifier notification.Notifier, logger *slog.Logger, maxAmount decimal.Decimal) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		requests:  requests,
		tx:        tx,
		gateway:   gateway,
		notifier:  notifier,
		logger:    logger,
		maxAmount: maxAmount,
	}
}

// CreateInput is a new top-up request from actor.
type CreateInput struct {
	Amount decimal.Decimal
	Reason string
}

// CreateResult is the persisted request and, when auto-approval failed, an advisory note.
type CreateResult struct {
	Request      walletrequest.Request
	AutoApproved bool
	Note         string
}

// Create persists a request. Privileged creators are approved immediately; if that
// fails the request stays pending and Note explains why.
func (s *Service) Create(ctx context.Context, actor identity.User, in CreateInput) (CreateResult, error) {
	if err := ValidateAmount(in.Amount, s.maxAmount); err != nil {
		return CreateResult{}, err
	}
	reason := strings.TrimSpace(in.Reason)
	if err := ValidateReason("reason", reason); err != nil {
		return CreateResult{}, err
	}

	req, err := s.requests.Create(ctx, walletrequest.Request{UserID: actor.ID, Amount: in.Amount, Reason: reason})
	if err != nil {
		return CreateResult{}, fmt.Errorf("create wallet request: %w", err)
	}
	s.logger.Info("wallet request created",
		slog.String("request_id", req.ID),
		slog.String("user_id", actor.ID),
		slog.String("amount", req.Amount.String()),
	)
	s.notify(ctx, notification.Message{
		Kind:        notification.KindRequestCreated,
		Destination: actor.ID,
		Body:        fmt.Sprintf("Wallet top-up request for %s submitted", req.Amount),
		RequestID:   req.ID,
		ActorID:     actor.ID,
		Amount:      req.Amount.String(),
		Status:      string(req.Status),
		OccurredAt:  req.CreatedAt,
	})

	if DecideInitialStatus(actor.Roles) != DecisionAutoApprove {
		return CreateResult{Request: req}, nil
	}

	res := s.tx.ProcessWalletApproval(ctx, approval.ApprovalInput{
		RequestID:     req.ID,
		BeneficiaryID: actor.ID,
		Amount:        req.Amount,
		ApproverID:    actor.ID,
	})
	if res.Success() {
		return CreateResult{Request: res.Request, AutoApproved: true}, nil
	}

	s.logger.Warn("auto-approval failed, request left pending",
		slog.String("request_id", req.ID),
		slog.String("outcome", string(res.Outcome)),
	)
	return CreateResult{
		Request: req,
		Note:    fmt.Sprintf("Request created but auto-approval failed: %s", res.Message()),
	}, nil
}

// ApproveInput is a manual approval with the payout details.
type ApproveInput struct {
	RequestID string
	Payment   walletrequest.Payment
}

// Approve validates the payout details, settles through the gateway and then
// approves. Validation and gateway errors are returned before the state machine runs.
func (s *Service) Approve(ctx context.Context, actor identity.User, in ApproveInput) (approval.Result, error) {
	if !IsPrivileged(actor.Roles) {
		return approval.Result{}, ErrForbidden
	}
	payment := normalizePayment(in.Payment)
	if err := ValidatePayment(payment); err != nil {
		return approval.Result{}, err
	}

	req, err := s.requests.Get(ctx, in.RequestID)
	if err != nil {
		if errors.Is(err, walletrequest.ErrNotFound) {
			return approval.NotFound(in.RequestID), nil
		}
		return approval.Result{}, err
	}

	input := approval.ApprovalInput{
		RequestID:     req.ID,
		BeneficiaryID: req.UserID,
		Amount:        req.Amount,
		ApproverID:    actor.ID,
		Payment:       &payment,
	}
	if req.Status != walletrequest.StatusPending {
		// Retries and stale approvals are resolved by the state machine without a second payout.
		return s.tx.ProcessWalletApproval(ctx, input), nil
	}

	// Nothing is paid out for a request the app wallet cannot cover.
	if res, ok := s.tx.CheckFunds(ctx, req.ID, req.Amount); !ok {
		return res, nil
	}

	settlement, err := s.gateway.Settle(ctx, req.Amount, payment)
	if err != nil {
		return approval.Result{}, err
	}
	switch settlement.Status {
	case payments.StatusFail:
		return approval.Result{}, ErrSettlementFailed
	case payments.StatusPending:
		s.logger.Info("payout settlement pending", slog.String("request_id", req.ID), slog.String("reference", settlement.Reference))
	}

	res := s.tx.ProcessWalletApproval(ctx, input)
	if !res.Success() {
		// The payout is captured but no debit happened, e.g. a concurrent approval drained
		// the app wallet after CheckFunds. Finance reverses it from the reference.
		s.logger.Error("payout settled without approval, reconcile manually",
			slog.String("request_id", req.ID),
			slog.String("reference", settlement.Reference),
			slog.String("payment_method", string(payment.Method)),
			slog.String("amount", req.Amount.String()),
			slog.String("outcome", string(res.Outcome)),
		)
	}
	return res, nil
}

// Decline closes a pending request. A non-empty reason is required.
func (s *Service) Decline(ctx context.Context, actor identity.User, requestID, rejectionReason string) (approval.Result, error) {
	if !IsPrivileged(actor.Roles) {
		return approval.Result{}, ErrForbidden
	}
	reason := strings.TrimSpace(rejectionReason)
	if reason == "" {
		return approval.Result{}, invalid("rejectionReason", "rejectionReason is required when declining a request")
	}
	if err := ValidateReason("rejectionReason", reason); err != nil {
		return approval.Result{}, err
	}
	return s.tx.DeclineWalletRequest(ctx, requestID, actor.ID, reason), nil
}

// ConfirmReceipt finalizes an approved request on behalf of its owner.
func (s *Service) ConfirmReceipt(ctx context.Context, actor identity.User, requestID string) approval.Result {
	return s.tx.ConfirmWalletReceipt(ctx, requestID, actor.ID)
}

// Get returns a request visible to actor. Non-privileged users only see their own.
func (s *Service) Get(ctx context.Context, actor identity.User, requestID string) (walletrequest.Request, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return walletrequest.Request{}, err
	}
	if req.UserID != actor.ID && !IsPrivileged(actor.Roles) {
		return walletrequest.Request{}, walletrequest.ErrNotFound
	}
	return req, nil
}

// List returns requests visible to actor, newest first.
func (s *Service) List(ctx context.Context, actor identity.User, filter walletrequest.Filter) ([]walletrequest.Request, error) {
	if !IsPrivileged(actor.Roles) {
		filter.UserID = actor.ID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("Unknown status %q", filter.Status))
	}
	return s.requests.List(ctx, filter)
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("notification failed", slog.String("kind", msg.Kind), slog.String("error", err.Error()))
	}
}

func normalizePayment(p walletrequest.Payment) walletrequest.Payment {
	p.Method = walletrequest.PaymentMethod(strings.TrimSpace(string(p.Method)))
	p.Provider = strings.TrimSpace(p.Provider)
	p.PhoneNumber = strings.TrimSpace(p.PhoneNumber)
	p.BankName = strings.TrimSpace(p.BankName)
	p.BranchName = strings.TrimSpace(p.BranchName)
	return p
}
