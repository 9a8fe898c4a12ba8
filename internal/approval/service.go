package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/graindesk/wallet_topup/internal/identity"
	"github.com/graindesk/wallet_topup/internal/ledger"
	"github.com/graindesk/wallet_topup/internal/notification"
	"github.com/graindesk/wallet_topup/internal/uow"
	"github.com/graindesk/wallet_topup/internal/walletrequest"
)

// Service is the only writer of wallet request status. Each operation runs in one
// unit of work so ledger postings and the status change commit together.
type Service struct {
	units    uow.Manager
	ledger   ledger.Ledger
	requests walletrequest.Repository
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the state machine to its collaborators.
func NewService(units uow.Manager, l ledger.Ledger, requests walletrequest.Repository, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		units:    units,
		ledger:   l,
		requests: requests,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ApprovalInput identifies the transfer an approval performs.
type ApprovalInput struct {
	RequestID     string
	BeneficiaryID string
	Amount        decimal.Decimal
	ApproverID    string
	Payment       *walletrequest.Payment
}

// ProcessWalletApproval moves amount from the app wallet to the beneficiary and marks
// the request approved. Re-running it for a request it already approved with the
// same beneficiary, amount and approver returns AlreadyApproved without a second transfer.
func (s *Service) ProcessWalletApproval(ctx context.Context, in ApprovalInput) Result {
	var result Result

	err := s.units.Run(ctx, func(ctx context.Context) error {
		result = Result{}

		req, err := s.requests.GetForUpdate(ctx, in.RequestID)
		if err != nil {
			return err
		}

		switch req.Status {
		case walletrequest.StatusPending:
		case walletrequest.StatusApproved:
			if sameApproval(req, in) {
				result = Result{Outcome: OutcomeAlreadyApproved, RequestID: req.ID, Request: req}
				return nil
			}
			result = cannot("approve", req)
			return nil
		default:
			result = cannot("approve", req)
			return nil
		}

		if req.UserID != in.BeneficiaryID || !req.Amount.Equal(in.Amount) {
			result = fail(OutcomeInvalidState, req.ID, ErrInvalidTransition,
				fmt.Sprintf("Approval does not match request: expected beneficiary %s and amount %s", req.UserID, req.Amount))
			return nil
		}

		app, err := s.ledger.AppWallet(ctx)
		if err != nil {
			return err
		}
		if app.Balance.LessThan(in.Amount) {
			result = insufficient(req.ID, app.Balance, in.Amount)
			return nil
		}

		if app, err = s.ledger.DebitApp(ctx, in.Amount); err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				result = insufficient(req.ID, app.Balance, in.Amount)
				return nil
			}
			return err
		}
		if _, err := s.ledger.CreditUser(ctx, in.BeneficiaryID, in.Amount); err != nil {
			return err
		}
		approved, err := s.requests.MarkApproved(ctx, req.ID, in.ApproverID, s.now(), in.Payment)
		if err != nil {
			return err
		}

		result = Result{Outcome: OutcomeApproved, RequestID: approved.ID, Request: approved}
		return nil
	})
	if err != nil {
		return s.failure("approve", in.RequestID, err)
	}

	switch result.Outcome {
	case OutcomeApproved:
		s.logger.Info("wallet request approved",
			slog.String("request_id", result.RequestID),
			slog.String("beneficiary_id", in.BeneficiaryID),
			slog.String("approver_id", in.ApproverID),
			slog.String("amount", in.Amount.String()),
		)
		s.notify(ctx, notification.KindRequestApproved, result.Request, in.ApproverID,
			fmt.Sprintf("Your wallet top-up of %s was approved", in.Amount))
	case OutcomeAlreadyApproved:
		s.logger.Info("wallet request already approved", slog.String("request_id", result.RequestID))
	case OutcomeInsufficientFunds:
		s.logger.Warn("wallet approval rejected", slog.String("request_id", result.RequestID), slog.String("reason", result.Message()))
	}
	return result
}

// CheckFunds reports whether the app wallet currently covers amount. It takes no lock
// that outlives the read; ProcessWalletApproval repeats the check inside its unit of work.
// When ok is false the result carries the InsufficientFunds or Failed outcome.
func (s *Service) CheckFunds(ctx context.Context, requestID string, amount decimal.Decimal) (Result, bool) {
	app, err := s.ledger.AppWallet(ctx)
	if err != nil {
		return s.failure("check funds", requestID, err), false
	}
	if app.Balance.LessThan(amount) {
		return insufficient(requestID, app.Balance, amount), false
	}
	return Result{RequestID: requestID}, true
}

// DeclineWalletRequest closes a pending request without touching any balance.
func (s *Service) DeclineWalletRequest(ctx context.Context, requestID, reviewerID, rejectionReason string) Result {
	var result Result

	err := s.units.Run(ctx, func(ctx context.Context) error {
		req, err := s.requests.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != walletrequest.StatusPending {
			result = cannot("decline", req)
			return nil
		}
		declined, err := s.requests.MarkDeclined(ctx, req.ID, reviewerID, s.now(), rejectionReason)
		if err != nil {
			return err
		}
		result = Result{Outcome: OutcomeDeclined, RequestID: declined.ID, Request: declined}
		return nil
	})
	if err != nil {
		return s.failure("decline", requestID, err)
	}

	if result.Outcome == OutcomeDeclined {
		s.logger.Info("wallet request declined", slog.String("request_id", requestID), slog.String("reviewer_id", reviewerID))
		s.notify(ctx, notification.KindRequestDeclined, result.Request, reviewerID,
			fmt.Sprintf("Your wallet top-up was declined: %s", rejectionReason))
	}
	return result
}

// ConfirmWalletReceipt lets the original requester finalize an approved request.
func (s *Service) ConfirmWalletReceipt(ctx context.Context, requestID, confirmingUserID string) Result {
	var result Result

	err := s.units.Run(ctx, func(ctx context.Context) error {
		req, err := s.requests.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.UserID != confirmingUserID {
			result = fail(OutcomeUnauthorized, req.ID, ErrUnauthorized, "Only the requester can confirm receipt")
			return nil
		}
		if req.Status != walletrequest.StatusApproved {
			result = fail(OutcomeInvalidState, req.ID, ErrInvalidTransition,
				fmt.Sprintf("Cannot confirm receipt for request with status %s", req.Status))
			return nil
		}
		confirmed, err := s.requests.MarkSuccessful(ctx, req.ID, s.now())
		if err != nil {
			return err
		}
		result = Result{Outcome: OutcomeConfirmed, RequestID: confirmed.ID, Request: confirmed}
		return nil
	})
	if err != nil {
		return s.failure("confirm", requestID, err)
	}

	if result.Outcome == OutcomeConfirmed {
		s.logger.Info("wallet receipt confirmed", slog.String("request_id", requestID))
		s.notify(ctx, notification.KindRequestConfirmed, result.Request, confirmingUserID, "Wallet top-up receipt confirmed")
	}
	return result
}

// failure maps an error that aborted the unit of work onto a Result.
func (s *Service) failure(op, requestID string, err error) Result {
	switch {
	case errors.Is(err, walletrequest.ErrNotFound):
		return NotFound(requestID)
	case errors.Is(err, walletrequest.ErrStatusConflict):
		return fail(OutcomeInvalidState, requestID, ErrInvalidTransition,
			fmt.Sprintf("Cannot %s request: status changed concurrently", op))
	case errors.Is(err, identity.ErrUserNotFound):
		return fail(OutcomeNotFound, requestID, err, "Beneficiary user not found")
	case errors.Is(err, ledger.ErrWalletNotFound):
		s.logger.Error("app wallet missing", slog.String("request_id", requestID))
		return Result{Outcome: OutcomeFailed, RequestID: requestID, Err: fmt.Errorf("%s wallet request: %w", op, err)}
	}
	s.logger.Error("wallet request operation failed",
		slog.String("op", op),
		slog.String("request_id", requestID),
		slog.String("error", err.Error()),
	)
	return Result{Outcome: OutcomeFailed, RequestID: requestID, Err: fmt.Errorf("%s wallet request: %w", op, err)}
}

func (s *Service) notify(ctx context.Context, kind string, req walletrequest.Request, actorID, body string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        kind,
		Destination: req.UserID,
		Body:        body,
		RequestID:   req.ID,
		ActorID:     actorID,
		Amount:      req.Amount.String(),
		Status:      string(req.Status),
		OccurredAt:  s.now(),
	})
	if err != nil {
		s.logger.Warn("notification failed", slog.String("kind", kind), slog.String("request_id", req.ID), slog.String("error", err.Error()))
	}
}

func sameApproval(req walletrequest.Request, in ApprovalInput) bool {
	return req.UserID == in.BeneficiaryID && req.Amount.Equal(in.Amount) && req.ReviewedBy == in.ApproverID
}

func cannot(op string, req walletrequest.Request) Result {
	return fail(OutcomeInvalidState, req.ID, ErrInvalidTransition,
		fmt.Sprintf("Cannot %s request with status %s", op, req.Status))
}

func insufficient(requestID string, available, required decimal.Decimal) Result {
	return fail(OutcomeInsufficientFunds, requestID, ErrInsufficientFunds,
		fmt.Sprintf("Insufficient funds in app wallet. Available: %s, Required: %s", available, required))
}
