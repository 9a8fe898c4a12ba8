package approval

import (
	"errors"

	"github.com/graindesk/wallet_topup/internal/ledger"
	"github.com/graindesk/wallet_topup/internal/walletrequest"
)

// Outcome tags the result of a state machine operation.
type Outcome string

// Operation outcomes. Approved, AlreadyApproved, Declined and Confirmed are successes.
const (
	OutcomeApproved          Outcome = "approved"
	OutcomeAlreadyApproved   Outcome = "already_approved"
	OutcomeDeclined          Outcome = "declined"
	OutcomeConfirmed         Outcome = "confirmed"
	OutcomeNotFound          Outcome = "not_found"
	OutcomeInvalidState      Outcome = "invalid_state"
	OutcomeInsufficientFunds Outcome = "insufficient_funds"
	OutcomeUnauthorized      Outcome = "unauthorized"
	OutcomeFailed            Outcome = "failed"
)

var (
	// ErrNotFound means the request id does not resolve to a record.
	ErrNotFound = walletrequest.ErrNotFound

	// ErrInsufficientFunds means the app wallet cannot cover the amount.
	ErrInsufficientFunds = ledger.ErrInsufficientFunds

	// ErrInvalidTransition means the request status does not allow the operation.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized means the actor may not perform the operation on this request.
	ErrUnauthorized = errors.New("unauthorized")
)

// Result is what every state machine operation returns. Err is nil on success and
// wraps one of the package sentinels otherwise.
type Result struct {
	Outcome   Outcome
	RequestID string
	Request   walletrequest.Request
	Err       error
}

// Success reports whether the operation left the request in the desired state.
func (r Result) Success() bool {
	switch r.Outcome {
	case OutcomeApproved, OutcomeAlreadyApproved, OutcomeDeclined, OutcomeConfirmed:
		return true
	}
	return false
}

// Message is the caller-facing error text, empty on success.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// reason pairs a caller-facing message with the sentinel it represents.
type reason struct {
	kind error
	msg  string
}

func (e *reason) Error() string { return e.msg }
func (e *reason) Unwrap() error { return e.kind }

func fail(outcome Outcome, requestID string, kind error, msg string) Result {
	return Result{Outcome: outcome, RequestID: requestID, Err: &reason{kind: kind, msg: msg}}
}

// NotFound is the result for a request id that does not resolve to a record.
func NotFound(requestID string) Result {
	return fail(OutcomeNotFound, requestID, ErrNotFound, "Wallet request not found")
}
