package walletrequest

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a top-up request.
type Status string

// Request statuses.
const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusDeclined   Status = "declined"
	StatusSuccessful Status = "successful"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusSuccessful:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle permits moving from s to next.
// pending -> approved -> successful and pending -> declined are the only edges.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusDeclined
	case StatusApproved:
		return next == StatusSuccessful
	}
	return false
}

// PaymentMethod is how approved funds reach the requester.
type PaymentMethod string

// Supported payment methods.
const (
	MethodCash         PaymentMethod = "cash"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodMobileMoney, MethodBankTransfer:
		return true
	}
	return false
}

// Payment carries the method chosen on approval and its side data, stored verbatim.
type Payment struct {
	Method      PaymentMethod
	Provider    string
	PhoneNumber string
	BankName    string
	BranchName  string
}

// Request is a single wallet top-up request.
type Request struct {
	ID              string
	UserID          string
	Amount          decimal.Decimal
	PaymentMethod   *PaymentMethod
	Provider        string
	PhoneNumber     string
	BankName        string
	BranchName      string
	Reason          string
	Status          Status
	ReviewedBy      string
	ReviewedAt      *time.Time
	RejectionReason string
	ConfirmedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Payment returns the stored payment details, or nil when no method was chosen.
func (r Request) Payment() *Payment {
	if r.PaymentMethod == nil {
		return nil
	}
	return &Payment{
		Method:      *r.PaymentMethod,
		Provider:    r.Provider,
		PhoneNumber: r.PhoneNumber,
		BankName:    r.BankName,
		BranchName:  r.BranchName,
	}
}

func (r *Request) applyPayment(p *Payment) {
	if p == nil {
		return
	}
	method := p.Method
	r.PaymentMethod = &method
	r.Provider = p.Provider
	r.PhoneNumber = p.PhoneNumber
	r.BankName = p.BankName
	r.BranchName = p.BranchName
}

// List paging bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Filter narrows List results. Zero values mean no restriction.
type Filter struct {
	UserID string
	Status Status
	Limit  int
	Offset int
}

// Normalize clamps paging to sane bounds.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
