package intake

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/graindesk/wallet_topup/internal/walletrequest"
)

// MaxReasonLength bounds request and rejection reasons, in characters.
const MaxReasonLength = 500

// ErrForbidden is returned when the actor lacks the role an operation needs.
var ErrForbidden = errors.New("only admin or paymaster users can review wallet requests")

// ErrSettlementFailed is returned when the gateway reports a failed payout.
var ErrSettlementFailed = errors.New("payment settlement failed")

// ValidationError rejects caller input before any state changes.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// AmountScale is the number of decimal places money amounts may carry.
const AmountScale = 2

// MaxStorableAmount is the largest amount a NUMERIC(18,2) column holds.
var MaxStorableAmount = decimal.New(1, 16).Sub(decimal.New(1, -AmountScale))

// maxExponentMagnitude bounds the exponent accepted before any arithmetic.
// Rescaling an amount such as 1e30000000 allocates a number with that many digits.
const maxExponentMagnitude = 32

// ValidateAmount requires 0 < amount <= limit with at most two decimal places.
// A zero limit disables the configured cap; MaxStorableAmount always applies.
func ValidateAmount(amount, limit decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "Amount must be a positive number")
	}

	ceiling := MaxStorableAmount
	if limit.IsPositive() && limit.LessThan(ceiling) {
		ceiling = limit
	}
	exceeded := invalid("amount", fmt.Sprintf("Amount cannot exceed %s", ceiling))
	tooPrecise := invalid("amount", fmt.Sprintf("Amount cannot have more than %d decimal places", AmountScale))

	exp := amount.Exponent()
	switch {
	case exp > 16:
		// The coefficient is at least 1, so the value is at least 10^17.
		return exceeded
	case exp < -maxExponentMagnitude:
		return tooPrecise
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return tooPrecise
	}
	if amount.GreaterThan(ceiling) {
		return exceeded
	}
	return nil
}

// ValidateReason bounds an optional free-text reason.
func ValidateReason(field, reason string) error {
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		label := "Reason"
		if field == "rejectionReason" {
			label = "Rejection reason"
		}
		return invalid(field, fmt.Sprintf("%s cannot exceed %d characters", label, MaxReasonLength))
	}
	return nil
}

// ValidatePayment checks the fields each payment method requires.
func ValidatePayment(p walletrequest.Payment) error {
	switch p.Method {
	case "":
		return invalid("payment_method", "payment_method is required")
	case walletrequest.MethodCash:
		return nil
	case walletrequest.MethodMobileMoney:
		if strings.TrimSpace(p.Provider) == "" {
			return invalid("provider", "Provider is required for mobile_money payment method")
		}
		if strings.TrimSpace(p.PhoneNumber) == "" {
			return invalid("phone_number", "Phone number is required for mobile_money payment method")
		}
		return nil
	case walletrequest.MethodBankTransfer:
		if strings.TrimSpace(p.BankName) == "" {
			return invalid("bank_name", "Bank name is required for bank_transfer payment method")
		}
		if strings.TrimSpace(p.BranchName) == "" {
			return invalid("branch_name", "Branch name is required for bank_transfer payment method")
		}
		return nil
	}
	return invalid("payment_method", "Invalid payment method. Must be one of: cash, mobile_money, bank_transfer")
}
