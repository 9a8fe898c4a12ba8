package intake

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/graindesk/wallet_topup/internal/approval"
	"github.com/graindesk/wallet_topup/internal/identity"
	"github.com/graindesk/wallet_topup/internal/middleware"
	"github.com/graindesk/wallet_topup/internal/payments"
	"github.com/graindesk/wallet_topup/internal/walletrequest"
)

// Handler exposes wallet request HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet request HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type approveRequest struct {
	PaymentMethod string `json:"payment_method"`
	Provider      string `json:"provider"`
	PhoneNumber   string `json:"phone_number"`
	BankName      string `json:"bank_name"`
	BranchName    string `json:"branch_name"`
}

type declineRequest struct {
	RejectionReason string `json:"rejectionReason"`
}

// RequestResponse is the JSON shape of a wallet request.
type RequestResponse struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   *string         `json:"payment_method"`
	Provider        string          `json:"provider,omitempty"`
	PhoneNumber     string          `json:"phone_number,omitempty"`
	BankName        string          `json:"bank_name,omitempty"`
	BranchName      string          `json:"branch_name,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Status          string          `json:"status"`
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toResponse(r walletrequest.Request) RequestResponse {
	out := RequestResponse{
		ID:              r.ID,
		UserID:          r.UserID,
		Amount:          r.Amount,
		Provider:        r.Provider,
		PhoneNumber:     r.PhoneNumber,
		BankName:        r.BankName,
		BranchName:      r.BranchName,
		Reason:          r.Reason,
		Status:          string(r.Status),
		ReviewedBy:      r.ReviewedBy,
		ReviewedAt:      r.ReviewedAt,
		RejectionReason: r.RejectionReason,
		ConfirmedAt:     r.ConfirmedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.PaymentMethod != nil {
		method := string(*r.PaymentMethod)
		out.PaymentMethod = &method
	}
	return out
}

// Create submits a top-up request for the acting user.
func (h *Handler) Create(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return validationResponse(c, invalid("amount", "Amount must be a positive number"))
	}

	res, err := h.service.Create(c.UserContext(), actor, CreateInput{Amount: req.Amount, Reason: req.Reason})
	if err != nil {
		return h.errorResponse(c, err)
	}

	body := fiber.Map{
		"success":       true,
		"request":       toResponse(res.Request),
		"auto_approved": res.AutoApproved,
	}
	if res.Note != "" {
		body["note"] = res.Note
	}
	return c.Status(http.StatusCreated).JSON(body)
}

// List returns the wallet requests visible to the acting user.
func (h *Handler) List(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	filter := walletrequest.Filter{
		UserID: c.Query("user_id"),
		Status: walletrequest.Status(c.Query("status")),
		Limit:  c.QueryInt("limit", walletrequest.DefaultListLimit),
		Offset: c.QueryInt("offset", 0),
	}
	reqs, err := h.service.List(c.UserContext(), actor, filter)
	if err != nil {
		return h.errorResponse(c, err)
	}
	out := make([]RequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toResponse(r))
	}
	return c.JSON(fiber.Map{"requests": out, "count": len(out)})
}

// Get returns a single wallet request.
func (h *Handler) Get(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	req, err := h.service.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(toResponse(req))
}

// Approve approves a pending request with payout details.
func (h *Handler) Approve(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.Approve(c.UserContext(), actor, ApproveInput{
		RequestID: c.Params("id"),
		Payment: walletrequest.Payment{
			Method:      walletrequest.PaymentMethod(req.PaymentMethod),
			Provider:    req.Provider,
			PhoneNumber: req.PhoneNumber,
			BankName:    req.BankName,
			BranchName:  req.BranchName,
		},
	})
	if err != nil {
		return h.errorResponse(c, err)
	}
	return resultResponse(c, res)
}

// Decline declines a pending request.
func (h *Handler) Decline(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req declineRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	res, err := h.service.Decline(c.UserContext(), actor, c.Params("id"), req.RejectionReason)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return resultResponse(c, res)
}

// Confirm records that the requester received the funds.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	return resultResponse(c, h.service.ConfirmReceipt(c.UserContext(), actor, c.Params("id")))
}

func actorOf(c *fiber.Ctx) (identity.User, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return identity.User{}, fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	return actor, nil
}

func resultResponse(c *fiber.Ctx, res approval.Result) error {
	if !res.Success() {
		return c.Status(statusForOutcome(res.Outcome)).JSON(fiber.Map{
			"success": false,
			"outcome": res.Outcome,
			"error":   res.Message(),
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":    true,
		"outcome":    res.Outcome,
		"request_id": res.RequestID,
		"request":    toResponse(res.Request),
	})
}

func statusForOutcome(o approval.Outcome) int {
	switch o {
	case approval.OutcomeNotFound:
		return http.StatusNotFound
	case approval.OutcomeInvalidState:
		return http.StatusConflict
	case approval.OutcomeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case approval.OutcomeUnauthorized:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func validationResponse(c *fiber.Ctx, v *ValidationError) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"field":   v.Field,
		"error":   v.Message,
	})
}

func (h *Handler) errorResponse(c *fiber.Ctx, err error) error {
	var v *ValidationError
	switch {
	case errors.As(err, &v):
		return validationResponse(c, v)
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, walletrequest.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "Wallet request not found")
	case errors.Is(err, payments.ErrNotSupported):
		return fiber.NewError(http.StatusNotImplemented, err.Error())
	case errors.Is(err, ErrSettlementFailed):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	h.service.logger.Error("wallet request handler failed", slog.String("path", c.Path()), slog.Any("error", err))
	return fiber.NewError(http.StatusInternalServerError, "internal error")
}
