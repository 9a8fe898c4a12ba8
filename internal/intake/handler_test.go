package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graindesk/wallet_topup/internal/logging"
	"github.com/graindesk/wallet_topup/internal/middleware"
	"github.com/graindesk/wallet_topup/internal/payments"
	"github.com/graindesk/wallet_topup/internal/walletrequest"
)

func newTestApp(e *env) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logging.Discard())})
	h := NewHandler(e.svc)
	api := app.Group("/api/v1", middleware.Actor(e.users))
	api.Post("/wallet-requests", h.Create)
	api.Get("/wallet-requests", h.List)
	api.Get("/wallet-requests/:id", h.Get)
	api.Post("/wallet-requests/:id/approve", h.Approve)
	api.Post("/wallet-requests/:id/decline", h.Decline)
	api.Post("/wallet-requests/:id/confirm", h.Confirm)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, userID, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func requestID(t *testing.T, body map[string]any) string {
	t.Helper()
	req, ok := body["request"].(map[string]any)
	require.True(t, ok, "missing request in %v", body)
	id, _ := req["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHandlerLifecycle(t *testing.T) {
	e := newEnv(t, 1_000, nil)
	app := newTestApp(e)

	status, body := call(t, app, fiber.MethodPost, "/api/v1/wallet-requests", e.agent.ID, `{"amount": 150, "reason": "transport"}`)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, false, body["auto_approved"])
	id := requestID(t, body)
	req := body["request"].(map[string]any)
	assert.Equal(t, "pending", req["status"])
	assert.Nil(t, req["payment_method"])

	status, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests/"+id+"/approve", e.admin.ID, `{"payment_method": "mobile_money", "phone_number": "+256700111222"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Provider is required for mobile_money payment method", body["error"])
	assert.Equal(t, "provider", body["field"])

	status, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests/"+id+"/approve", e.admin.ID, `{"payment_method": "cash"}`)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "approved", body["outcome"])

	status, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests/"+id+"/confirm", e.other.ID, "")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Only the requester can confirm receipt", body["error"])

	status, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests/"+id+"/confirm", e.agent.ID, "")
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "successful", body["request"].(map[string]any)["status"])

	status, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests/"+id+"/confirm", e.agent.ID, "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "Cannot confirm receipt for request with status successful", body["error"])

	status, body = call(t, app, fiber.MethodGet, "/api/v1/wallet-requests/"+id, e.agent.ID, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "successful", body["status"])
}

func TestHandlerAutoApprovalNote(t *testing.T) {
	e := newEnv(t, 50, nil)
	app := newTestApp(e)

	status, body := call(t, app, fiber.MethodPost, "/api/v1/wallet-requests", e.admin.ID, `{"amount": "100"}`)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "pending", body["request"].(map[string]any)["status"])
	assert.Contains(t, body["note"], "Insufficient funds in app wallet. Available: 50, Required: 100")
}

func TestHandlerValidationAndAuth(t *testing.T) {
	e := newEnv(t, 1_000, nil)
	app := newTestApp(e)

	status, _ := call(t, app, fiber.MethodPost, "/api/v1/wallet-requests", "", `{"amount": 10}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := call(t, app, fiber.MethodPost, "/api/v1/wallet-requests", e.agent.ID, `{"amount": "ten"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Amount must be a positive number", body["error"])

	status, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests", e.agent.ID, `{"amount": 0}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Amount must be a positive number", body["error"])

	_, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests", e.agent.ID, `{"amount": 10}`)
	id := requestID(t, body)

	status, _ = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests/"+id+"/decline", e.agent.ID, `{"rejectionReason": "no"}`)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests/"+id+"/decline", e.admin.ID, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "rejectionReason is required when declining a request", body["error"])

	status, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests/"+id+"/decline", e.admin.ID, `{"rejectionReason": "Not this week"}`)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "declined", body["request"].(map[string]any)["status"])

	status, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests/"+id+"/approve", e.admin.ID, `{"payment_method": "cash"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "Cannot approve request with status declined", body["error"])

	status, _ = call(t, app, fiber.MethodGet, "/api/v1/wallet-requests/"+id, e.other.ID, "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHandlerInsufficientFundsAndNotSupported(t *testing.T) {
	e := newEnv(t, 100, payments.FailClosedGateway{})
	app := newTestApp(e)

	_, body := call(t, app, fiber.MethodPost, "/api/v1/wallet-requests", e.agent.ID, `{"amount": 50}`)
	small := requestID(t, body)
	_, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests", e.agent.ID, `{"amount": 500}`)
	large := requestID(t, body)

	status, body := call(t, app, fiber.MethodPost, "/api/v1/wallet-requests/"+small+"/approve", e.admin.ID,
		`{"payment_method": "mobile_money", "provider": "MTN", "phone_number": "+256772000001"}`)
	assert.Equal(t, fiber.StatusNotImplemented, status)
	assert.Equal(t, "mobile_money payments are not supported in production", body["error"])

	status, body = call(t, app, fiber.MethodPost, "/api/v1/wallet-requests/"+large+"/approve", e.admin.ID,
		`{"payment_method": "bank_transfer", "bank_name": "Stanbic", "branch_name": "Mbale"}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "insufficient_funds", body["outcome"])

	status, body = call(t, app, fiber.MethodGet, "/api/v1/wallet-requests?status=pending", e.admin.ID, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])
}

func TestHandlerRejectsUnstorableAmounts(t *testing.T) {
	e := newEnv(t, 1_000, nil)
	app := newTestApp(e)

	cases := []struct {
		body string
		msg  string
	}{
		{`{"amount": "1e30000000"}`, "Amount cannot exceed 10000000"},
		{`{"amount": 1e30000000}`, "Amount cannot exceed 10000000"},
		{`{"amount": "1e-30000000"}`, "Amount cannot have more than 2 decimal places"},
		{`{"amount": "0.001"}`, "Amount cannot have more than 2 decimal places"},
		{`{"amount": 100.005}`, "Amount cannot have more than 2 decimal places"},
	}
	for _, tc := range cases {
		start := time.Now()
		status, body := call(t, app, fiber.MethodPost, "/api/v1/wallet-requests", e.agent.ID, tc.body)
		assert.True(t, time.Since(start) < 2*time.Second, tc.body)
		assert.Equal(t, fiber.StatusBadRequest, status, tc.body)
		assert.Equal(t, "amount", body["field"], tc.body)
		assert.Equal(t, tc.msg, body["error"], tc.body)
	}

	status, body := call(t, app, fiber.MethodPost, "/api/v1/wallet-requests", e.agent.ID, `{"amount": "100.50"}`)
	require.Equal(t, fiber.StatusCreated, status, body)
	stored := body["request"].(map[string]any)["amount"]
	assert.Equal(t, "100.5", stored)
}

// brokenRequests fails every read, standing in for an unreachable database.
type brokenRequests struct {
	Requests
}

func (brokenRequests) Get(context.Context, string) (walletrequest.Request, error) {
	return walletrequest.Request{}, errors.New("connection refused")
}

func TestHandlerLogsInfrastructureErrorsWithAttributes(t *testing.T) {
	e := newEnv(t, 1_000, nil)
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	e.svc = NewService(brokenRequests{Requests: e.requests}, e.tx, payments.NewMockGateway(logging.Discard()), nil, logger, amount(10_000_000))
	app := newTestApp(e)

	status, body := call(t, app, fiber.MethodGet, "/api/v1/wallet-requests/abc", e.admin.ID, "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body["error"])

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(logs.Bytes()), &entry), logs.String())
	assert.Equal(t, "wallet request handler failed", entry["msg"])
	assert.Equal(t, "/api/v1/wallet-requests/abc", entry["path"])
	assert.Equal(t, "connection refused", entry["error"])
}
