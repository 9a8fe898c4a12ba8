//go:build integration

package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graindesk/wallet_topup/internal/config"
	"github.com/graindesk/wallet_topup/internal/logging"
	"github.com/graindesk/wallet_topup/internal/middleware"
	"github.com/graindesk/wallet_topup/internal/testutil"
)

func TestPostgresBackendProvisionsThroughBootstrapAdmin(t *testing.T) {
	pool := testutil.SetupPostgres(t)
	adminID := uuid.NewString()
	cfg := config.Config{
		AppEnv:           "test",
		IdempotencyTTL:   time.Hour,
		MaxRequestAmount: decimal.NewFromInt(1_000_000),
		Currency:         "UGX",
		PaymentGateway:   config.GatewayMock,
		BootstrapAdminID: adminID,
	}

	// Two startups against the same database, as after a restart.
	for i := 0; i < 2; i++ {
		app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logging.Discard())})
		require.NoError(t, Setup(app, Deps{Cfg: cfg, DB: pool, Logger: logging.Discard()}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{"name":"Agent","roles":["field_agent"]}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(middleware.UserIDHeader, adminID)
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	}
}
