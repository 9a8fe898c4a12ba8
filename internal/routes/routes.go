package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/graindesk/wallet_topup/internal/approval"
	"github.com/graindesk/wallet_topup/internal/config"
	"github.com/graindesk/wallet_topup/internal/identity"
	"github.com/graindesk/wallet_topup/internal/intake"
	"github.com/graindesk/wallet_topup/internal/ledger"
	"github.com/graindesk/wallet_topup/internal/logging"
	"github.com/graindesk/wallet_topup/internal/middleware"
	"github.com/graindesk/wallet_topup/internal/notification"
	"github.com/graindesk/wallet_topup/internal/payments"
	"github.com/graindesk/wallet_topup/internal/uow"
	"github.com/graindesk/wallet_topup/internal/walletrequest"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Backends
	var (
		units        uow.Manager
		identityRepo identity.Repository
		ledgerImpl   ledger.Ledger
		requestRepo  walletrequest.Repository
	)
	if d.DB != nil {
		units = uow.NewPostgres(d.DB, logging.Component(d.Logger, "uow"))
		identityRepo = identity.NewPostgresRepository(d.DB)
		ledgerImpl = ledger.NewPostgresLedger(d.DB)
		requestRepo = walletrequest.NewPostgresRepository(d.DB)
	} else {
		users := identity.NewMemoryRepository()
		units = uow.NewMemory()
		identityRepo = users
		ledgerImpl = ledger.NewInMemory(users)
		requestRepo = walletrequest.NewMemoryRepository()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureSystemWallets(ctx, ledgerImpl, d.Cfg); err != nil {
		return err
	}

	identitySvc := identity.NewService(identityRepo)
	adminID := d.Cfg.BootstrapAdminID
	if adminID == "" && d.DB == nil {
		// The in-memory backend starts empty, so it always needs a first admin.
		adminID = d.Cfg.DevAdminID
		if adminID == "" {
			adminID = uuid.NewString()
		}
	}
	if adminID != "" {
		if err := bootstrapAdmin(ctx, identityRepo, adminID, d.Logger); err != nil {
			return err
		}
	}

	gateway, err := payments.New(d.Cfg.PaymentGateway, d.Cfg.IsProduction(), logging.Component(d.Logger, "payments"))
	if err != nil {
		return err
	}
	approvals := approval.NewService(units, ledgerImpl, requestRepo, d.Notifier, logging.Component(d.Logger, "approval"))
	intakeSvc := intake.NewService(requestRepo, approvals, gateway, d.Notifier, logging.Component(d.Logger, "intake"), d.Cfg.MaxRequestAmount)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Routes below act on behalf of the user named by the upstream auth layer.
	protected := api.Group("", middleware.Actor(identitySvc), middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	RegisterIdentityRoutes(protected, identitySvc, d.Logger)
	RegisterWalletRoutes(protected, ledgerImpl)
	RegisterWalletRequestRoutes(protected, intake.NewHandler(intakeSvc), middleware.CreateRateLimit(d.Cache, d.Cfg.CreateRateLimit))

	return nil
}

func ensureSystemWallets(ctx context.Context, l ledger.Ledger, cfg config.Config) error {
	wallets := []ledger.Wallet{
		{Name: ledger.AppWalletName, Type: ledger.TypeApp, System: true, Balance: cfg.OpeningBalance, Currency: cfg.Currency},
		{Name: "cash", Type: ledger.TypeCash, System: true, Currency: cfg.Currency},
	}
	for _, w := range wallets {
		if err := l.EnsureWallet(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// bootstrapAdmin makes sure a first privileged user exists so /users can provision the rest.
// It is a no-op when the user is already present.
func bootstrapAdmin(ctx context.Context, repo identity.Repository, id string, logger *slog.Logger) error {
	existing, err := repo.Get(ctx, id)
	switch {
	case err == nil:
		if !existing.HasRole(identity.RoleAdmin) {
			logger.Warn("bootstrap admin exists without admin role", slog.String("user_id", id))
		}
		return nil
	case !errors.Is(err, identity.ErrUserNotFound):
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	admin := identity.User{
		ID:            id,
		Name:          "Bootstrap Admin",
		Roles:         []string{identity.RoleAdmin},
		WalletBalance: decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
	if err := repo.Create(ctx, admin); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	logger.Info("bootstrap admin created", slog.String("admin_user_id", admin.ID))
	return nil
}
