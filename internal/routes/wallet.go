package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/graindesk/wallet_topup/internal/intake"
	"github.com/graindesk/wallet_topup/internal/ledger"
	"github.com/graindesk/wallet_topup/internal/middleware"
)

// RegisterWalletRoutes exposes system wallet balances to privileged users.
func RegisterWalletRoutes(r fiber.Router, l ledger.Ledger) {
	r.Get("/wallets", func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok || !intake.IsPrivileged(actor.Roles) {
			return fiber.NewError(http.StatusForbidden, "only admin or paymaster users can view system wallets")
		}
		wallets, err := l.Wallets(c.UserContext())
		if err != nil {
			return err
		}
		out := make([]fiber.Map, 0, len(wallets))
		for _, w := range wallets {
			out = append(out, fiber.Map{
				"name":       w.Name,
				"type":       w.Type,
				"system":     w.System,
				"balance":    w.Balance,
				"currency":   w.Currency,
				"updated_at": w.UpdatedAt,
			})
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"wallets": out})
	})
}

// RegisterWalletRequestRoutes wires the top-up request lifecycle endpoints.
func RegisterWalletRequestRoutes(r fiber.Router, h *intake.Handler, createLimit fiber.Handler) {
	r.Post("/wallet-requests", createLimit, h.Create)
	r.Get("/wallet-requests", h.List)
	r.Get("/wallet-requests/:id", h.Get)
	r.Post("/wallet-requests/:id/approve", h.Approve)
	r.Post("/wallet-requests/:id/decline", h.Decline)
	r.Post("/wallet-requests/:id/confirm", h.Confirm)
}
