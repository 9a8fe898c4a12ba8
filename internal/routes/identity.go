package routes

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/graindesk/wallet_topup/internal/identity"
	"github.com/graindesk/wallet_topup/internal/middleware"
)

// RegisterIdentityRoutes wires the profile endpoint and admin user provisioning.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, logger *slog.Logger) {
	r.Get("/users/me", func(c *fiber.Ctx) error {
		user, ok := middleware.ActorFrom(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		return c.Status(http.StatusOK).JSON(userResponse(user))
	})

	r.Post("/users", func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok || !actor.HasRole(identity.RoleAdmin) {
			return fiber.NewError(http.StatusForbidden, "only admins can provision users")
		}
		var req struct {
			Name  string   `json:"name"`
			Roles []string `json:"roles"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Provision(c.UserContext(), identity.ProvisionInput{Name: req.Name, Roles: req.Roles})
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if logger != nil {
			logger.Info("user provisioned",
				slog.String("user_id", user.ID),
				slog.String("by", actor.ID),
				slog.Any("roles", user.Roles),
			)
		}
		return c.Status(http.StatusCreated).JSON(userResponse(user))
	})
}

func userResponse(u identity.User) fiber.Map {
	return fiber.Map{
		"id":             u.ID,
		"name":           u.Name,
		"roles":          u.Roles,
		"wallet_balance": u.WalletBalance,
		"created_at":     u.CreatedAt,
	}
}
