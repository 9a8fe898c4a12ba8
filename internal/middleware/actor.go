package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/graindesk/wallet_topup/internal/identity"
)

const (
	// UserIDHeader carries the authenticated user id set by the upstream auth layer.
	UserIDHeader = "X-User-ID"
	actorKey     = "actor"
	userIDLocal  = "user_id"
)

// UserLookup resolves user ids.
type UserLookup interface {
	Get(ctx context.Context, id string) (identity.User, error)
}

// Actor resolves the acting user from UserIDHeader and stores it in the request locals.
func Actor(users UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid := strings.TrimSpace(c.Get(UserIDHeader))
		if uid == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing "+UserIDHeader+" header")
		}
		user, err := users.Get(c.UserContext(), uid)
		if err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				return fiber.NewError(http.StatusUnauthorized, "unknown user")
			}
			return err
		}
		c.Locals(actorKey, user)
		c.Locals(userIDLocal, user.ID)
		return c.Next()
	}
}

// ActorFrom returns the user resolved by Actor.
func ActorFrom(c *fiber.Ctx) (identity.User, bool) {
	user, ok := c.Locals(actorKey).(identity.User)
	return user, ok
}
