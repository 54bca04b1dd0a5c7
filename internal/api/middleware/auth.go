package middleware

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"helpdesk.com/internal/domain"
)

const localsUser = "user"

// CurrentUser returns the record stored by CasbinMiddleware, or nil.
func CurrentUser(c *fiber.Ctx) *domain.UserRecord {
	record, _ := c.Locals(localsUser).(*domain.UserRecord)
	return record
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// CasbinMiddleware authenticates the bearer token, loads the caller and
// checks the route against the caller's effective role.
func CasbinMiddleware(enforcer *casbin.Enforcer, authSvc domain.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Extract Token
		token := BearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication credentials were not provided"})
		}

		// 2. Load the caller; the role comes from the store, not the token
		record, err := authSvc.Authenticate(c.UserContext(), token)
		if err != nil {
			var appErr *domain.AppError
			if errors.As(err, &appErr) && appErr.Code == fiber.StatusUnauthorized {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": appErr.Message})
			}
			slog.Error("authentication failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		}
		c.Locals(localsUser, record)

		// 3. Check Permission
		sub := string(record.Subject().EffectiveRole())
		obj := c.Path()
		act := c.Method()

		permit, err := enforcer.Enforce(sub, obj, act)
		if err != nil {
			slog.Error("permission check failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "permission check failed"})
		}
		if !permit {
			slog.Debug("route denied", "role", sub, "method", act, "path", obj)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "you do not have permission to perform this action"})
		}
		return c.Next()
	}
}
