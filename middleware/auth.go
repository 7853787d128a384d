// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Locals keys shared by the identity middlewares.
const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
)

const RoleAdmin = "admin"

// UserContextMiddleware reads the identity headers set by the gateway. Routes it
// guards require X-User-ID.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)
		return c.Next()
	}
}

// RequireRole rejects users that lack role. Must run after a middleware that
// sets LocalUserRoles.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(LocalUserRoles).([]string)
		for _, r := range roles {
			if strings.EqualFold(r, role) {
				return c.Next()
			}
		}
		log.Printf("🚫 [USER_CTX] %s requires role %q (user %v has %v)", c.Path(), role, c.Locals(LocalUserID), roles)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient permissions",
		})
	}
}

// UserID returns the authenticated user's id, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
