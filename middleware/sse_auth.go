// middleware/sse_auth.go
package middleware

import (
	"context"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// TokenValidator resolves an end-user access token to a user id and roles.
type TokenValidator interface {
	Validate(ctx context.Context, accessToken, deviceID string) (userID string, roles []string, err error)
}

// TokenValidatorFunc adapts a function to TokenValidator.
type TokenValidatorFunc func(ctx context.Context, accessToken, deviceID string) (string, []string, error)

func (f TokenValidatorFunc) Validate(ctx context.Context, accessToken, deviceID string) (string, []string, error) {
	return f(ctx, accessToken, deviceID)
}

// SSEAuthMiddleware authenticates EventSource requests, which cannot send
// headers, from the `token` and `device_id` query parameters.
//
// Usage:
//
//	app.Get("/notifications/stream", middleware.SSEAuthMiddleware(validator), h.Stream)
func SSEAuthMiddleware(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))
		if accessToken == "" || deviceID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or device_id in query",
			})
		}

		userID, roles, err := validator.Validate(c.UserContext(), accessToken, deviceID)
		if err != nil {
			log.Printf("[SSEAuth] ❌ Validation failed for device %s: %v", deviceID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)
		log.Printf("[SSEAuth] ✅ Authenticated user %s (device %s)", userID, deviceID)
		return c.Next()
	}
}
