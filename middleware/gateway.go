// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware only lets through requests carrying the gateway's
// bearer token. Paths listed in skip (exact match) are exempt.
func GatewayAuthMiddleware(expectedToken string, skip ...string) fiber.Handler {
	if expectedToken == "" {
		log.Fatal("❌ GAME_SERVICE_TOKEN is not set — service cannot authenticate Gateway")
	}
	exempt := make(map[string]bool, len(skip))
	for _, p := range skip {
		exempt[p] = true
	}

	return func(c *fiber.Ctx) error {
		if exempt[c.Path()] {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			log.Printf("🚫 [GATEWAY_AUTH] Missing Authorization header for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		// The gateway may send "Bearer <token>" or the raw token.
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Printf("❌ [GATEWAY_AUTH] Invalid token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}

		return c.Next()
	}
}
