// middleware/relay_auth.go
package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RelayAuthMiddleware validates the shared relay token when RELAY_TOKEN is
// set. Without it the relay runs open, which is the default for a casual
// two-party deployment. Websocket clients pass the token as a query
// parameter since browsers cannot set headers on the upgrade request.
func RelayAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("RELAY_TOKEN")

	return func(c *fiber.Ctx) error {
		if expectedToken == "" {
			return c.Next()
		}

		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		}

		if token != expectedToken {
			log.Printf("🚫 [RELAY_AUTH] Invalid or missing token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid relay token",
			})
		}
		return c.Next()
	}
}
