// handlers/relay_routes.go
package handlers

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/harshverma27/ZK-Battleship-on-Stellar/services"
)

// SetupRelayRoutes registers the websocket endpoint and the small REST
// surface next to it.
func SetupRelayRoutes(app *fiber.App, relay *Relay) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "battleship-sync-relay",
		})
	})

	// Room lookup fallback for clients probing before opening a socket.
	app.Get("/rooms/:code", func(c *fiber.Ctx) error {
		matchID, err := relay.ResolveRoom(c.Params("code"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"found": false})
		}
		return c.JSON(fiber.Map{"found": true, "matchId": matchID})
	})

	// Best-effort mirrored move history, for UI replay after reconnect.
	app.Get("/matches/:id/moves", func(c *fiber.Ctx) error {
		moves, err := relay.Moves(c.Params("id"))
		if err != nil {
			if errors.Is(err, services.ErrMatchNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{
			"matchId": c.Params("id"),
			"moves":   moves,
			"total":   len(moves),
		})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(relay.HandleWebSocket))
}
