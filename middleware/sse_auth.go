// net2077-arena-system/middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"net2077-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates `token` from the query string via the profile
// service. EventSource cannot set headers, so the match stream authenticates
// through the query instead of the gateway's X-User-ID header.
//
// Usage:
//
//	app.Get("/arena/:matchCode/stream", middleware.SSEAuthMiddleware(profileClient), arenaService.StreamMatchSSE)
func SSEAuthMiddleware(profileClient *services.ProfileServiceClient) func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		if accessToken == "" {
			log.Printf("[SSEAuth] ❌ Missing token query param for %s", c.Path())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}

		resp, err := profileClient.ValidateToken(accessToken)
		if err != nil {
			log.Printf("[SSEAuth] ❌ Validation failed for token (prefix: %.10s...): %v", accessToken, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		// Attach to Fiber context (like UserContextMiddleware, but from query)
		c.Locals("user_id", resp.UserID)
		c.Locals("user_roles", resp.Roles)

		return c.Next()
	}
}
