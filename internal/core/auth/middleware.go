package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the middleware for downstream handlers.
const (
	// LocalSubject holds the authenticated subject (driver or staff ID).
	LocalSubject = "auth_subject"
	// LocalRole holds the authenticated role.
	LocalRole = "auth_role"
)

// Middleware returns a Fiber handler that validates the bearer token and
// enforces that its role is one of allowedRoles. The token is read from the
// Authorization header, falling back to the "token" query parameter for
// WebSocket clients that cannot set headers.
func Middleware(mgr *Manager, allowedRoles ...Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := tokenFromRequest(c)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "missing bearer token",
			})
		}

		claims, err := mgr.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "invalid or expired token",
			})
		}

		if !roleAllowed(claims.Role, allowedRoles) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "insufficient role",
			})
		}

		c.Locals(LocalSubject, claims.Subject)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

// Subject returns the authenticated subject stored by Middleware, or "".
func Subject(c *fiber.Ctx) string {
	if s, ok := c.Locals(LocalSubject).(string); ok {
		return s
	}
	return ""
}

func tokenFromRequest(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}

func roleAllowed(role Role, allowed []Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}
