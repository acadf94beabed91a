package middleware

import (
	"strings"

	"sweetshop/internal/services"

	"github.com/gofiber/fiber/v2"
)

// StaffKey is the Locals key holding the subject of a verified token.
const StaffKey = "staff"

// AuthRequired rejects requests without a valid staff JWT. The token's
// subject is kept in Locals and in the request context, where the sweet
// service picks it up for inventory events.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required")
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || scheme != "Bearer" || token == "" {
			return unauthorized(c, "Authorization header format must be 'Bearer <token>'")
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}
		staff, _ := claims["sub"].(string)
		if staff == "" {
			return unauthorized(c, "Invalid or expired token")
		}

		c.Locals(StaffKey, staff)
		c.SetUserContext(services.WithStaff(c.UserContext(), staff))
		return c.Next()
	}
}

// Staff returns the staff member authenticated for this request, or "".
func Staff(c *fiber.Ctx) string {
	staff, _ := c.Locals(StaffKey).(string)
	return staff
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}
