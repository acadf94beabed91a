package handlers

import (
	"sweetshop/internal/services"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps a service error kind to its HTTP status.
func StatusFor(kind services.ErrorKind) int {
	switch kind {
	case services.InvalidInput:
		return fiber.StatusBadRequest
	case services.NotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError writes err as {"error": message} with the status matching its kind.
func writeError(c *fiber.Ctx, err error) error {
	return c.Status(StatusFor(services.KindOf(err))).JSON(fiber.Map{
		"error": services.MessageOf(err),
	})
}
