package handlers

import (
	"errors"
	"log"

	"survivor-pool/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps service error families onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrInvalid):
		status = fiber.StatusBadRequest
	}

	if status == fiber.StatusInternalServerError {
		log.Printf("❌ [API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
