package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/service"
)

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := c.Locals("user_id").(int64)
	return userID
}

func GetUserEmail(c *fiber.Ctx) string {
	email, _ := c.Locals("email").(string)
	return email
}

// ErrorStatus maps service errors onto HTTP status codes.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidStatus),
		service.IsConfigError(err):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(c *fiber.Ctx, err error) error {
	status := ErrorStatus(err)
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// postErrorResponse is errorResponse plus the post's current state, when known.
func postErrorResponse(c *fiber.Ctx, post *models.Post, err error) error {
	if post == nil {
		return errorResponse(c, err)
	}
	status := ErrorStatus(err)
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "post_id", post.ID, "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"post":  post,
	})
}
