package handlers

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/locaposty/configs"
	"github.com/maheshrc27/locaposty/internal/service"
	"github.com/maheshrc27/locaposty/internal/transfer"
)

type LocationHandler struct {
	s   service.LocationService
	cfg *config.Config
}

func NewLocationHandler(cfg *config.Config, service service.LocationService) *LocationHandler {
	return &LocationHandler{s: service, cfg: cfg}
}

func (h *LocationHandler) ListLocations(c *fiber.Ctx) error {
	locations, err := h.s.List(c.UserContext(), GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(locations)
}

func (h *LocationHandler) UpdateSettings(c *fiber.Ctx) error {
	var req transfer.LocationSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	loc, err := h.s.UpdateSettings(c.UserContext(), GetUserID(c), c.Params("locationId"), &req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(loc)
}

func (h *LocationHandler) ConnectURL(c *fiber.Ctx) error {
	url, err := h.s.ConnectURL(c.UserContext(), GetUserID(c), GetUserEmail(c))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"url": url,
	})
}

// ConnectCallback is where Google sends the user after the business.manage
// consent screen.
func (h *LocationHandler) ConnectCallback(c *fiber.Ctx) error {
	if reason := c.Query("error"); reason != "" {
		slog.Info("location connect declined", "reason", reason)
		return c.Redirect(h.cfg.FrontendURL+"/locations?connect=declined", fiber.StatusTemporaryRedirect)
	}

	n, err := h.s.Connect(c.UserContext(), c.Query("code"), c.Query("state"))
	if err != nil {
		slog.Error("location connect failed", "error", err)
		return c.Status(ErrorStatus(err)).JSON(fiber.Map{
			"error": "Unable to connect locations",
		})
	}

	return c.Redirect(fmt.Sprintf("%s/locations?connected=%d", h.cfg.FrontendURL, n), fiber.StatusTemporaryRedirect)
}
