package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/locaposty/internal/service"
	"github.com/maheshrc27/locaposty/internal/transfer"
)

type ReviewHandler struct {
	rs service.ReviewService
	ar service.AutoReplyService
}

func NewReviewHandler(rs service.ReviewService, ar service.AutoReplyService) *ReviewHandler {
	return &ReviewHandler{rs: rs, ar: ar}
}

// SyncReviews syncs one location when locationId is given, otherwise every
// connected location the caller can see.
func (h *ReviewHandler) SyncReviews(c *fiber.Ctx) error {
	var req transfer.SyncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to parse body",
			})
		}
	}

	res, err := h.rs.SyncForUser(c.UserContext(), GetUserID(c), req.LocationID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *ReviewHandler) ListReviews(c *fiber.Ctx) error {
	reviews, err := h.rs.List(c.UserContext(), GetUserID(c), c.Query("locationId"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(reviews)
}

func (h *ReviewHandler) ProcessAutoReplies(c *fiber.Ctx) error {
	outcomes, err := h.ar.ProcessForUser(c.UserContext(), GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(outcomes)
}

func (h *ReviewHandler) ApproveReply(c *fiber.Ctx) error {
	reviewID, err := c.ParamsInt("id")
	if err != nil || reviewID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid review id",
		})
	}

	var req transfer.ApproveReplyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to parse body",
			})
		}
	}

	reply, err := h.ar.Approve(c.UserContext(), GetUserID(c), int64(reviewID), req.Content)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(reply)
}
