package inventory

import (
	"errors"

	"channel-manager/core/logger"
	"channel-manager/core/middleware/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler exposes availability checks.
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// RegisterRoutes registers the inventory routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Post("/availability/check", auth.RequireSync(), h.HandleCheck)
}

// HandleCheck runs an availability check.
// @Summary Check availability
// @Description Decides whether a stay can be booked against the inventory calendar.
// @Tags inventory
// @Accept json
// @Produce json
// @Param request body Request true "Stay to check"
// @Success 200 {object} Result
// @Failure 400 {object} map[string]string "Invalid range"
// @Router /api/v1/availability/check [post]
func (h *Handler) HandleCheck(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.RoomTypeID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "room_type_id is required"})
	}

	res, err := h.engine.CheckAvailability(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		logger.WithRayID(h.logger, c).Error("Availability check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(res)
}
