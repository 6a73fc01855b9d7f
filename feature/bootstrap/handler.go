package bootstrap

import (
	"errors"

	"channel-manager/core/logger"
	"channel-manager/core/middleware/auth"
	"channel-manager/core/middleware/rayid"
	"channel-manager/core/provider"
	"channel-manager/feature/connection"
	"channel-manager/feature/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler exposes the bootstrap operation.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the bootstrap route. It requires the admin role.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Post("/bootstrap", auth.RequireAdmin(), h.HandleBootstrap)
}

// HandleBootstrap imports a provider property.
// @Summary Bootstrap a hotel
// @Description Imports the property, room types and a 90-day calendar. Partial failures return 200 with success=false.
// @Tags bootstrap
// @Accept json
// @Produce json
// @Param request body Request true "Hotel and property"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Hotel not linked"
// @Failure 409 {object} map[string]string "Hotel linked to another property"
// @Failure 502 {object} map[string]string "Provider error"
// @Router /api/v1/bootstrap [post]
func (h *Handler) HandleBootstrap(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil || req.HotelID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "hotelId is required"})
	}
	if req.TraceID == "" {
		req.TraceID = rayid.FromCtx(c)
	}

	log := logger.WithRayID(h.logger, c)
	res, err := h.service.Bootstrap(c.UserContext(), req)

	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true, "data": res})
	case IsCallLevel(err):
		log.Error("Bootstrap failed", zap.Error(err))
		return c.Status(statusFor(err)).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	var partial *PartialImportError
	errors.As(err, &partial)
	return c.JSON(fiber.Map{"success": false, "data": res, "error": err.Error(), "failedPhases": partial.Phases})
}

func statusFor(err error) int {
	var pe *provider.Error
	switch {
	case errors.Is(err, connection.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrPropertyMismatch):
		return fiber.StatusConflict
	case errors.Is(err, provider.ErrTimeout):
		return fiber.StatusGatewayTimeout
	case token.IsAuthFailure(err):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &pe):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
