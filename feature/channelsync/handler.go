package channelsync

import (
	"errors"

	"channel-manager/core/logger"
	"channel-manager/core/middleware/auth"
	"channel-manager/core/middleware/rayid"
	"channel-manager/core/provider"
	"channel-manager/core/utils"
	"channel-manager/feature/connection"
	"channel-manager/feature/mapping"
	"channel-manager/feature/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler exposes the pull and push workers.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the sync routes. They accept the admin key or the automation secret.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Post("/sync/pull", auth.RequireSync(), h.HandlePull)
	app.Post("/sync/push", auth.RequireSync(), h.HandlePush)
}

// HandlePull imports provider reservations.
// @Summary Pull reservations
// @Description Imports provider bookings for a connection. Calls made with the automation secret default to scheduled pulls, which are skipped when sync is disabled.
// @Tags sync
// @Accept json
// @Produce json
// @Param request body PullRequest true "Pull request"
// @Success 200 {object} PullResult
// @Failure 502 {object} map[string]string "Provider error"
// @Router /api/v1/sync/pull [post]
func (h *Handler) HandlePull(c *fiber.Ctx) error {
	var req PullRequest
	if err := c.BodyParser(&req); err != nil || req.ConnectionID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "connectionId is required"})
	}
	if req.SyncType == "" {
		req.SyncType = SyncManual
		if auth.RoleFromCtx(c) == auth.RoleAutomation {
			req.SyncType = SyncScheduled
		}
	}
	if req.SyncDirection != "" && req.SyncDirection != "pull" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "syncDirection must be pull"})
	}
	if req.TraceID == "" {
		req.TraceID = rayid.FromCtx(c)
	}

	res, err := h.service.PullReservations(c.UserContext(), req)
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Pull failed", zap.Error(err))
		return c.Status(statusFor(err)).JSON(fiber.Map{"success": false, "error": err.Error(), "retryable": provider.IsRetryable(err)})
	}
	return c.JSON(res)
}

// HandlePush sends calendar changes to the provider.
// @Summary Push rates and availability
// @Tags sync
// @Accept json
// @Produce json
// @Param request body PushRequest true "Push request"
// @Success 200 {object} PushResult
// @Failure 502 {object} map[string]string "Provider error"
// @Router /api/v1/sync/push [post]
func (h *Handler) HandlePush(c *fiber.Ctx) error {
	var req PushRequest
	if err := c.BodyParser(&req); err != nil || req.HotelID == 0 || req.RoomTypeID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "hotelId and roomTypeId are required"})
	}
	if req.TraceID == "" {
		req.TraceID = rayid.FromCtx(c)
	}

	res, err := h.service.PushRates(c.UserContext(), req)
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Push failed", zap.Error(err))
		body := fiber.Map{"success": false, "error": err.Error(), "retryable": provider.IsRetryable(err)}
		var pe *provider.Error
		if errors.As(err, &pe) {
			body["provider_status"] = pe.StatusCode
			body["provider_body"] = pe.Body
		}
		return c.Status(statusFor(err)).JSON(body)
	}
	return c.JSON(res)
}

func statusFor(err error) int {
	var pe *provider.Error
	switch {
	case errors.Is(err, ErrNoChanges):
		return fiber.StatusBadRequest
	case errors.Is(err, connection.ErrNotFound), errors.Is(err, mapping.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, provider.ErrTimeout):
		return fiber.StatusGatewayTimeout
	case token.IsAuthFailure(err):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &pe):
		return fiber.StatusBadGateway
	case utils.IsDateError(err):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
