package ledger

import (
	"strconv"

	"channel-manager/core/logger"
	"channel-manager/core/middleware/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler exposes the audit trail and the sync switch of a hotel.
type Handler struct {
	ledger   *Ledger
	states   *States
	provider string
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler for one provider.
func NewHandler(ledger *Ledger, states *States, provider string, logger *zap.Logger) *Handler {
	return &Handler{ledger: ledger, states: states, provider: provider, logger: logger}
}

// RegisterRoutes registers the ledger routes. All of them require the admin role.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	// Per-route guards: a group middleware on /sync/:hotelID would also match /sync/pull.
	app.Get("/sync/:hotelID/audit", auth.RequireAdmin(), h.HandleAudit)
	app.Get("/sync/:hotelID/state", auth.RequireAdmin(), h.HandleState)
	app.Put("/sync/:hotelID/enabled", auth.RequireAdmin(), h.HandleEnabled)
}

// HandleAudit lists recent audit records.
// @Summary Audit trail
// @Tags sync
// @Produce json
// @Param hotelID path int true "Hotel ID"
// @Param limit query int false "Max records (default 50)"
// @Success 200 {object} map[string][]AuditRecord
// @Router /api/v1/sync/{hotelID}/audit [get]
func (h *Handler) HandleAudit(c *fiber.Ctx) error {
	hotelID, err := strconv.ParseUint(c.Params("hotelID"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid hotel id"})
	}

	records, err := h.ledger.Recent(c.UserContext(), uint(hotelID), c.QueryInt("limit", 50))
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Audit query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"records": records})
}

// HandleState returns the sync state of a hotel.
// @Summary Sync state
// @Tags sync
// @Produce json
// @Param hotelID path int true "Hotel ID"
// @Success 200 {object} SyncState
// @Failure 404 {object} map[string]string "Never synced"
// @Router /api/v1/sync/{hotelID}/state [get]
func (h *Handler) HandleState(c *fiber.Ctx) error {
	hotelID, err := strconv.ParseUint(c.Params("hotelID"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid hotel id"})
	}

	st, err := h.states.Get(c.UserContext(), uint(hotelID), h.provider)
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Sync state query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if st == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "hotel was never synced"})
	}
	return c.JSON(st)
}

// EnabledRequest toggles scheduled syncs.
type EnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// HandleEnabled turns scheduled syncs on or off.
// @Summary Enable or disable sync
// @Tags sync
// @Accept json
// @Produce json
// @Param hotelID path int true "Hotel ID"
// @Param request body EnabledRequest true "Switch"
// @Success 200 {object} SyncState
// @Router /api/v1/sync/{hotelID}/enabled [put]
func (h *Handler) HandleEnabled(c *fiber.Ctx) error {
	hotelID, err := strconv.ParseUint(c.Params("hotelID"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid hotel id"})
	}
	var req EnabledRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "enabled is required"})
	}

	st, err := h.states.SetEnabled(c.UserContext(), uint(hotelID), h.provider, *req.Enabled)
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Failed to toggle sync", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	logger.WithRayID(h.logger, c).Info("Sync toggled",
		zap.Uint64("hotel_id", hotelID), zap.Bool("enabled", st.Enabled))
	return c.JSON(st)
}
