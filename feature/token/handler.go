package token

import (
	"errors"
	"strconv"

	"channel-manager/core/logger"
	"channel-manager/core/middleware/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler exposes token diagnostics.
type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// RegisterRoutes registers the token routes. All of them require the admin role.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/tokens", auth.RequireAdmin())
	group.Get("/:connectionID/diagnostics", h.HandleDiagnostics)
	group.Post("/:connectionID/:type/refresh", h.HandleRefresh)
}

// HandleDiagnostics lists the stored tokens of a connection.
// @Summary Token diagnostics
// @Description Read-only view of the read/write tokens of a connection.
// @Tags tokens
// @Produce json
// @Param connectionID path int true "Connection ID"
// @Success 200 {object} map[string][]Diagnostic
// @Router /api/v1/tokens/{connectionID}/diagnostics [get]
func (h *Handler) HandleDiagnostics(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("connectionID"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid connection id"})
	}

	diags, err := h.manager.Diagnostics(c.UserContext(), uint(id))
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Token diagnostics failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"diagnostics": diags})
}

// HandleRefresh forces a refresh of one token type.
// @Summary Refresh token
// @Tags tokens
// @Produce json
// @Param connectionID path int true "Connection ID"
// @Param type path string true "read or write"
// @Success 200 {object} Diagnostic
// @Failure 502 {object} map[string]string "Provider rejected the refresh"
// @Router /api/v1/tokens/{connectionID}/{type}/refresh [post]
func (h *Handler) HandleRefresh(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("connectionID"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid connection id"})
	}
	typ, err := ParseType(c.Params("type"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	tok, err := h.manager.Refresh(c.UserContext(), uint(id), typ)
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Token refresh failed", zap.Error(err))
		var re *RefreshError
		switch {
		case errors.As(err, &re):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrAuth):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	return c.JSON(Diagnostic{
		Type:            tok.Type,
		Scopes:          tok.Scopes,
		ExpiresAt:       tok.ExpiresAt,
		LastUsedAt:      tok.LastUsedAt,
		PropertiesCount: tok.PropertiesCount,
		State:           StateValid,
	})
}
