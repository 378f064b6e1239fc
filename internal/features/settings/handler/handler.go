package handler

import (
	"errors"
	"net/http"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/settings/domain"
	"carrier-engine/internal/features/settings/ports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SettingsHandler handles HTTP requests for shipping settings.
type SettingsHandler struct {
	service ports.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(service ports.SettingsService) *SettingsHandler {
	return &SettingsHandler{
		service: service,
	}
}

// Register mounts the settings routes.
func (h *SettingsHandler) Register(router fiber.Router) {
	router.Get("/settings", h.GetSettings)
	router.Put("/settings", h.UpdateSettings)
}

// GetSettings handles GET /settings.
// @Summary Get shipping settings
// @Description Returns the allocation settings, or the defaults when none were saved.
// @Tags Settings
// @Produce json
// @Success 200 {object} domain.ShippingSettings
// @Failure 500 {object} map[string]string
// @Router /settings [get]
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.service.Get(c.UserContext())
	if err != nil {
		logger.Get().Error("Failed to get settings", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	return c.Status(http.StatusOK).JSON(settings)
}

// UpdateSettings handles PUT /settings.
// @Summary Replace shipping settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param settings body domain.ShippingSettings true "Settings document"
// @Success 200 {object} domain.ShippingSettings
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /settings [put]
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	req := domain.DefaultSettings()
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	settings, err := h.service.Update(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSettings) {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Get().Error("Failed to update settings", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	return c.Status(http.StatusOK).JSON(settings)
}
