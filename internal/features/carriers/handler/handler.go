package handler

import (
	"context"
	"errors"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/carriers/domain"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CarrierQueries is the primary port the handler depends on.
type CarrierQueries interface {
	ListCarriers(ctx context.Context) ([]domain.Carrier, error)
	RecentAPILogs(ctx context.Context, code string, limit int) ([]domain.APILog, error)
}

// CarrierHandler handles HTTP requests for carriers.
type CarrierHandler struct {
	service CarrierQueries
}

// NewCarrierHandler creates a new CarrierHandler.
func NewCarrierHandler(service CarrierQueries) *CarrierHandler {
	return &CarrierHandler{service: service}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	Message string `json:"message"`
	RayID   string `json:"ray_id,omitempty"`
}

// CarrierResponse is a carrier with its derived API success rate.
type CarrierResponse struct {
	domain.Carrier
	APISuccessRate float64 `json:"api_success_rate"`
}

// Register mounts the carrier routes.
func (h *CarrierHandler) Register(router fiber.Router) {
	router.Get("/carriers", h.ListCarriers)
	router.Get("/carriers/:code/api-logs", h.ListAPILogs)
}

// ListCarriers godoc
// @Summary List carriers
// @Description Returns every carrier with capability flags, status, priority and API metrics.
// @Tags carriers
// @Produce json
// @Success 200 {array} CarrierResponse
// @Failure 500 {object} ErrorResponse
// @Router /carriers [get]
func (h *CarrierHandler) ListCarriers(c *fiber.Ctx) error {
	carriers, err := h.service.ListCarriers(c.UserContext())
	if err != nil {
		logger.Get().Error("Failed to list carriers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: "failed to list carriers",
			RayID:   rayID(c),
		})
	}

	resp := make([]CarrierResponse, 0, len(carriers))
	for _, carrier := range carriers {
		resp = append(resp, CarrierResponse{
			Carrier:        carrier,
			APISuccessRate: carrier.Metrics.APISuccessRate(),
		})
	}
	return c.JSON(resp)
}

// ListAPILogs godoc
// @Summary List recent carrier API calls
// @Tags carriers
// @Produce json
// @Param code path string true "Carrier code"
// @Param limit query int false "Maximum entries (default 50)"
// @Success 200 {array} domain.APILog
// @Failure 404 {object} ErrorResponse
// @Router /carriers/{code}/api-logs [get]
func (h *CarrierHandler) ListAPILogs(c *fiber.Ctx) error {
	logs, err := h.service.RecentAPILogs(c.UserContext(), c.Params("code"), c.QueryInt("limit"))
	if err != nil {
		if errors.Is(err, domain.ErrCarrierNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Message: "carrier not found",
				RayID:   rayID(c),
			})
		}
		logger.Get().Error("Failed to list carrier API logs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: "failed to list api logs",
			RayID:   rayID(c),
		})
	}
	return c.JSON(logs)
}

func rayID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}
