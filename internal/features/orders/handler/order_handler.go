package handler

import (
	"errors"
	"net/http"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/orders/domain"
	"carrier-engine/internal/features/orders/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests related to orders.
type OrderHandler struct {
	// service is the OrderService instance.
	service *service.OrderService
}

// NewOrderHandler creates a new instance of OrderHandler.
func NewOrderHandler(s *service.OrderService) *OrderHandler {
	return &OrderHandler{
		service: s,
	}
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}

// Register mounts the order routes.
func (h *OrderHandler) Register(router fiber.Router) {
	router.Get("/orders/:id", h.GetOrder)
	router.Post("/orders", h.SaveOrder)
}

// GetOrder returns the order snapshot including its carrier assignment.
// @Summary Get Order by ID
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	rayID := requestID(c)

	order, err := h.service.GetOrder(c.UserContext(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{
				Message: "Order not found",
				RayID:   rayID,
			})
		}

		logger.Get().Error("Failed to fetch order",
			zap.String("order_id", orderID),
			zap.String("ray_id", rayID),
			zap.Error(err),
		)
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   rayID,
		})
	}

	return c.Status(http.StatusOK).JSON(order)
}

// SaveOrder stores an order snapshot in the local order store.
// @Summary Store an order snapshot
// @Tags orders
// @Accept json
// @Produce json
// @Param order body domain.Order true "Order snapshot"
// @Success 201 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 405 {object} ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) SaveOrder(c *fiber.Ctx) error {
	rayID := requestID(c)

	var order domain.Order
	if err := c.BodyParser(&order); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
			RayID:   rayID,
		})
	}

	if err := h.service.SaveOrder(c.UserContext(), &order); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidOrder):
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: err.Error(), RayID: rayID})
		case errors.Is(err, service.ErrReadOnlySource):
			return c.Status(http.StatusMethodNotAllowed).JSON(ErrorResponse{Message: err.Error(), RayID: rayID})
		}
		logger.Get().Error("Failed to save order", zap.String("order_id", order.ID), zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal Server Error",
			RayID:   rayID,
		})
	}

	return c.Status(http.StatusCreated).JSON(order)
}

func requestID(c *fiber.Ctx) string {
	rayID, ok := c.Locals("requestid").(string)
	if !ok {
		rayID = "unknown"
	}
	return rayID
}
