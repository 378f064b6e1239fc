package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"carrier-engine/internal/core/cache"
	"carrier-engine/internal/core/logger"
	allocationdomain "carrier-engine/internal/features/allocation/domain"
	carrierdomain "carrier-engine/internal/features/carriers/domain"
	orderdomain "carrier-engine/internal/features/orders/domain"
	ruleservice "carrier-engine/internal/features/rules/service"
	"carrier-engine/internal/features/shipments/domain"
	"carrier-engine/internal/features/shipments/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserHeader names the operator making the request.
const UserHeader = "X-User"

const defaultUser = "api"

// ShipmentOperations is what the handler needs from the orchestrator.
type ShipmentOperations interface {
	CreateShipment(ctx context.Context, req service.CreateRequest) (*service.ShipmentResult, error)
	CancelShipment(ctx context.Context, shipmentID string) (*service.CancelResult, error)
	UpdateTracking(ctx context.Context, shipmentID string) (*domain.TrackingUpdate, error)
	BulkAllocate(ctx context.Context, orderIDs []string, user string) (*service.BulkResult, error)
	GetShipment(ctx context.Context, shipmentID string) (*service.ShipmentDetails, error)
}

// NDROperations records failed deliveries and operator actions.
type NDROperations interface {
	RaiseNDR(ctx context.Context, shipmentID string, req service.RaiseNDRRequest) (*domain.NDRRecord, error)
	ActionNDR(ctx context.Context, ndrID string, in domain.NDRActionInput, user string) (*domain.NDRRecord, error)
}

// OrderReader loads order snapshots.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*orderdomain.Order, error)
}

// Recommender dry-runs allocation.
type Recommender interface {
	Recommend(ctx context.Context, order *orderdomain.Order) (*allocationdomain.Recommendation, error)
}

// PincodeImporter loads pincode rules from CSV.
type PincodeImporter interface {
	ImportPincodeRules(ctx context.Context, r io.Reader) (*ruleservice.ImportResult, error)
}

// ShipmentHandler serves the booking, tracking and NDR endpoints.
type ShipmentHandler struct {
	shipments   ShipmentOperations
	ndr         NDROperations
	orders      OrderReader
	recommender Recommender
	importer    PincodeImporter
}

// NewShipmentHandler creates a new ShipmentHandler.
func NewShipmentHandler(shipments ShipmentOperations, ndr NDROperations, orders OrderReader, recommender Recommender, importer PincodeImporter) *ShipmentHandler {
	return &ShipmentHandler{
		shipments:   shipments,
		ndr:         ndr,
		orders:      orders,
		recommender: recommender,
		importer:    importer,
	}
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}

// AssignCarrierRequest is the body of an assign-carrier call.
type AssignCarrierRequest struct {
	// CarrierCode forces a carrier instead of running allocation.
	CarrierCode string `json:"carrier_code"`
	// Force cancels the order's active shipment first.
	Force bool `json:"force"`
}

// BulkAllocateRequest is the body of a bulk-allocate call.
type BulkAllocateRequest struct {
	OrderIDs []string `json:"order_ids"`
}

// Register mounts the shipment routes.
func (h *ShipmentHandler) Register(router fiber.Router) {
	router.Post("/orders/:id/assign-carrier", h.AssignCarrier)
	router.Get("/orders/:id/carrier-recommendation", h.CarrierRecommendation)
	router.Post("/shipments/bulk-allocate", h.BulkAllocate)
	router.Get("/shipments/:id", h.GetShipment)
	router.Post("/shipments/:id/cancel", h.CancelShipment)
	router.Post("/shipments/:id/update-tracking", h.UpdateTracking)
	router.Post("/shipments/:id/ndr", h.RaiseNDR)
	router.Post("/ndr/:id/action", h.ActionNDR)
	router.Post("/pincode-rules/import", h.ImportPincodeRules)
}

// AssignCarrier books a carrier for an order.
// @Summary Assign a carrier and book the shipment
// @Tags shipments
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body AssignCarrierRequest false "Carrier override"
// @Success 201 {object} service.ShipmentResult
// @Failure 400 {object} service.ShipmentResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} service.ShipmentResult
// @Failure 422 {object} service.ShipmentResult
// @Failure 502 {object} service.ShipmentResult
// @Router /orders/{id}/assign-carrier [post]
func (h *ShipmentHandler) AssignCarrier(c *fiber.Ctx) error {
	orderID := c.Params("id")

	var body AssignCarrierRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	res, err := h.shipments.CreateShipment(c.UserContext(), service.CreateRequest{
		OrderID:     orderID,
		CarrierCode: body.CarrierCode,
		User:        user(c),
		Force:       body.Force,
	})
	if err != nil {
		return h.fail(c, "Failed to assign carrier", err, zap.String("order_id", orderID))
	}

	if res.ReconciliationRequired {
		logger.Get().Error("Booked shipment needs reconciliation",
			zap.String("order_id", orderID),
			zap.String("awb", res.AWBNumber),
			zap.String("ray_id", rayID(c)),
		)
	}
	return c.Status(resultStatus(res)).JSON(res)
}

// CarrierRecommendation dry-runs allocation and quotes every active carrier.
// @Summary Recommend carriers for an order
// @Tags shipments
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} allocationdomain.Recommendation
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/carrier-recommendation [get]
func (h *ShipmentHandler) CarrierRecommendation(c *fiber.Ctx) error {
	orderID := c.Params("id")

	order, err := h.orders.GetOrder(c.UserContext(), orderID)
	if err != nil {
		return h.fail(c, "Failed to load order", err, zap.String("order_id", orderID))
	}

	rec, err := h.recommender.Recommend(c.UserContext(), order)
	if err != nil {
		return h.fail(c, "Failed to recommend carriers", err, zap.String("order_id", orderID))
	}
	return c.Status(http.StatusOK).JSON(rec)
}

// BulkAllocate books carriers for many orders.
// @Summary Allocate carriers in bulk
// @Tags shipments
// @Accept json
// @Produce json
// @Param request body BulkAllocateRequest true "Order ids"
// @Success 200 {object} service.BulkResult
// @Failure 400 {object} ErrorResponse
// @Router /shipments/bulk-allocate [post]
func (h *ShipmentHandler) BulkAllocate(c *fiber.Ctx) error {
	var body BulkAllocateRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(body.OrderIDs) == 0 {
		return badRequest(c, "order_ids must not be empty")
	}

	res, err := h.shipments.BulkAllocate(c.UserContext(), body.OrderIDs, user(c))
	if err != nil {
		return h.fail(c, "Bulk allocation failed", err, zap.Int("orders", len(body.OrderIDs)))
	}
	return c.Status(http.StatusOK).JSON(res)
}

// GetShipment returns a shipment with its tracking events and NDRs.
// @Summary Get Shipment by ID
// @Tags shipments
// @Produce json
// @Param id path string true "Shipment ID"
// @Success 200 {object} service.ShipmentDetails
// @Failure 404 {object} ErrorResponse
// @Router /shipments/{id} [get]
func (h *ShipmentHandler) GetShipment(c *fiber.Ctx) error {
	shipmentID := c.Params("id")

	details, err := h.shipments.GetShipment(c.UserContext(), shipmentID)
	if err != nil {
		return h.fail(c, "Failed to load shipment", err, zap.String("shipment_id", shipmentID))
	}
	return c.Status(http.StatusOK).JSON(details)
}

// CancelShipment cancels a shipment with its carrier.
// @Summary Cancel a shipment
// @Tags shipments
// @Produce json
// @Param id path string true "Shipment ID"
// @Success 200 {object} service.CancelResult
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} service.CancelResult
// @Router /shipments/{id}/cancel [post]
func (h *ShipmentHandler) CancelShipment(c *fiber.Ctx) error {
	shipmentID := c.Params("id")

	res, err := h.shipments.CancelShipment(c.UserContext(), shipmentID)
	if err != nil {
		return h.fail(c, "Failed to cancel shipment", err, zap.String("shipment_id", shipmentID))
	}
	if !res.Success {
		return c.Status(http.StatusUnprocessableEntity).JSON(res)
	}
	return c.Status(http.StatusOK).JSON(res)
}

// UpdateTracking pulls the latest tracking from the carrier.
// @Summary Refresh shipment tracking
// @Tags shipments
// @Produce json
// @Param id path string true "Shipment ID"
// @Success 200 {object} domain.TrackingUpdate
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /shipments/{id}/update-tracking [post]
func (h *ShipmentHandler) UpdateTracking(c *fiber.Ctx) error {
	shipmentID := c.Params("id")

	update, err := h.shipments.UpdateTracking(c.UserContext(), shipmentID)
	if err != nil {
		return h.fail(c, "Failed to update tracking", err, zap.String("shipment_id", shipmentID))
	}
	return c.Status(http.StatusOK).JSON(update)
}

// RaiseNDR records a failed delivery attempt.
// @Summary Raise an NDR
// @Tags ndr
// @Accept json
// @Produce json
// @Param id path string true "Shipment ID"
// @Param request body service.RaiseNDRRequest true "NDR"
// @Success 201 {object} domain.NDRRecord
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /shipments/{id}/ndr [post]
func (h *ShipmentHandler) RaiseNDR(c *fiber.Ctx) error {
	shipmentID := c.Params("id")

	var body service.RaiseNDRRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ndr, err := h.ndr.RaiseNDR(c.UserContext(), shipmentID, body)
	if err != nil {
		return h.fail(c, "Failed to raise NDR", err, zap.String("shipment_id", shipmentID))
	}
	return c.Status(http.StatusCreated).JSON(ndr)
}

// ActionNDR records the operator's decision on an NDR.
// @Summary Action an NDR
// @Tags ndr
// @Accept json
// @Produce json
// @Param id path string true "NDR ID"
// @Param request body domain.NDRActionInput true "Action"
// @Success 200 {object} domain.NDRRecord
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /ndr/{id}/action [post]
func (h *ShipmentHandler) ActionNDR(c *fiber.Ctx) error {
	ndrID := c.Params("id")

	var body domain.NDRActionInput
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ndr, err := h.ndr.ActionNDR(c.UserContext(), ndrID, body, user(c))
	if err != nil {
		return h.fail(c, "Failed to action NDR", err, zap.String("ndr_id", ndrID))
	}
	return c.Status(http.StatusOK).JSON(ndr)
}

// ImportPincodeRules upserts pincode rules from an uploaded CSV file.
// @Summary Import pincode rules
// @Tags rules
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} ruleservice.ImportResult
// @Failure 400 {object} ErrorResponse
// @Router /pincode-rules/import [post]
func (h *ShipmentHandler) ImportPincodeRules(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	file, err := header.Open()
	if err != nil {
		return badRequest(c, "Unable to read uploaded file")
	}
	defer file.Close()

	res, err := h.importer.ImportPincodeRules(c.UserContext(), file)
	if err != nil {
		if errors.Is(err, ruleservice.ErrMalformedCSV) {
			// Rows before the bad line are already imported.
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"message": err.Error(),
				"ray_id":  rayID(c),
				"result":  res,
			})
		}
		return h.fail(c, "Pincode import failed", err, zap.String("file", header.Filename))
	}
	return c.Status(http.StatusOK).JSON(res)
}

// resultStatus maps a booking result to an HTTP status.
func resultStatus(res *service.ShipmentResult) int {
	if res.Success {
		return http.StatusCreated
	}
	switch res.FailureKind {
	case service.FailureConflict:
		return http.StatusConflict
	case service.FailureInvalid:
		return http.StatusBadRequest
	case service.FailureNoCarrier, service.FailureRejected:
		return http.StatusUnprocessableEntity
	case service.FailureTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail maps service errors to responses. Unknown errors are logged and hidden.
func (h *ShipmentHandler) fail(c *fiber.Ctx, msg string, err error, fields ...zap.Field) error {
	var transportErr *carrierdomain.AdapterTransportError

	switch {
	case errors.Is(err, domain.ErrShipmentNotFound),
		errors.Is(err, domain.ErrNDRNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, carrierdomain.ErrCarrierNotFound):
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{Message: err.Error(), RayID: rayID(c)})
	case errors.Is(err, domain.ErrInvalidNDR), errors.Is(err, orderdomain.ErrInvalidOrder):
		return badRequest(c, err.Error())
	case errors.Is(err, cache.ErrLockHeld):
		return c.Status(http.StatusConflict).JSON(ErrorResponse{Message: err.Error(), RayID: rayID(c)})
	case errors.As(err, &transportErr):
		logger.Get().Warn(msg, append(fields, zap.String("ray_id", rayID(c)), zap.Error(err))...)
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{Message: err.Error(), RayID: rayID(c)})
	}

	logger.Get().Error(msg, append(fields, zap.String("ray_id", rayID(c)), zap.Error(err))...)
	return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
		Message: "Internal Server Error",
		RayID:   rayID(c),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: msg, RayID: rayID(c)})
}

func user(c *fiber.Ctx) string {
	if u := c.Get(UserHeader); u != "" {
		return u
	}
	return defaultUser
}

func rayID(c *fiber.Ctx) string {
	id, ok := c.Locals("requestid").(string)
	if !ok {
		return "unknown"
	}
	return id
}
