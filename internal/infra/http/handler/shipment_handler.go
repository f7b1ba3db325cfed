package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shipstream/api/internal/app"
	"github.com/shipstream/api/pkg/apierror"
	"github.com/shipstream/api/pkg/domain/shared"
	"github.com/shipstream/api/pkg/domain/shipment"
	"github.com/shipstream/api/pkg/logger"
	"github.com/shipstream/api/pkg/validator"
)

// ShipmentHandler handles HTTP requests for shipments.
type ShipmentHandler struct {
	service   *app.TrackingService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewShipmentHandler creates a new ShipmentHandler.
func NewShipmentHandler(svc *app.TrackingService, v *validator.Validator, log *logger.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// ShipmentResponse represents a shipment in API responses.
type ShipmentResponse struct {
	ID                string                   `json:"id"`
	OrderRef          string                   `json:"order_ref"`
	Carrier           string                   `json:"carrier"`
	TrackingNumber    string                   `json:"tracking_number"`
	Status            string                   `json:"status"`
	TrackingStatus    string                   `json:"tracking_status,omitempty"`
	EstimatedDelivery *time.Time               `json:"estimated_delivery,omitempty"`
	TrackingEvents    []shipment.TrackingEvent `json:"tracking_events,omitempty"`
	LastTrackedAt     *time.Time               `json:"last_tracked_at,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// Create handles POST /api/v1/shipments
func (h *ShipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req app.CreateShipmentInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	sh, err := h.service.CreateShipment(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toShipmentResponse(sh))
}

// Get handles GET /api/v1/shipments/{id}
func (h *ShipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	sh, err := h.service.GetShipment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toShipmentResponse(sh))
}

// GetByTracking handles GET /api/v1/shipments/tracking/{carrier}/{trackingNumber}
func (h *ShipmentHandler) GetByTracking(w http.ResponseWriter, r *http.Request) {
	sh, err := h.service.GetByTracking(r.Context(), chi.URLParam(r, "carrier"), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toShipmentResponse(sh))
}

func toShipmentResponse(sh *shipment.Shipment) ShipmentResponse {
	return ShipmentResponse{
		ID:                sh.ID().String(),
		OrderRef:          sh.OrderRef(),
		Carrier:           sh.Carrier(),
		TrackingNumber:    sh.TrackingNumber(),
		Status:            string(sh.Status()),
		TrackingStatus:    sh.TrackingStatus(),
		EstimatedDelivery: sh.EstimatedDelivery(),
		TrackingEvents:    sh.TrackingEvents(),
		LastTrackedAt:     sh.LastTrackedAt(),
		CreatedAt:         sh.CreatedAt(),
		UpdatedAt:         sh.UpdatedAt(),
	}
}

func (h *ShipmentHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shipment.ErrShipmentNotFound):
		apierror.NotFound("Shipment").WriteJSON(w)
	case errors.Is(err, shipment.ErrTrackingExists):
		apierror.Conflict("Tracking number already registered").WriteJSON(w)
	case shared.IsValidation(err):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("shipment service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
