package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shipstream/api/internal/app"
	"github.com/shipstream/api/internal/infra/courier"
	"github.com/shipstream/api/pkg/apierror"
	"github.com/shipstream/api/pkg/domain/shared"
	"github.com/shipstream/api/pkg/domain/webhook"
	"github.com/shipstream/api/pkg/logger"
	"github.com/shipstream/api/pkg/validator"
)

// WebhookAdminHandler manages courier webhook subscriptions.
type WebhookAdminHandler struct {
	service   *app.WebhookRegistryService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewWebhookAdminHandler creates a new WebhookAdminHandler.
func NewWebhookAdminHandler(svc *app.WebhookRegistryService, v *validator.Validator, log *logger.Logger) *WebhookAdminHandler {
	return &WebhookAdminHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// RegisterRequest represents the request to register a webhook subscription.
type RegisterRequest struct {
	URL    string   `json:"url" validate:"required,url,max=1000"`
	Events []string `json:"events" validate:"omitempty,max=10,dive,webhook_event"`
}

// UpdateSubscriptionRequest represents a partial subscription update.
type UpdateSubscriptionRequest struct {
	URL    *string  `json:"url" validate:"omitempty,url,max=1000"`
	Events []string `json:"events" validate:"omitempty,max=10,dive,webhook_event"`
	Active *bool    `json:"active"`
}

// List handles GET /api/v1/webhooks
func (h *WebhookAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.List(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"webhooks": subs})
}

// Register handles POST /api/v1/webhooks
func (h *WebhookAdminHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	events := toEventTypes(req.Events)
	if len(events) == 0 {
		events = webhook.DefaultEvents()
	}

	sub, err := h.service.Register(r.Context(), req.URL, events)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// AutoRegister handles POST /api/v1/webhooks/auto-register
// It ensures the configured callback URL is registered, reusing an
// existing subscription when one matches.
func (h *WebhookAdminHandler) AutoRegister(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.AutoRegister(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// Get handles GET /api/v1/webhooks/{id}
func (h *WebhookAdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if sub == nil {
		apierror.NotFound("Webhook").WriteJSON(w)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// Update handles PUT and PATCH /api/v1/webhooks/{id}
func (h *WebhookAdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	update := courier.UpdateWebhookRequest{
		URL:    req.URL,
		Active: req.Active,
	}
	if req.Events != nil {
		events := toEventTypes(req.Events)
		update.Events = &events
	}

	sub, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// Delete handles DELETE /api/v1/webhooks/{id}
func (h *WebhookAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// Test handles POST /api/v1/webhooks/{id}/test
func (h *WebhookAdminHandler) Test(w http.ResponseWriter, r *http.Request) {
	delivered, err := h.service.Test(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"delivered": delivered})
}

// Status handles GET /api/v1/webhooks/status
func (h *WebhookAdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Events handles GET /api/v1/webhooks/events/{trackingNumber}
// An optional limit query parameter caps the returned events.
func (h *WebhookAdminHandler) Events(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r.URL.Query().Get("limit"), 0)
	events, err := h.service.Events(r.Context(), chi.URLParam(r, "trackingNumber"), limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func toEventTypes(names []string) []webhook.EventType {
	events := make([]webhook.EventType, len(names))
	for i, name := range names {
		events[i] = webhook.EventType(name)
	}
	return events
}

func (h *WebhookAdminHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, webhook.ErrSubscriptionNotFound):
		apierror.NotFound("Webhook").WriteJSON(w)
	case shared.IsValidation(err):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("webhook admin error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
