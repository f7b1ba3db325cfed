package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/shipstream/api/internal/app"
	"github.com/shipstream/api/internal/infra/http/middleware"
	"github.com/shipstream/api/pkg/apierror"
	"github.com/shipstream/api/pkg/domain/webhook"
	"github.com/shipstream/api/pkg/logger"
	"github.com/shipstream/api/pkg/signature"
)

// SignatureHeader carries the provider's HMAC-SHA256 signature of the raw body.
const SignatureHeader = "X-Courier-Signature"

// TrackingSyncer applies a provider tracking payload to stored shipments.
type TrackingSyncer interface {
	Sync(ctx context.Context, data app.TrackingData) (app.SyncResult, error)
}

// EventRecorder records processed webhook events per tracking number.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event webhook.Event) error
}

// CourierWebhookHandler receives tracking push notifications from the
// courier provider.
type CourierWebhookHandler struct {
	sync     TrackingSyncer
	recorder EventRecorder
	secret   string
	logger   *logger.Logger
}

// NewCourierWebhookHandler creates a new CourierWebhookHandler.
// An empty secret disables signature verification.
func NewCourierWebhookHandler(sync TrackingSyncer, recorder EventRecorder, secret string, log *logger.Logger) *CourierWebhookHandler {
	return &CourierWebhookHandler{
		sync:     sync,
		recorder: recorder,
		secret:   secret,
		logger:   log.With("handler", "courier_webhook"),
	}
}

// webhookEnvelope is the provider's outer payload shape.
type webhookEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ReceiveResponse is the acknowledgement returned for processed events.
type ReceiveResponse struct {
	Event          string `json:"event"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	ElapsedMs      int64  `json:"elapsed_ms"`
	Result         string `json:"result"`
}

// Receive handles POST /webhooks/courier.
func (h *CourierWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		apierror.BadRequest("Unable to read request body").WriteJSON(w)
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if envelope.Event == "" || len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		apierror.BadRequest("Missing event or data").WriteJSON(w)
		return
	}

	// Signature covers the raw body, not the re-serialized payload.
	// Verification runs only when both a secret is configured and the
	// provider sent a signature header.
	if sig := r.Header.Get(SignatureHeader); h.secret != "" && sig != "" {
		if !signature.Verify(body, sig, h.secret) {
			h.recordFailure(r.Context(), webhook.EventType(envelope.Event), trackingNumberOf(envelope.Data), "Invalid webhook signature")
			h.logger.Warn("webhook signature verification failed",
				"event", envelope.Event,
				"request_id", middleware.GetRequestID(r.Context()),
			)
			apierror.Unauthorized("Invalid webhook signature").WriteJSON(w)
			return
		}
	} else if h.secret != "" {
		h.logger.Warn("webhook received without signature header, verification skipped",
			"event", envelope.Event,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}

	eventType := webhook.EventType(envelope.Event)
	if !eventType.IsKnown() {
		h.logger.Info("ignoring unhandled webhook event", "event", envelope.Event)
		// Verified deliveries always leave an audit record, no-ops included.
		if err := h.recorder.RecordEvent(r.Context(), webhook.NewEvent(eventType, trackingNumberOf(envelope.Data), "", "")); err != nil {
			h.logger.Warn("failed to record webhook event", "error", err)
		}
		middleware.RecordWebhookEvent(envelope.Event, "ignored")
		writeJSON(w, http.StatusOK, ReceiveResponse{
			Event:     envelope.Event,
			ElapsedMs: time.Since(start).Milliseconds(),
			Result:    "ignored",
		})
		return
	}

	var data app.TrackingData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		apierror.BadRequest("Invalid event data").WriteJSON(w)
		return
	}

	result, err := h.sync.Sync(r.Context(), data)
	switch {
	case errors.Is(err, app.ErrUnknownTracking):
		// Ack unknown tracking numbers so the provider stops retrying.
		h.recordFailure(r.Context(), eventType, data.TrackingNumber, "Unknown tracking number")
		h.logger.Warn("webhook for unknown tracking number",
			"event", envelope.Event,
			"tracking_number", data.TrackingNumber,
		)
		middleware.RecordWebhookEvent(envelope.Event, "failed")
		writeJSON(w, http.StatusOK, ReceiveResponse{
			Event:          envelope.Event,
			TrackingNumber: data.TrackingNumber,
			ElapsedMs:      time.Since(start).Milliseconds(),
			Result:         "failed",
		})
		return
	case err != nil:
		h.recordFailure(r.Context(), eventType, data.TrackingNumber, err.Error())
		h.logger.Error("webhook processing failed",
			"event", envelope.Event,
			"tracking_number", data.TrackingNumber,
			"error", err,
		)
		middleware.RecordWebhookEvent(envelope.Event, "error")
		apierror.InternalError(err).WithDetails(map[string]int64{
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).WriteJSON(w)
		return
	}

	if err := h.recorder.RecordEvent(r.Context(), webhook.NewEvent(eventType, data.TrackingNumber, data.Carrier, data.TrackingStatus)); err != nil {
		h.logger.Warn("failed to record webhook event", "error", err)
	}

	middleware.RecordWebhookEvent(envelope.Event, string(result))
	writeJSON(w, http.StatusOK, ReceiveResponse{
		Event:          envelope.Event,
		TrackingNumber: data.TrackingNumber,
		ElapsedMs:      time.Since(start).Milliseconds(),
		Result:         string(result),
	})
}

// Verify handles GET /webhooks/courier. The provider probes the endpoint
// with a challenge query parameter during subscription setup and expects
// the value echoed back verbatim.
func (h *CourierWebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if challenge := r.URL.Query().Get("challenge"); challenge != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordFailure records a failed event, tolerating recorder errors.
func (h *CourierWebhookHandler) recordFailure(ctx context.Context, eventType webhook.EventType, trackingNumber, reason string) {
	if err := h.recorder.RecordEvent(ctx, webhook.NewFailureEvent(eventType, trackingNumber, reason)); err != nil {
		h.logger.Warn("failed to record webhook failure event", "error", err)
	}
}

// trackingNumberOf extracts the tracking number from a raw data object,
// best-effort, for failure event records.
func trackingNumberOf(data json.RawMessage) string {
	var peek struct {
		TrackingNumber string `json:"tracking_number"`
	}
	_ = json.Unmarshal(data, &peek)
	return peek.TrackingNumber
}
