package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstream/api/internal/app"
	"github.com/shipstream/api/pkg/domain/webhook"
	"github.com/shipstream/api/pkg/logger"
	"github.com/shipstream/api/pkg/signature"
)

const testSecret = "whsec_test"

type stubSyncer struct {
	mu     sync.Mutex
	calls  []app.TrackingData
	result app.SyncResult
	err    error
}

func (s *stubSyncer) Sync(_ context.Context, data app.TrackingData) (app.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, data)
	if s.err != nil {
		return "", s.err
	}
	return s.result, nil
}

type stubRecorder struct {
	mu     sync.Mutex
	events []webhook.Event
}

func (r *stubRecorder) RecordEvent(_ context.Context, event webhook.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func newIngestHandler(secret string) (*CourierWebhookHandler, *stubSyncer, *stubRecorder) {
	syncer := &stubSyncer{result: app.ResultUpdated}
	recorder := &stubRecorder{}
	h := NewCourierWebhookHandler(syncer, recorder, secret, logger.NewNop())
	return h, syncer, recorder
}

func signedRequest(t *testing.T, body []byte, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/courier", bytes.NewReader(body))
	if secret != "" {
		req.Header.Set(SignatureHeader, signature.ComputeHex(body, secret))
	}
	return req
}

func trackingPayload(t *testing.T, event string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event": event,
		"data": map[string]any{
			"tracking_number": "1Z999AA10123456784",
			"carrier":         "ups",
			"tracking_status": "in_transit",
		},
	})
	require.NoError(t, err)
	return body
}

func TestReceive(t *testing.T) {
	t.Run("processes signed event", func(t *testing.T) {
		h, syncer, recorder := newIngestHandler(testSecret)
		body := trackingPayload(t, "track_updated")

		rec := httptest.NewRecorder()
		h.Receive(rec, signedRequest(t, body, testSecret))

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ReceiveResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "track_updated", resp.Event)
		assert.Equal(t, "1Z999AA10123456784", resp.TrackingNumber)
		assert.Equal(t, "updated", resp.Result)
		assert.GreaterOrEqual(t, resp.ElapsedMs, int64(0))

		require.Len(t, syncer.calls, 1)
		assert.Equal(t, "ups", syncer.calls[0].Carrier)

		require.Len(t, recorder.events, 1)
		assert.True(t, recorder.events[0].Success)
		assert.Equal(t, webhook.EventTrackUpdated, recorder.events[0].Type)
	})

	t.Run("reports no_changes on redelivery", func(t *testing.T) {
		h, syncer, _ := newIngestHandler(testSecret)
		syncer.result = app.ResultNoChanges
		body := trackingPayload(t, "track_delivered")

		rec := httptest.NewRecorder()
		h.Receive(rec, signedRequest(t, body, testSecret))

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ReceiveResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "no_changes", resp.Result)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		h, syncer, recorder := newIngestHandler(testSecret)

		rec := httptest.NewRecorder()
		h.Receive(rec, signedRequest(t, []byte("{not json"), testSecret))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, syncer.calls)
		assert.Empty(t, recorder.events, "malformed payloads are not recorded")
	})

	t.Run("rejects missing event or data", func(t *testing.T) {
		h, _, recorder := newIngestHandler(testSecret)

		for _, body := range []string{
			`{"data":{"tracking_number":"X"}}`,
			`{"event":"track_updated"}`,
			`{"event":"track_updated","data":null}`,
		} {
			rec := httptest.NewRecorder()
			h.Receive(rec, signedRequest(t, []byte(body), testSecret))
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
		assert.Empty(t, recorder.events)
	})

	t.Run("rejects bad signature and records failure", func(t *testing.T) {
		h, syncer, recorder := newIngestHandler(testSecret)
		body := trackingPayload(t, "track_updated")

		req := httptest.NewRequest(http.MethodPost, "/webhooks/courier", bytes.NewReader(body))
		req.Header.Set(SignatureHeader, signature.ComputeHex(body, "wrong-secret"))

		rec := httptest.NewRecorder()
		h.Receive(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, syncer.calls)

		require.Len(t, recorder.events, 1)
		assert.False(t, recorder.events[0].Success)
		assert.Equal(t, "Invalid webhook signature", recorder.events[0].Error)
		assert.Equal(t, "1Z999AA10123456784", recorder.events[0].TrackingNumber)
	})

	t.Run("skips verification when header absent", func(t *testing.T) {
		h, syncer, _ := newIngestHandler(testSecret)
		body := trackingPayload(t, "track_updated")

		req := httptest.NewRequest(http.MethodPost, "/webhooks/courier", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		h.Receive(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, syncer.calls, 1)
	})

	t.Run("skips verification when no secret configured", func(t *testing.T) {
		h, syncer, _ := newIngestHandler("")
		body := trackingPayload(t, "track_updated")

		req := httptest.NewRequest(http.MethodPost, "/webhooks/courier", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		h.Receive(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, syncer.calls, 1)
	})

	t.Run("ignores unknown event names but records the delivery", func(t *testing.T) {
		h, syncer, recorder := newIngestHandler(testSecret)
		body := []byte(`{"event":"tracking_created","data":{"tracking_number":"1Z999AA10123456784"}}`)

		rec := httptest.NewRecorder()
		h.Receive(rec, signedRequest(t, body, testSecret))

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ReceiveResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ignored", resp.Result)
		assert.Empty(t, syncer.calls)

		require.Len(t, recorder.events, 1)
		assert.True(t, recorder.events[0].Success)
		assert.Equal(t, webhook.EventType("tracking_created"), recorder.events[0].Type)
		assert.Equal(t, "1Z999AA10123456784", recorder.events[0].TrackingNumber)
	})

	t.Run("acks unknown tracking numbers", func(t *testing.T) {
		h, syncer, recorder := newIngestHandler(testSecret)
		syncer.err = app.ErrUnknownTracking
		body := trackingPayload(t, "track_updated")

		rec := httptest.NewRecorder()
		h.Receive(rec, signedRequest(t, body, testSecret))

		assert.Equal(t, http.StatusOK, rec.Code, "unknown tracking must still be acked")

		var resp ReceiveResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "failed", resp.Result)

		require.Len(t, recorder.events, 1)
		assert.False(t, recorder.events[0].Success)
		assert.Equal(t, "Unknown tracking number", recorder.events[0].Error)
	})

	t.Run("records failure before responding 500", func(t *testing.T) {
		h, syncer, recorder := newIngestHandler(testSecret)
		syncer.err = assert.AnError
		body := trackingPayload(t, "track_updated")

		rec := httptest.NewRecorder()
		h.Receive(rec, signedRequest(t, body, testSecret))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Len(t, recorder.events, 1)
		assert.False(t, recorder.events[0].Success)

		var resp struct {
			Details struct {
				ElapsedMs *int64 `json:"elapsed_ms"`
			} `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Details.ElapsedMs)
		assert.GreaterOrEqual(t, *resp.Details.ElapsedMs, int64(0))
	})
}

func TestVerify(t *testing.T) {
	t.Run("echoes challenge", func(t *testing.T) {
		h, _, _ := newIngestHandler(testSecret)

		req := httptest.NewRequest(http.MethodGet, "/webhooks/courier?challenge=abc123", nil)
		rec := httptest.NewRecorder()
		h.Verify(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "abc123", rec.Body.String())
	})

	t.Run("reports liveness without challenge", func(t *testing.T) {
		h, _, _ := newIngestHandler(testSecret)

		req := httptest.NewRequest(http.MethodGet, "/webhooks/courier", nil)
		rec := httptest.NewRecorder()
		h.Verify(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp["status"])
	})
}
