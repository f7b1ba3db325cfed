package courier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstream/api/internal/config"
	"github.com/shipstream/api/pkg/domain/webhook"
	"github.com/shipstream/api/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&config.CourierConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	}, logger.NewNop())
	require.NoError(t, err)

	return client, srv
}

func TestGetTracking(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/trackings/ups/1Z999AA10123456784", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			json.NewEncoder(w).Encode(Tracking{
				ID:             "trk_1",
				TrackingNumber: "1Z999AA10123456784",
				Carrier:        "ups",
				Status:         "in_transit",
			})
		})

		trk, err := client.GetTracking(context.Background(), "ups", "1Z999AA10123456784")
		require.NoError(t, err)
		assert.Equal(t, "in_transit", trk.Status)
	})

	t.Run("not found", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := client.GetTracking(context.Background(), "ups", "UNKNOWN123")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("provider error includes message", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]string{"message": "upstream carrier down"})
		})

		_, err := client.GetTracking(context.Background(), "ups", "1Z999AA10123456784")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream carrier down")
	})
}

func TestCreateTracking(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/trackings", r.URL.Path)

		var req CreateTrackingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fedex", req.Carrier)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Tracking{
			ID:             "trk_2",
			TrackingNumber: req.TrackingNumber,
			Carrier:        req.Carrier,
			Status:         "pending",
		})
	})

	trk, err := client.CreateTracking(context.Background(), CreateTrackingRequest{
		TrackingNumber: "794644790132",
		Carrier:        "fedex",
	})
	require.NoError(t, err)
	assert.Equal(t, "trk_2", trk.ID)
}

func TestWebhookOperations(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/webhooks", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]any{
				"webhooks": []webhook.Subscription{
					{ID: "wh_1", URL: "https://app.example.com/webhooks/courier", Active: true},
				},
			})
		})

		subs, err := client.ListWebhooks(context.Background())
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "wh_1", subs[0].ID)
	})

	t.Run("get returns nil for unknown id", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		sub, err := client.GetWebhook(context.Background(), "wh_gone")
		require.NoError(t, err)
		assert.Nil(t, sub)
	})

	t.Run("delete", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(http.StatusNoContent)
		})

		assert.NoError(t, client.DeleteWebhook(context.Background(), "wh_1"))
	})

	t.Run("delete unknown id reports missing subscription", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		err := client.DeleteWebhook(context.Background(), "wh_gone")
		assert.ErrorIs(t, err, webhook.ErrSubscriptionNotFound)
	})

	t.Run("test webhook unknown id", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := client.TestWebhook(context.Background(), "wh_gone")
		assert.ErrorIs(t, err, webhook.ErrSubscriptionNotFound)
	})

	t.Run("update sends only set fields", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body, "active")
			assert.NotContains(t, body, "url")

			json.NewEncoder(w).Encode(webhook.Subscription{ID: "wh_1", Active: false})
		})

		active := false
		sub, err := client.UpdateWebhook(context.Background(), "wh_1", UpdateWebhookRequest{Active: &active})
		require.NoError(t, err)
		assert.False(t, sub.Active)
	})
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(&config.CourierConfig{
		BaseURL: srv.URL,
		APIKey:  "k",
		Timeout: 50 * time.Millisecond,
	}, logger.NewNop())
	require.NoError(t, err)

	_, err = client.GetTracking(context.Background(), "ups", "1Z999AA10123456784")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
