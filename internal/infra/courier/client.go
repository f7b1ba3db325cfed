// Package courier implements the REST client for the courier tracking provider.
package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shipstream/api/internal/config"
	"github.com/shipstream/api/pkg/domain/shared"
	"github.com/shipstream/api/pkg/domain/shipment"
	"github.com/shipstream/api/pkg/domain/webhook"
	"github.com/shipstream/api/pkg/logger"
)

// ErrNotFound is returned when the provider reports 404 for a resource.
var ErrNotFound = errors.New("courier: resource not found")

// Client calls the courier provider REST API.
// Every call is bounded by the configured timeout so a stalled provider
// cannot hold webhook or shipment requests open indefinitely.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new provider client from configuration.
func NewClient(cfg *config.CourierConfig, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("courier config is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}, nil
}

// Tracking is the provider's view of a tracked parcel.
type Tracking struct {
	ID                string                   `json:"id"`
	TrackingNumber    string                   `json:"tracking_number"`
	Carrier           string                   `json:"carrier"`
	Status            string                   `json:"status"`
	EstimatedDelivery *time.Time               `json:"estimated_delivery,omitempty"`
	History           []shipment.TrackingEvent `json:"tracking_history,omitempty"`
}

// CreateTrackingRequest registers a tracking number with the provider.
type CreateTrackingRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	OrderRef       string `json:"order_ref,omitempty"`
}

// CreateWebhookRequest registers a webhook callback URL.
type CreateWebhookRequest struct {
	URL    string              `json:"url"`
	Events []webhook.EventType `json:"events"`
	Active bool                `json:"active"`
}

// UpdateWebhookRequest modifies an existing webhook subscription.
// Nil fields are left unchanged at the provider.
type UpdateWebhookRequest struct {
	URL    *string              `json:"url,omitempty"`
	Events *[]webhook.EventType `json:"events,omitempty"`
	Active *bool                `json:"active,omitempty"`
}

// TestResult is the outcome of asking the provider to send a test delivery.
type TestResult struct {
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
}

// CreateTracking registers a tracking number with the provider.
func (c *Client) CreateTracking(ctx context.Context, req CreateTrackingRequest) (*Tracking, error) {
	var out Tracking
	if err := c.do(ctx, http.MethodPost, "/trackings", req, &out); err != nil {
		return nil, shared.NewProviderError("create tracking", err)
	}
	return &out, nil
}

// GetTracking fetches the current tracking state for a carrier and number.
func (c *Client) GetTracking(ctx context.Context, carrier, trackingNumber string) (*Tracking, error) {
	path := fmt.Sprintf("/trackings/%s/%s", carrier, trackingNumber)
	var out Tracking
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, shared.NewProviderError("get tracking", err)
	}
	return &out, nil
}

// CreateWebhook registers a webhook subscription at the provider.
func (c *Client) CreateWebhook(ctx context.Context, req CreateWebhookRequest) (*webhook.Subscription, error) {
	var out webhook.Subscription
	if err := c.do(ctx, http.MethodPost, "/webhooks", req, &out); err != nil {
		return nil, shared.NewProviderError("create webhook", err)
	}
	return &out, nil
}

// ListWebhooks returns all webhook subscriptions registered for this account.
func (c *Client) ListWebhooks(ctx context.Context) ([]webhook.Subscription, error) {
	var out struct {
		Webhooks []webhook.Subscription `json:"webhooks"`
	}
	if err := c.do(ctx, http.MethodGet, "/webhooks", nil, &out); err != nil {
		return nil, shared.NewProviderError("list webhooks", err)
	}
	return out.Webhooks, nil
}

// GetWebhook fetches a single webhook subscription.
// Returns (nil, nil) when the provider does not know the ID, so callers can
// treat a stale cached ID as "not registered" instead of an error.
func (c *Client) GetWebhook(ctx context.Context, id string) (*webhook.Subscription, error) {
	var out webhook.Subscription
	err := c.do(ctx, http.MethodGet, "/webhooks/"+id, nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, shared.NewProviderError("get webhook", err)
	}
	return &out, nil
}

// UpdateWebhook modifies a webhook subscription.
func (c *Client) UpdateWebhook(ctx context.Context, id string, req UpdateWebhookRequest) (*webhook.Subscription, error) {
	var out webhook.Subscription
	if err := c.do(ctx, http.MethodPatch, "/webhooks/"+id, req, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, webhook.ErrSubscriptionNotFound
		}
		return nil, shared.NewProviderError("update webhook", err)
	}
	return &out, nil
}

// DeleteWebhook removes a webhook subscription. A provider 404 surfaces as
// ErrSubscriptionNotFound so callers can report "nothing deleted" instead
// of a silent success.
func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/webhooks/"+id, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return webhook.ErrSubscriptionNotFound
	}
	if err != nil {
		return shared.NewProviderError("delete webhook", err)
	}
	return nil
}

// TestWebhook asks the provider to send a test delivery to the subscription.
func (c *Client) TestWebhook(ctx context.Context, id string) (*TestResult, error) {
	var out TestResult
	if err := c.do(ctx, http.MethodPost, "/webhooks/"+id+"/test", nil, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, webhook.ErrSubscriptionNotFound
		}
		return nil, shared.NewProviderError("test webhook", err)
	}
	return &out, nil
}

// do performs an HTTP request against the provider API.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("courier api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return parseProviderError(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// parseProviderError extracts the provider's error message when present.
func parseProviderError(statusCode int, body []byte) error {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return fmt.Errorf("provider returned %d: %s", statusCode, parsed.Message)
		}
		if parsed.Error != "" {
			return fmt.Errorf("provider returned %d: %s", statusCode, parsed.Error)
		}
	}
	return fmt.Errorf("provider returned %d %s", statusCode, http.StatusText(statusCode))
}
