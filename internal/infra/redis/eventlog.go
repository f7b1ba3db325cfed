package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shipstream/api/pkg/domain/webhook"
	"github.com/shipstream/api/pkg/logger"
)

const (
	// eventLogKeyPrefix namespaces per-tracking-number event lists.
	eventLogKeyPrefix = "webhook:events"

	// eventLogTTL is refreshed on every write, so the list survives as long
	// as events keep arriving and disappears a week after the last one.
	eventLogTTL = 7 * 24 * time.Hour

	// deliveryMarkerKey holds the most recent delivery outcome. No TTL:
	// the marker must outlive the status cache it feeds.
	deliveryMarkerKey = "webhook:last_delivery"
)

// WebhookEventLog records processed webhook events per tracking number.
// Each tracking number has its own Redis list with the newest event at the
// head. The log is diagnostic: write failures are reported to the caller
// but must never fail ingestion.
type WebhookEventLog struct {
	client *Client
	logger *logger.Logger
}

// NewWebhookEventLog creates a new event log.
func NewWebhookEventLog(client *Client, log *logger.Logger) (*WebhookEventLog, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &WebhookEventLog{client: client, logger: log}, nil
}

func (l *WebhookEventLog) buildKey(trackingNumber string) string {
	return fmt.Sprintf("%s:%s", eventLogKeyPrefix, trackingNumber)
}

// Record appends an event to the head of the tracking number's list and
// refreshes the retention TTL.
func (l *WebhookEventLog) Record(ctx context.Context, event webhook.Event) error {
	if event.TrackingNumber == "" {
		return errors.New("tracking number is required")
	}

	start := time.Now()
	key := l.buildKey(event.TrackingNumber)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("event log marshal: %w", err)
	}

	pipe := l.client.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.Expire(ctx, key, eventLogTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		DefaultMetrics.ObserveOperation("eventlog_record", time.Since(start), err)
		return fmt.Errorf("event log record: %w", err)
	}

	DefaultMetrics.ObserveOperation("eventlog_record", time.Since(start), nil)
	return nil
}

// List returns up to limit events for a tracking number, newest first.
// A limit <= 0 returns the full list. Entries that fail to decode are
// skipped with a warning rather than poisoning the whole read.
func (l *WebhookEventLog) List(ctx context.Context, trackingNumber string, limit int) ([]webhook.Event, error) {
	if trackingNumber == "" {
		return nil, errors.New("tracking number is required")
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	key := l.buildKey(trackingNumber)
	raw, err := l.client.client.LRange(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("event log list: %w", err)
	}

	events := make([]webhook.Event, 0, len(raw))
	for _, item := range raw {
		var event webhook.Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			l.logger.Warn("event log entry decode failed",
				"tracking_number", trackingNumber,
				"error", err,
			)
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// SetLastOutcome persists the most recent delivery outcome.
func (l *WebhookEventLog) SetLastOutcome(ctx context.Context, marker webhook.DeliveryMarker) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("delivery marker marshal: %w", err)
	}

	if err := l.client.client.Set(ctx, deliveryMarkerKey, data, 0).Err(); err != nil {
		return fmt.Errorf("delivery marker set: %w", err)
	}
	return nil
}

// LastOutcome returns the persisted delivery outcome, or nil when no
// delivery has been recorded yet.
func (l *WebhookEventLog) LastOutcome(ctx context.Context) (*webhook.DeliveryMarker, error) {
	raw, err := l.client.Get(ctx, deliveryMarkerKey)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delivery marker get: %w", err)
	}

	var marker webhook.DeliveryMarker
	if err := json.Unmarshal([]byte(raw), &marker); err != nil {
		return nil, fmt.Errorf("delivery marker decode: %w", err)
	}
	return &marker, nil
}
