// Package app contains the application services.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shipstream/api/internal/infra/courier"
	"github.com/shipstream/api/pkg/domain/webhook"
	"github.com/shipstream/api/pkg/logger"
)

// registryCacheKey is the single cache slot per concern; the service manages
// one provider account, so there is nothing else to key by.
const registryCacheKey = "courier"

// CourierWebhookAPI is the provider surface the registry service depends on.
type CourierWebhookAPI interface {
	CreateWebhook(ctx context.Context, req courier.CreateWebhookRequest) (*webhook.Subscription, error)
	ListWebhooks(ctx context.Context) ([]webhook.Subscription, error)
	GetWebhook(ctx context.Context, id string) (*webhook.Subscription, error)
	UpdateWebhook(ctx context.Context, id string, req courier.UpdateWebhookRequest) (*webhook.Subscription, error)
	DeleteWebhook(ctx context.Context, id string) error
	TestWebhook(ctx context.Context, id string) (*courier.TestResult, error)
}

// SubscriptionListCache caches the provider's subscription list.
type SubscriptionListCache interface {
	GetOrSet(ctx context.Context, key string, loader func(context.Context) (*[]webhook.Subscription, error)) (*[]webhook.Subscription, error)
	Invalidate(ctx context.Context, key string) error
}

// RegistryStatusCache caches the derived registration status.
type RegistryStatusCache interface {
	Get(ctx context.Context, key string) (*webhook.RegistryStatus, error)
	Set(ctx context.Context, key string, value webhook.RegistryStatus) error
	Invalidate(ctx context.Context, key string) error
}

// EventLog records processed webhook events per tracking number and keeps
// the most recent delivery outcome durably.
type EventLog interface {
	Record(ctx context.Context, event webhook.Event) error
	List(ctx context.Context, trackingNumber string, limit int) ([]webhook.Event, error)
	SetLastOutcome(ctx context.Context, marker webhook.DeliveryMarker) error
	LastOutcome(ctx context.Context) (*webhook.DeliveryMarker, error)
}

// WebhookRegistryService manages the webhook subscription held at the courier
// provider, with cache-backed reads. The provider is the source of truth;
// the caches only absorb read traffic.
type WebhookRegistryService struct {
	provider    CourierWebhookAPI
	listCache   SubscriptionListCache
	statusCache RegistryStatusCache
	events      EventLog
	callbackURL string
	logger      *logger.Logger
}

// NewWebhookRegistryService creates a new WebhookRegistryService.
func NewWebhookRegistryService(
	provider CourierWebhookAPI,
	listCache SubscriptionListCache,
	statusCache RegistryStatusCache,
	events EventLog,
	callbackURL string,
	log *logger.Logger,
) *WebhookRegistryService {
	return &WebhookRegistryService{
		provider:    provider,
		listCache:   listCache,
		statusCache: statusCache,
		events:      events,
		callbackURL: callbackURL,
		logger:      log.With("service", "webhook_registry"),
	}
}

// Register ensures a subscription for the given URL exists at the provider.
// Idempotency is checked against a live provider read, never the cache, so a
// stale cached list cannot cause a duplicate subscription.
func (s *WebhookRegistryService) Register(ctx context.Context, url string, events []webhook.EventType) (*webhook.Subscription, error) {
	existing, err := s.provider.ListWebhooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("register webhook: %w", err)
	}

	for i := range existing {
		if existing[i].URL == url {
			for _, e := range events {
				if !existing[i].ListensTo(e) {
					s.logger.Warn("existing subscription does not cover requested event",
						"webhook_id", existing[i].ID,
						"event", string(e),
					)
				}
			}
			s.logger.Info("webhook already registered",
				"webhook_id", existing[i].ID,
				"url", url,
			)
			return &existing[i], nil
		}
	}

	sub, err := s.provider.CreateWebhook(ctx, courier.CreateWebhookRequest{
		URL:    url,
		Events: events,
		Active: true,
	})
	if err != nil {
		return nil, fmt.Errorf("register webhook: %w", err)
	}

	s.invalidateCaches(ctx)

	s.logger.Info("webhook registered",
		"webhook_id", sub.ID,
		"url", url,
		"events", len(events),
	)
	return sub, nil
}

// AutoRegister registers the canonical callback URL with the default event
// set. Called once at startup; failures are the caller's to log and ignore.
func (s *WebhookRegistryService) AutoRegister(ctx context.Context) (*webhook.Subscription, error) {
	return s.Register(ctx, s.callbackURL, webhook.DefaultEvents())
}

// List returns the provider's subscriptions, cache-first.
// Degrades to an empty list on provider failure so health surfaces that
// depend on it stay up.
func (s *WebhookRegistryService) List(ctx context.Context) ([]webhook.Subscription, error) {
	subs, err := s.listCache.GetOrSet(ctx, registryCacheKey, func(ctx context.Context) (*[]webhook.Subscription, error) {
		fetched, err := s.provider.ListWebhooks(ctx)
		if err != nil {
			return nil, err
		}
		if fetched == nil {
			fetched = []webhook.Subscription{}
		}
		return &fetched, nil
	})
	if err != nil {
		s.logger.Warn("webhook list unavailable", "error", err)
		return []webhook.Subscription{}, nil
	}
	if subs == nil || *subs == nil {
		return []webhook.Subscription{}, nil
	}
	return *subs, nil
}

// Get returns a single subscription, or nil when the provider does not know
// the ID.
func (s *WebhookRegistryService) Get(ctx context.Context, id string) (*webhook.Subscription, error) {
	return s.provider.GetWebhook(ctx, id)
}

// Update modifies a subscription at the provider and invalidates the caches.
func (s *WebhookRegistryService) Update(ctx context.Context, id string, req courier.UpdateWebhookRequest) (*webhook.Subscription, error) {
	sub, err := s.provider.UpdateWebhook(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update webhook: %w", err)
	}

	s.invalidateCaches(ctx)
	s.logger.Info("webhook updated", "webhook_id", id)
	return sub, nil
}

// Delete removes a subscription at the provider. Returns false rather than
// an error when the provider reports the subscription missing.
func (s *WebhookRegistryService) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.provider.DeleteWebhook(ctx, id); err != nil {
		if errors.Is(err, webhook.ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete webhook: %w", err)
	}

	s.invalidateCaches(ctx)
	s.logger.Info("webhook deleted", "webhook_id", id)
	return true, nil
}

// Test asks the provider to send a test delivery and reports whether it
// arrived.
func (s *WebhookRegistryService) Test(ctx context.Context, id string) (bool, error) {
	result, err := s.provider.TestWebhook(ctx, id)
	if err != nil {
		return false, fmt.Errorf("test webhook: %w", err)
	}
	return result.Delivered, nil
}

// Status reports whether the callback URL is registered and active,
// cache-first with a short TTL since it backs health surfaces.
func (s *WebhookRegistryService) Status(ctx context.Context) (*webhook.RegistryStatus, error) {
	cached, err := s.statusCache.Get(ctx, registryCacheKey)
	if err == nil {
		return cached, nil
	}

	status := s.computeStatus(ctx)
	if err := s.statusCache.Set(ctx, registryCacheKey, *status); err != nil {
		s.logger.Warn("status cache set failed", "error", err)
	}
	return status, nil
}

func (s *WebhookRegistryService) computeStatus(ctx context.Context) *webhook.RegistryStatus {
	status := &webhook.RegistryStatus{LastChecked: time.Now()}

	subs, err := s.List(ctx)
	if err != nil {
		return status
	}

	for i := range subs {
		if subs[i].URL == s.callbackURL {
			status.Registered = true
			status.Active = subs[i].Active
			status.WebhookID = subs[i].ID
			status.URL = subs[i].URL
			break
		}
	}

	// Delivery markers live outside the status cache; merge them back in so
	// lastSuccess/lastError survive a cache expiry.
	if marker, err := s.events.LastOutcome(ctx); err == nil && marker != nil {
		status.LastSuccess = marker.LastSuccess
		status.LastError = marker.LastError
	}
	return status
}

// RecordEvent appends a processed event to the per-tracking-number log and
// refreshes the cached status' delivery markers.
func (s *WebhookRegistryService) RecordEvent(ctx context.Context, event webhook.Event) error {
	if err := s.events.Record(ctx, event); err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}

	s.noteDelivery(ctx, event)
	return nil
}

// Events returns the retained events for a tracking number, newest first.
// A limit <= 0 returns the full retained list. Empty, never nil, when
// nothing is retained.
func (s *WebhookRegistryService) Events(ctx context.Context, trackingNumber string, limit int) ([]webhook.Event, error) {
	events, err := s.events.List(ctx, trackingNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	if events == nil {
		events = []webhook.Event{}
	}
	return events, nil
}

// noteDelivery folds the event outcome into the durable delivery marker and
// refreshes the cached status. Best-effort: a cache failure here never
// affects ingestion.
func (s *WebhookRegistryService) noteDelivery(ctx context.Context, event webhook.Event) {
	marker, err := s.events.LastOutcome(ctx)
	if err != nil || marker == nil {
		marker = &webhook.DeliveryMarker{}
	}
	marker.Apply(event)

	if err := s.events.SetLastOutcome(ctx, *marker); err != nil {
		s.logger.Warn("delivery marker update failed", "error", err)
	}

	status, err := s.statusCache.Get(ctx, registryCacheKey)
	if err != nil {
		status = s.computeStatus(ctx)
	}
	status.LastSuccess = marker.LastSuccess
	status.LastError = marker.LastError

	if err := s.statusCache.Set(ctx, registryCacheKey, *status); err != nil {
		s.logger.Warn("status cache refresh failed", "error", err)
	}
}

func (s *WebhookRegistryService) invalidateCaches(ctx context.Context) {
	if err := s.listCache.Invalidate(ctx, registryCacheKey); err != nil {
		s.logger.Warn("list cache invalidation failed", "error", err)
	}
	if err := s.statusCache.Invalidate(ctx, registryCacheKey); err != nil {
		s.logger.Warn("status cache invalidation failed", "error", err)
	}
}
