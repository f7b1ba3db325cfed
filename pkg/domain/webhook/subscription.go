// Package webhook contains the courier webhook subscription and event types.
package webhook

import (
	"fmt"
	"time"

	"github.com/shipstream/api/pkg/domain/shared"
)

// EventType identifies a courier webhook event.
type EventType string

const (
	EventTrackUpdated   EventType = "track_updated"
	EventTrackDelivered EventType = "track_delivered"
	EventTrackReturned  EventType = "track_returned"
	EventTrackException EventType = "track_exception"

	// EventTrackFailure signals a provider-side tracking failure. It is also
	// synthesized locally when ingestion of a delivery fails.
	EventTrackFailure EventType = "track_failure"
)

// DefaultEvents is the fixed event set used for auto-registration.
func DefaultEvents() []EventType {
	return []EventType{
		EventTrackUpdated,
		EventTrackDelivered,
		EventTrackReturned,
		EventTrackException,
		EventTrackFailure,
	}
}

// IsKnown returns true if the event type is one this system processes.
func (t EventType) IsKnown() bool {
	switch t {
	case EventTrackUpdated, EventTrackDelivered, EventTrackReturned,
		EventTrackException, EventTrackFailure:
		return true
	}
	return false
}

// Subscription represents a webhook subscription held at the courier
// provider. The provider owns this state; we hold a cached view of it.
type Subscription struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	Events    []EventType `json:"events"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ListensTo returns true if the subscription covers the given event type.
func (s *Subscription) ListensTo(event EventType) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// RegistryStatus summarizes whether our callback URL is registered
// at the provider.
type RegistryStatus struct {
	Registered  bool       `json:"registered"`
	Active      bool       `json:"active"`
	WebhookID   string     `json:"webhook_id,omitempty"`
	URL         string     `json:"url,omitempty"`
	LastChecked time.Time  `json:"last_checked"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// --- Errors ---

var ErrSubscriptionNotFound = fmt.Errorf("%w: webhook subscription not found", shared.ErrNotFound)
