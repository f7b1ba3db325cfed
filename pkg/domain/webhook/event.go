package webhook

import "time"

// Event is a processed ingestion outcome recorded per tracking number.
// Both successful and failed deliveries are recorded so operators can
// reconstruct what the provider sent and what we did with it.
type Event struct {
	Type           EventType `json:"type"`
	TrackingNumber string    `json:"tracking_number"`
	Carrier        string    `json:"carrier,omitempty"`
	Status         string    `json:"status,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
}

// NewEvent creates a successful event record.
func NewEvent(eventType EventType, trackingNumber, carrier, status string) Event {
	return Event{
		Type:           eventType,
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
		Status:         status,
		Timestamp:      time.Now(),
		Success:        true,
	}
}

// NewFailureEvent creates a failed event record with the failure reason.
func NewFailureEvent(eventType EventType, trackingNumber, reason string) Event {
	return Event{
		Type:           eventType,
		TrackingNumber: trackingNumber,
		Timestamp:      time.Now(),
		Success:        false,
		Error:          reason,
	}
}

// DeliveryMarker is the most recent delivery outcome across all tracking
// numbers. It is stored outside the status cache so lastSuccess/lastError
// survive cache expiry.
type DeliveryMarker struct {
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Apply folds an event outcome into the marker. A success clears the
// previous error.
func (m *DeliveryMarker) Apply(event Event) {
	if event.Success {
		ts := event.Timestamp
		m.LastSuccess = &ts
		m.LastError = ""
		return
	}
	m.LastError = event.Error
}
