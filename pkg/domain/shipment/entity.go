// Package shipment contains the shipment domain entity and its tracking state.
package shipment

import (
	"fmt"
	"time"

	"github.com/shipstream/api/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// TrackingEvent is a raw checkpoint reported by the courier provider.
// Events are stored verbatim so a later provider schema change cannot
// silently drop information.
type TrackingEvent struct {
	Status         string    `json:"status"`
	Message        string    `json:"message,omitempty"`
	Location       string    `json:"location,omitempty"`
	CheckpointTime time.Time `json:"checkpoint_time"`
}

// Shipment represents a shipment with its courier tracking state.
type Shipment struct {
	id                ID
	orderRef          string
	carrier           string
	trackingNumber    string
	status            Status
	trackingStatus    string
	estimatedDelivery *time.Time
	trackingEvents    []TrackingEvent
	lastTrackedAt     *time.Time
	createdAt         time.Time
	updatedAt         time.Time
}

// NewShipment creates a new shipment in PENDING state.
func NewShipment(id ID, orderRef, carrier, trackingNumber string) *Shipment {
	now := time.Now()
	return &Shipment{
		id:             id,
		orderRef:       orderRef,
		carrier:        carrier,
		trackingNumber: trackingNumber,
		status:         StatusPending,
		trackingEvents: []TrackingEvent{},
		createdAt:      now,
		updatedAt:      now,
	}
}

// Reconstruct creates a Shipment from stored data.
func Reconstruct(
	id ID,
	orderRef, carrier, trackingNumber string,
	status Status,
	trackingStatus string,
	estimatedDelivery *time.Time,
	trackingEvents []TrackingEvent,
	lastTrackedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Shipment {
	if trackingEvents == nil {
		trackingEvents = []TrackingEvent{}
	}
	return &Shipment{
		id:                id,
		orderRef:          orderRef,
		carrier:           carrier,
		trackingNumber:    trackingNumber,
		status:            status,
		trackingStatus:    trackingStatus,
		estimatedDelivery: estimatedDelivery,
		trackingEvents:    trackingEvents,
		lastTrackedAt:     lastTrackedAt,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// --- Getters ---

func (s *Shipment) ID() ID                        { return s.id }
func (s *Shipment) OrderRef() string              { return s.orderRef }
func (s *Shipment) Carrier() string               { return s.carrier }
func (s *Shipment) TrackingNumber() string        { return s.trackingNumber }
func (s *Shipment) Status() Status                { return s.status }
func (s *Shipment) TrackingStatus() string        { return s.trackingStatus }
func (s *Shipment) EstimatedDelivery() *time.Time { return s.estimatedDelivery }
func (s *Shipment) TrackingEvents() []TrackingEvent {
	return s.trackingEvents
}
func (s *Shipment) LastTrackedAt() *time.Time { return s.lastTrackedAt }
func (s *Shipment) CreatedAt() time.Time      { return s.createdAt }
func (s *Shipment) UpdatedAt() time.Time      { return s.updatedAt }

// ApplyTracking overwrites the tracking state with the latest provider view.
// Updates are last-write-wins, which is what makes webhook redelivery safe.
func (s *Shipment) ApplyTracking(update TrackingUpdate) {
	now := time.Now()
	if update.TrackingStatus != nil {
		s.trackingStatus = *update.TrackingStatus
	}
	if update.Status != nil {
		s.status = *update.Status
	}
	if update.EstimatedDelivery != nil {
		s.estimatedDelivery = update.EstimatedDelivery
	}
	if update.TrackingEvents != nil {
		s.trackingEvents = update.TrackingEvents
	}
	s.lastTrackedAt = &now
	s.updatedAt = now
}

// TrackingUpdate carries a partial update of the tracking fields.
// Nil fields are left untouched.
type TrackingUpdate struct {
	TrackingStatus    *string
	Status            *Status
	EstimatedDelivery *time.Time
	TrackingEvents    []TrackingEvent
}

// --- Errors ---

var (
	ErrShipmentNotFound = fmt.Errorf("%w: shipment not found", shared.ErrNotFound)
	ErrTrackingExists   = fmt.Errorf("%w: tracking number already registered", shared.ErrAlreadyExists)
)
