package shipment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shipstream/api/pkg/domain/shared"
)

func TestParseTrackingStatus(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Status
	}{
		{"delivered", "delivered", StatusDelivered},
		{"in transit", "in_transit", StatusInTransit},
		{"out for delivery", "out_for_delivery", StatusOutForDelivery},
		{"exception", "exception", StatusException},
		{"returned", "returned", StatusReturned},
		{"cancelled", "cancelled", StatusCancelled},
		{"uppercase input", "DELIVERED", StatusDelivered},
		{"mixed case input", "In_Transit", StatusInTransit},
		{"surrounding whitespace", "  delivered  ", StatusDelivered},
		{"unknown status defaults to pending", "customs_hold", StatusPending},
		{"empty defaults to pending", "", StatusPending},
		{"info received defaults to pending", "info_received", StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTrackingStatus(tt.raw))
		})
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range AllStatuses() {
		assert.True(t, s.IsValid(), "expected %s to be valid", s)
	}
	assert.False(t, Status("SHIPPED").IsValid())
	assert.False(t, Status("").IsValid())
}

func TestApplyTracking(t *testing.T) {
	s := NewShipment(shared.NewID(), "ORD-7", "ups", "1Z999AA10123456784")
	assert.Equal(t, StatusPending, s.Status())
	assert.Nil(t, s.LastTrackedAt())

	raw := "delivered"
	mapped := StatusDelivered
	s.ApplyTracking(TrackingUpdate{
		TrackingStatus: &raw,
		Status:         &mapped,
		TrackingEvents: []TrackingEvent{{Status: "delivered"}},
	})

	assert.Equal(t, StatusDelivered, s.Status())
	assert.Equal(t, "delivered", s.TrackingStatus())
	assert.Len(t, s.TrackingEvents(), 1)
	assert.NotNil(t, s.LastTrackedAt())
}

func TestApplyTrackingNilFieldsUntouched(t *testing.T) {
	s := NewShipment(shared.NewID(), "ORD-8", "fedex", "794644790132")
	raw := "in_transit"
	mapped := StatusInTransit
	s.ApplyTracking(TrackingUpdate{TrackingStatus: &raw, Status: &mapped})

	// A later partial update must not clear earlier state.
	s.ApplyTracking(TrackingUpdate{})
	assert.Equal(t, StatusInTransit, s.Status())
	assert.Equal(t, "in_transit", s.TrackingStatus())
}
