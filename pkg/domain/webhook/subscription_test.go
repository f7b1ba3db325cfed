package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeIsKnown(t *testing.T) {
	for _, e := range DefaultEvents() {
		assert.True(t, e.IsKnown(), string(e))
	}
	assert.False(t, EventType("tracking_created").IsKnown())
	assert.False(t, EventType("").IsKnown())
}

func TestListensTo(t *testing.T) {
	sub := Subscription{
		ID:     "wh_1",
		URL:    "https://app.example.com/webhooks/courier",
		Events: []EventType{EventTrackUpdated, EventTrackDelivered},
	}

	assert.True(t, sub.ListensTo(EventTrackUpdated))
	assert.True(t, sub.ListensTo(EventTrackDelivered))
	assert.False(t, sub.ListensTo(EventTrackFailure))

	empty := Subscription{ID: "wh_2"}
	assert.False(t, empty.ListensTo(EventTrackUpdated))
}

func TestDeliveryMarkerApply(t *testing.T) {
	var m DeliveryMarker

	failure := NewFailureEvent(EventTrackFailure, "1Z999AA10123456784", "Invalid webhook signature")
	m.Apply(failure)
	assert.Nil(t, m.LastSuccess)
	assert.Equal(t, "Invalid webhook signature", m.LastError)

	success := NewEvent(EventTrackUpdated, "1Z999AA10123456784", "ups", "in_transit")
	m.Apply(success)
	assert.NotNil(t, m.LastSuccess)
	assert.Empty(t, m.LastError, "a success clears the previous error")
}
