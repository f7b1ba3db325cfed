package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createShipmentInput struct {
	OrderRef       string `validate:"required,min=1,max=64"`
	Carrier        string `validate:"required,carrier"`
	TrackingNumber string `validate:"required,tracking_number"`
}

type updateStatusInput struct {
	Status string `validate:"omitempty,shipment_status"`
	Event  string `validate:"omitempty,webhook_event"`
}

func TestValidate(t *testing.T) {
	v := New()

	t.Run("valid input", func(t *testing.T) {
		err := v.Validate(createShipmentInput{
			OrderRef:       "ORD-1042",
			Carrier:        "ups",
			TrackingNumber: "1Z999AA10123456784",
		})
		assert.NoError(t, err)
	})

	t.Run("missing required fields", func(t *testing.T) {
		err := v.Validate(createShipmentInput{})
		require.Error(t, err)

		verrs, ok := err.(ValidationErrors)
		require.True(t, ok)
		assert.Len(t, verrs, 3)
		assert.Equal(t, "order_ref", verrs[0].Field)
		assert.Equal(t, "is required", verrs[0].Message)
	})

	t.Run("invalid carrier code", func(t *testing.T) {
		err := v.Validate(createShipmentInput{
			OrderRef:       "ORD-1",
			Carrier:        "UPS Ground",
			TrackingNumber: "1Z999AA10123456784",
		})
		require.Error(t, err)

		verrs := err.(ValidationErrors)
		require.Len(t, verrs, 1)
		assert.Equal(t, "carrier", verrs[0].Field)
	})

	t.Run("invalid tracking number", func(t *testing.T) {
		err := v.Validate(createShipmentInput{
			OrderRef:       "ORD-1",
			Carrier:        "ups",
			TrackingNumber: "abc",
		})
		require.Error(t, err)
	})

	t.Run("shipment status accepts any case", func(t *testing.T) {
		assert.NoError(t, v.Validate(updateStatusInput{Status: "delivered"}))
		assert.NoError(t, v.Validate(updateStatusInput{Status: "IN_TRANSIT"}))
		assert.Error(t, v.Validate(updateStatusInput{Status: "teleported"}))
	})

	t.Run("webhook event types", func(t *testing.T) {
		assert.NoError(t, v.Validate(updateStatusInput{Event: "track_updated"}))
		assert.NoError(t, v.Validate(updateStatusInput{Event: "track_failure"}))
		assert.Error(t, v.Validate(updateStatusInput{Event: "parcel_vanished"}))
	})
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "tracking_number", toSnakeCase("TrackingNumber"))
	assert.Equal(t, "order_ref", toSnakeCase("OrderRef"))
	assert.Equal(t, "u_r_l", toSnakeCase("URL"))
}
