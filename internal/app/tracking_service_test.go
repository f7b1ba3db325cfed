package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstream/api/pkg/domain/shipment"
	"github.com/shipstream/api/pkg/logger"
)

func TestCreateShipment(t *testing.T) {
	ctx := context.Background()

	input := CreateShipmentInput{
		OrderRef:       "ORD-1042",
		Carrier:        "ups",
		TrackingNumber: "1Z999AA10123456784",
	}

	t.Run("creates and registers tracking", func(t *testing.T) {
		repo := newMockShipmentRepo()
		provider := newFakeProvider()
		svc := NewTrackingService(repo, provider, logger.NewNop())

		sh, err := svc.CreateShipment(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, "ORD-1042", sh.OrderRef())

		_, ok := provider.trackings["ups/1Z999AA10123456784"]
		assert.True(t, ok, "tracking registered at provider")

		// Provider reported "pending"; the seeded state reflects it.
		stored, err := repo.GetByID(ctx, sh.ID())
		require.NoError(t, err)
		assert.Equal(t, shipment.StatusPending, stored.Status())
		assert.Equal(t, "pending", stored.TrackingStatus())
		assert.NotNil(t, stored.LastTrackedAt())
	})

	t.Run("shipment survives provider outage", func(t *testing.T) {
		repo := newMockShipmentRepo()
		provider := newFakeProvider()
		provider.trackErr = assert.AnError
		svc := NewTrackingService(repo, provider, logger.NewNop())

		sh, err := svc.CreateShipment(ctx, input)
		require.NoError(t, err, "provider failure must not fail creation")

		stored, err := repo.GetByID(ctx, sh.ID())
		require.NoError(t, err)
		assert.Equal(t, shipment.StatusPending, stored.Status())
		assert.Empty(t, stored.TrackingStatus())
		assert.Nil(t, stored.LastTrackedAt())
	})

	t.Run("shipment survives initial fetch failure", func(t *testing.T) {
		repo := newMockShipmentRepo()
		provider := newFakeProvider()
		provider.getTrackErr = assert.AnError
		svc := NewTrackingService(repo, provider, logger.NewNop())

		_, err := svc.CreateShipment(ctx, input)
		require.NoError(t, err)
	})

	t.Run("duplicate tracking number rejected", func(t *testing.T) {
		repo := newMockShipmentRepo()
		svc := NewTrackingService(repo, newFakeProvider(), logger.NewNop())

		_, err := svc.CreateShipment(ctx, input)
		require.NoError(t, err)

		_, err = svc.CreateShipment(ctx, input)
		assert.ErrorIs(t, err, shipment.ErrTrackingExists)
	})
}

func TestGetShipment(t *testing.T) {
	ctx := context.Background()
	repo := newMockShipmentRepo()
	svc := NewTrackingService(repo, newFakeProvider(), logger.NewNop())

	sh, err := svc.CreateShipment(ctx, CreateShipmentInput{
		OrderRef:       "ORD-7",
		Carrier:        "fedex",
		TrackingNumber: "794644790132",
	})
	require.NoError(t, err)

	t.Run("by id", func(t *testing.T) {
		got, err := svc.GetShipment(ctx, sh.ID().String())
		require.NoError(t, err)
		assert.Equal(t, sh.ID(), got.ID())
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := svc.GetShipment(ctx, "not-a-uuid")
		assert.Error(t, err)
	})

	t.Run("by tracking", func(t *testing.T) {
		got, err := svc.GetByTracking(ctx, "fedex", "794644790132")
		require.NoError(t, err)
		assert.Equal(t, sh.ID(), got.ID())
	})

	t.Run("unknown tracking", func(t *testing.T) {
		_, err := svc.GetByTracking(ctx, "fedex", "000000000000")
		assert.ErrorIs(t, err, shipment.ErrShipmentNotFound)
	})
}
