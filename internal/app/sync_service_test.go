package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstream/api/pkg/domain/shared"
	"github.com/shipstream/api/pkg/domain/shipment"
	"github.com/shipstream/api/pkg/logger"
)

func seedShipment(t *testing.T, repo *mockShipmentRepo, carrier, trackingNumber string) *shipment.Shipment {
	t.Helper()
	sh := shipment.NewShipment(shared.NewID(), "ORD-1", carrier, trackingNumber)
	require.NoError(t, repo.Create(context.Background(), sh))
	return sh
}

func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("updates tracking state", func(t *testing.T) {
		repo := newMockShipmentRepo()
		seedShipment(t, repo, "ups", "1Z999AA10123456784")
		svc := NewTrackingSyncService(repo, logger.NewNop())

		eta := time.Now().Add(48 * time.Hour).Truncate(time.Second)
		result, err := svc.Sync(ctx, TrackingData{
			TrackingNumber:    "1Z999AA10123456784",
			Carrier:           "ups",
			TrackingStatus:    "in_transit",
			EstimatedDelivery: &eta,
			History: []shipment.TrackingEvent{
				{Status: "in_transit", Location: "Louisville, KY"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, ResultUpdated, result)

		sh, err := repo.FindByTracking(ctx, "ups", "1Z999AA10123456784")
		require.NoError(t, err)
		assert.Equal(t, shipment.StatusInTransit, sh.Status())
		assert.Equal(t, "in_transit", sh.TrackingStatus())
		assert.Len(t, sh.TrackingEvents(), 1)
		assert.NotNil(t, sh.LastTrackedAt())
	})

	t.Run("reports no changes for identical payload", func(t *testing.T) {
		repo := newMockShipmentRepo()
		seedShipment(t, repo, "ups", "1Z999AA10123456784")
		svc := NewTrackingSyncService(repo, logger.NewNop())

		data := TrackingData{
			TrackingNumber: "1Z999AA10123456784",
			Carrier:        "ups",
			TrackingStatus: "delivered",
		}

		result, err := svc.Sync(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, ResultUpdated, result)

		result, err = svc.Sync(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, ResultNoChanges, result)
		assert.Equal(t, 1, repo.updates, "redelivery must not write again")
	})

	t.Run("unknown tracking number", func(t *testing.T) {
		repo := newMockShipmentRepo()
		svc := NewTrackingSyncService(repo, logger.NewNop())

		_, err := svc.Sync(ctx, TrackingData{
			TrackingNumber: "UNKNOWN99999",
			Carrier:        "ups",
			TrackingStatus: "delivered",
		})
		assert.ErrorIs(t, err, ErrUnknownTracking)
	})

	t.Run("unrecognized status maps to pending", func(t *testing.T) {
		repo := newMockShipmentRepo()
		sh := seedShipment(t, repo, "fedex", "794644790132")
		svc := NewTrackingSyncService(repo, logger.NewNop())

		// Move off the initial state first so the write is observable.
		_, err := svc.Sync(ctx, TrackingData{
			TrackingNumber: "794644790132",
			Carrier:        "fedex",
			TrackingStatus: "in_transit",
		})
		require.NoError(t, err)

		result, err := svc.Sync(ctx, TrackingData{
			TrackingNumber: "794644790132",
			Carrier:        "fedex",
			TrackingStatus: "customs_hold",
		})
		require.NoError(t, err)
		assert.Equal(t, ResultUpdated, result)

		got, err := repo.GetByID(ctx, sh.ID())
		require.NoError(t, err)
		assert.Equal(t, shipment.StatusPending, got.Status())
		assert.Equal(t, "customs_hold", got.TrackingStatus())
	})

	t.Run("persists changed history of equal length", func(t *testing.T) {
		repo := newMockShipmentRepo()
		seedShipment(t, repo, "ups", "1Z999AA10123456784")
		svc := NewTrackingSyncService(repo, logger.NewNop())

		checkpoint := time.Now().Truncate(time.Second)
		data := TrackingData{
			TrackingNumber: "1Z999AA10123456784",
			Carrier:        "ups",
			TrackingStatus: "in_transit",
			History: []shipment.TrackingEvent{
				{Status: "in_transit", Location: "Louisville, KY", CheckpointTime: checkpoint},
			},
		}

		result, err := svc.Sync(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, ResultUpdated, result)

		// Same length, corrected checkpoint content.
		data.History = []shipment.TrackingEvent{
			{Status: "in_transit", Location: "Memphis, TN", CheckpointTime: checkpoint},
		}

		result, err = svc.Sync(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, ResultUpdated, result)
		assert.Equal(t, 2, repo.updates)

		sh, err := repo.FindByTracking(ctx, "ups", "1Z999AA10123456784")
		require.NoError(t, err)
		require.Len(t, sh.TrackingEvents(), 1)
		assert.Equal(t, "Memphis, TN", sh.TrackingEvents()[0].Location)
	})

	t.Run("missing tracking number rejected", func(t *testing.T) {
		svc := NewTrackingSyncService(newMockShipmentRepo(), logger.NewNop())
		_, err := svc.Sync(ctx, TrackingData{Carrier: "ups"})
		assert.Error(t, err)
	})

	t.Run("persistence failure surfaces", func(t *testing.T) {
		repo := newMockShipmentRepo()
		seedShipment(t, repo, "ups", "1Z999AA10123456784")
		repo.updateErr = assert.AnError
		svc := NewTrackingSyncService(repo, logger.NewNop())

		_, err := svc.Sync(ctx, TrackingData{
			TrackingNumber: "1Z999AA10123456784",
			Carrier:        "ups",
			TrackingStatus: "delivered",
		})
		assert.ErrorIs(t, err, assert.AnError)
	})
}
