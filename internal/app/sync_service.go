package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shipstream/api/pkg/domain/shipment"
	"github.com/shipstream/api/pkg/logger"
)

// ErrUnknownTracking is returned when a webhook payload references a tracking
// number no shipment carries. The caller records a failed event and still
// acks the delivery to keep the provider from retrying forever.
var ErrUnknownTracking = errors.New("unknown tracking number")

// SyncResult describes the outcome of a tracking synchronization.
type SyncResult string

const (
	ResultUpdated   SyncResult = "updated"
	ResultNoChanges SyncResult = "no_changes"
)

// TrackingData is the provider payload's data object.
type TrackingData struct {
	TrackingNumber    string                   `json:"tracking_number"`
	Carrier           string                   `json:"carrier"`
	TrackingStatus    string                   `json:"tracking_status"`
	EstimatedDelivery *time.Time               `json:"eta,omitempty"`
	History           []shipment.TrackingEvent `json:"tracking_history,omitempty"`
}

// TrackingSyncService applies provider tracking pushes to stored shipments.
// Updates are last-write-wins over the tracking fields, which makes provider
// redelivery of the same payload harmless.
type TrackingSyncService struct {
	repo   shipment.Repository
	logger *logger.Logger
}

// NewTrackingSyncService creates a new TrackingSyncService.
func NewTrackingSyncService(repo shipment.Repository, log *logger.Logger) *TrackingSyncService {
	return &TrackingSyncService{
		repo:   repo,
		logger: log.With("service", "tracking_sync"),
	}
}

// Sync locates the shipment for the payload and overwrites its tracking
// state with the provider's view. Returns ResultNoChanges when the stored
// state already matches.
func (s *TrackingSyncService) Sync(ctx context.Context, data TrackingData) (SyncResult, error) {
	if data.TrackingNumber == "" {
		return "", fmt.Errorf("tracking number is required")
	}

	sh, err := s.repo.FindByTracking(ctx, data.Carrier, data.TrackingNumber)
	if err != nil {
		if errors.Is(err, shipment.ErrShipmentNotFound) {
			return "", ErrUnknownTracking
		}
		return "", fmt.Errorf("find shipment: %w", err)
	}

	mapped := shipment.ParseTrackingStatus(data.TrackingStatus)
	if s.upToDate(sh, data, mapped) {
		s.logger.Debug("tracking state unchanged",
			"tracking_number", data.TrackingNumber,
			"status", string(mapped),
		)
		return ResultNoChanges, nil
	}

	sh.ApplyTracking(shipment.TrackingUpdate{
		TrackingStatus:    &data.TrackingStatus,
		Status:            &mapped,
		EstimatedDelivery: data.EstimatedDelivery,
		TrackingEvents:    data.History,
	})

	if err := s.repo.UpdateTracking(ctx, sh); err != nil {
		return "", fmt.Errorf("update shipment: %w", err)
	}

	s.logger.Info("shipment tracking updated",
		"shipment_id", sh.ID().String(),
		"tracking_number", data.TrackingNumber,
		"status", string(mapped),
	)
	return ResultUpdated, nil
}

// upToDate reports whether the stored state already reflects the payload.
func (s *TrackingSyncService) upToDate(sh *shipment.Shipment, data TrackingData, mapped shipment.Status) bool {
	if sh.TrackingStatus() != data.TrackingStatus || sh.Status() != mapped {
		return false
	}
	if !equalTimePtr(sh.EstimatedDelivery(), data.EstimatedDelivery) {
		return false
	}
	if data.History != nil && !equalHistory(data.History, sh.TrackingEvents()) {
		return false
	}
	return true
}

// equalHistory compares checkpoint content, not just length, so a corrected
// checkpoint in a same-sized history still triggers a write.
func equalHistory(a, b []shipment.TrackingEvent) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Status != b[i].Status ||
			a[i].Message != b[i].Message ||
			a[i].Location != b[i].Location ||
			!a[i].CheckpointTime.Equal(b[i].CheckpointTime) {
			return false
		}
	}
	return true
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
