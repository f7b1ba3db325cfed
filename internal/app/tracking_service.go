package app

import (
	"context"
	"fmt"

	"github.com/shipstream/api/internal/infra/courier"
	"github.com/shipstream/api/pkg/domain/shared"
	"github.com/shipstream/api/pkg/domain/shipment"
	"github.com/shipstream/api/pkg/logger"
)

// CourierTrackingAPI is the provider surface the tracking service depends on.
type CourierTrackingAPI interface {
	CreateTracking(ctx context.Context, req courier.CreateTrackingRequest) (*courier.Tracking, error)
	GetTracking(ctx context.Context, carrier, trackingNumber string) (*courier.Tracking, error)
}

// TrackingService creates shipments and registers their tracking numbers
// with the courier provider.
type TrackingService struct {
	repo     shipment.Repository
	provider CourierTrackingAPI
	logger   *logger.Logger
}

// NewTrackingService creates a new TrackingService.
func NewTrackingService(repo shipment.Repository, provider CourierTrackingAPI, log *logger.Logger) *TrackingService {
	return &TrackingService{
		repo:     repo,
		provider: provider,
		logger:   log.With("service", "tracking"),
	}
}

// CreateShipmentInput represents input for creating a shipment.
type CreateShipmentInput struct {
	OrderRef       string `json:"order_ref" validate:"required,min=1,max=64"`
	Carrier        string `json:"carrier" validate:"required,carrier"`
	TrackingNumber string `json:"tracking_number" validate:"required,tracking_number"`
}

// CreateShipment persists a new shipment and registers its tracking number
// with the provider. Provider registration is best-effort: the shipment is
// created even when the provider is down, since the webhook path will
// reconcile state once pushes arrive.
func (s *TrackingService) CreateShipment(ctx context.Context, input CreateShipmentInput) (*shipment.Shipment, error) {
	sh := shipment.NewShipment(shared.NewID(), input.OrderRef, input.Carrier, input.TrackingNumber)

	if err := s.repo.Create(ctx, sh); err != nil {
		return nil, err
	}

	s.logger.Info("shipment created",
		"shipment_id", sh.ID().String(),
		"carrier", sh.Carrier(),
		"tracking_number", sh.TrackingNumber(),
	)

	s.registerTracking(ctx, sh)
	return sh, nil
}

// registerTracking registers the tracking number at the provider and seeds
// the shipment with the provider's current view. Failures are logged and
// swallowed.
func (s *TrackingService) registerTracking(ctx context.Context, sh *shipment.Shipment) {
	_, err := s.provider.CreateTracking(ctx, courier.CreateTrackingRequest{
		TrackingNumber: sh.TrackingNumber(),
		Carrier:        sh.Carrier(),
		OrderRef:       sh.OrderRef(),
	})
	if err != nil {
		s.logger.Warn("tracking registration failed",
			"shipment_id", sh.ID().String(),
			"tracking_number", sh.TrackingNumber(),
			"error", err,
		)
		return
	}

	trk, err := s.provider.GetTracking(ctx, sh.Carrier(), sh.TrackingNumber())
	if err != nil {
		s.logger.Warn("initial tracking fetch failed",
			"shipment_id", sh.ID().String(),
			"tracking_number", sh.TrackingNumber(),
			"error", err,
		)
		return
	}

	mapped := shipment.ParseTrackingStatus(trk.Status)
	sh.ApplyTracking(shipment.TrackingUpdate{
		TrackingStatus:    &trk.Status,
		Status:            &mapped,
		EstimatedDelivery: trk.EstimatedDelivery,
		TrackingEvents:    trk.History,
	})

	if err := s.repo.UpdateTracking(ctx, sh); err != nil {
		s.logger.Warn("initial tracking persist failed",
			"shipment_id", sh.ID().String(),
			"error", err,
		)
	}
}

// GetShipment retrieves a shipment by its ID.
func (s *TrackingService) GetShipment(ctx context.Context, id string) (*shipment.Shipment, error) {
	shipmentID, err := shared.IDFromString(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid shipment ID", shared.ErrValidation)
	}
	return s.repo.GetByID(ctx, shipmentID)
}

// GetByTracking retrieves a shipment by carrier and tracking number.
func (s *TrackingService) GetByTracking(ctx context.Context, carrier, trackingNumber string) (*shipment.Shipment, error) {
	return s.repo.FindByTracking(ctx, carrier, trackingNumber)
}
