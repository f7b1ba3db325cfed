package shipment

import "context"

// Repository defines persistence operations for shipments.
type Repository interface {
	// Create inserts a new shipment.
	Create(ctx context.Context, s *Shipment) error

	// GetByID retrieves a shipment by ID.
	// Returns ErrShipmentNotFound when no shipment matches.
	GetByID(ctx context.Context, id ID) (*Shipment, error)

	// FindByTracking retrieves the shipment matching a carrier and tracking
	// number pair. Returns ErrShipmentNotFound when no shipment matches.
	FindByTracking(ctx context.Context, carrier, trackingNumber string) (*Shipment, error)

	// UpdateTracking persists the tracking fields of a shipment.
	UpdateTracking(ctx context.Context, s *Shipment) error
}
