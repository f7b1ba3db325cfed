package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shipstream/api/pkg/domain/shared"
	"github.com/shipstream/api/pkg/domain/shipment"
)

// ShipmentRepository is the PostgreSQL implementation of shipment.Repository.
type ShipmentRepository struct {
	db *DB
}

// NewShipmentRepository creates a new ShipmentRepository.
func NewShipmentRepository(db *DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

var _ shipment.Repository = (*ShipmentRepository)(nil)

// Create inserts a new shipment.
func (r *ShipmentRepository) Create(ctx context.Context, s *shipment.Shipment) error {
	query := `
		INSERT INTO shipments (
			id, order_ref, carrier, tracking_number, status, tracking_status,
			estimated_delivery, tracking_events, last_tracked_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	events, err := toJSONB(s.TrackingEvents())
	if err != nil {
		return fmt.Errorf("marshal tracking events: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		s.ID().String(),
		s.OrderRef(),
		s.Carrier(),
		s.TrackingNumber(),
		string(s.Status()),
		nullString(s.TrackingStatus()),
		nullTime(s.EstimatedDelivery()),
		events,
		nullTime(s.LastTrackedAt()),
		s.CreatedAt(),
		s.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shipment.ErrTrackingExists
		}
		return fmt.Errorf("create shipment: %w", err)
	}
	return nil
}

// GetByID retrieves a shipment by ID.
func (r *ShipmentRepository) GetByID(ctx context.Context, id shipment.ID) (*shipment.Shipment, error) {
	query := selectShipment + ` WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id.String())
	return r.scanShipment(row)
}

// FindByTracking retrieves the shipment matching a carrier and tracking number.
func (r *ShipmentRepository) FindByTracking(ctx context.Context, carrier, trackingNumber string) (*shipment.Shipment, error) {
	query := selectShipment + ` WHERE carrier = $1 AND tracking_number = $2`
	row := r.db.QueryRowContext(ctx, query, carrier, trackingNumber)
	return r.scanShipment(row)
}

// UpdateTracking persists the tracking fields of a shipment.
func (r *ShipmentRepository) UpdateTracking(ctx context.Context, s *shipment.Shipment) error {
	query := `
		UPDATE shipments
		SET status = $2,
			tracking_status = $3,
			estimated_delivery = $4,
			tracking_events = $5,
			last_tracked_at = $6,
			updated_at = $7
		WHERE id = $1
	`

	events, err := toJSONB(s.TrackingEvents())
	if err != nil {
		return fmt.Errorf("marshal tracking events: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query,
		s.ID().String(),
		string(s.Status()),
		nullString(s.TrackingStatus()),
		nullTime(s.EstimatedDelivery()),
		events,
		nullTime(s.LastTrackedAt()),
		s.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("update shipment tracking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update shipment tracking: %w", err)
	}
	if rows == 0 {
		return shipment.ErrShipmentNotFound
	}
	return nil
}

const selectShipment = `
	SELECT id, order_ref, carrier, tracking_number, status, tracking_status,
		estimated_delivery, tracking_events, last_tracked_at,
		created_at, updated_at
	FROM shipments
`

// scanShipment scans a row into a shipment entity.
func (r *ShipmentRepository) scanShipment(row *sql.Row) (*shipment.Shipment, error) {
	var (
		idStr             string
		orderRef          string
		carrier           string
		trackingNumber    string
		status            string
		trackingStatus    sql.NullString
		estimatedDelivery sql.NullTime
		eventsRaw         []byte
		lastTrackedAt     sql.NullTime
		createdAt         sql.NullTime
		updatedAt         sql.NullTime
	)

	err := row.Scan(
		&idStr,
		&orderRef,
		&carrier,
		&trackingNumber,
		&status,
		&trackingStatus,
		&estimatedDelivery,
		&eventsRaw,
		&lastTrackedAt,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shipment.ErrShipmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan shipment: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse shipment id: %w", err)
	}

	var events []shipment.TrackingEvent
	if err := fromJSONB(eventsRaw, &events); err != nil {
		return nil, fmt.Errorf("unmarshal tracking events: %w", err)
	}

	return shipment.Reconstruct(
		id,
		orderRef,
		carrier,
		trackingNumber,
		shipment.Status(status),
		nullStringValue(trackingStatus),
		nullTimeValue(estimatedDelivery),
		events,
		nullTimeValue(lastTrackedAt),
		createdAt.Time,
		updatedAt.Time,
	), nil
}
