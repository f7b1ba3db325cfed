package shipment

import "strings"

// Status represents the internal shipment delivery status.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusInTransit      Status = "IN_TRANSIT"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusException      Status = "EXCEPTION"
	StatusReturned       Status = "RETURNED"
	StatusCancelled      Status = "CANCELLED"
)

// IsValid returns true if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusOutForDelivery,
		StatusDelivered, StatusException, StatusReturned, StatusCancelled:
		return true
	}
	return false
}

// AllStatuses returns every valid shipment status.
func AllStatuses() []Status {
	return []Status{
		StatusPending, StatusInTransit, StatusOutForDelivery,
		StatusDelivered, StatusException, StatusReturned, StatusCancelled,
	}
}

// ParseTrackingStatus maps a courier tracking status string to the internal
// status. The mapping is total: unrecognized or empty input maps to PENDING,
// and matching is case-insensitive. It never fails.
func ParseTrackingStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "delivered":
		return StatusDelivered
	case "in_transit":
		return StatusInTransit
	case "out_for_delivery":
		return StatusOutForDelivery
	case "exception":
		return StatusException
	case "returned":
		return StatusReturned
	case "cancelled":
		return StatusCancelled
	default:
		return StatusPending
	}
}
