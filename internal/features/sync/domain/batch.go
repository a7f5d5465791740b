package domain

import (
	"errors"
	"math"
	"strings"
	"time"
)

var (
	ErrMissingID         = errors.New("idempotency id is required")
	ErrMissingDeliveryID = errors.New("delivery_id is required")
	ErrMissingIssueType  = errors.New("issue_type is required for failed deliveries")
	ErrInvalidLatitude   = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude  = errors.New("longitude must be between -180 and 180")
	ErrNegativeAccuracy  = errors.New("accuracy cannot be negative")
	ErrTimestampZero     = errors.New("timestamp must be a valid instant")
)

// SyncBatch is the payload a driver uploads after regaining connectivity.
// Insertion order is the client's capture order, not necessarily
// chronological.
type SyncBatch struct {
	// Locations are GPS pings recorded while offline.
	Locations []LocationPing `json:"locations"`
	// Deliveries are status changes recorded while offline.
	Deliveries []DeliveryStatusEvent `json:"deliveries"`
}

// Empty reports whether the batch carries no items at all.
func (b SyncBatch) Empty() bool {
	return len(b.Locations) == 0 && len(b.Deliveries) == 0
}

// LocationPing is a single GPS fix captured by the driver app.
type LocationPing struct {
	// ID is the client-generated idempotency key.
	ID string `json:"id"`
	// Latitude in decimal degrees.
	Latitude float64 `json:"latitude"`
	// Longitude in decimal degrees.
	Longitude float64 `json:"longitude"`
	// Accuracy is the reported GPS accuracy in meters.
	Accuracy float64 `json:"accuracy"`
	// Timestamp is when the fix was captured on the device.
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the ping's shape; a failing ping is reported as
// malformed_item and never stored.
func (p LocationPing) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrMissingID
	}
	if p.Latitude < -90 || p.Latitude > 90 || math.IsNaN(p.Latitude) {
		return ErrInvalidLatitude
	}
	if p.Longitude < -180 || p.Longitude > 180 || math.IsNaN(p.Longitude) {
		return ErrInvalidLongitude
	}
	if p.Accuracy < 0 || math.IsNaN(p.Accuracy) {
		return ErrNegativeAccuracy
	}
	if p.Timestamp.IsZero() {
		return ErrTimestampZero
	}
	return nil
}

// DeliveryStatusEvent is a status change captured by the driver app.
type DeliveryStatusEvent struct {
	// ID is the client-generated idempotency key.
	ID string `json:"id"`
	// DeliveryID identifies the delivery being updated.
	DeliveryID string `json:"delivery_id"`
	// Status is the target status.
	Status Status `json:"status"`
	// IssueType is required when Status is failed.
	IssueType IssueType `json:"issue_type,omitempty"`
	// Notes is free-form text entered by the driver.
	Notes string `json:"notes,omitempty"`
	// Timestamp is when the change was captured on the device.
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the event's shape; a failing event is reported as
// malformed_item and never applied.
func (e DeliveryStatusEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(e.DeliveryID) == "" {
		return ErrMissingDeliveryID
	}
	if !e.Status.Valid() {
		return ErrInvalidStatus
	}
	if e.Status == StatusFailed {
		if e.IssueType == "" {
			return ErrMissingIssueType
		}
		if !e.IssueType.Valid() {
			return ErrInvalidIssueType
		}
	} else if e.IssueType != "" && !e.IssueType.Valid() {
		return ErrInvalidIssueType
	}
	if e.Timestamp.IsZero() {
		return ErrTimestampZero
	}
	return nil
}
