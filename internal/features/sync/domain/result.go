package domain

import (
	"time"

	routesdomain "luckygas-dispatch/internal/features/routes/domain"
)

// ItemType distinguishes the two kinds of batch items in sync results.
type ItemType string

const (
	// ItemTypeLocation is a GPS ping.
	ItemTypeLocation ItemType = "location"
	// ItemTypeDelivery is a delivery status change.
	ItemTypeDelivery ItemType = "delivery"
)

// FailReason is the per-item failure code reported to the client.
type FailReason string

const (
	// ReasonNotAssigned means the delivery does not belong to the driver.
	ReasonNotAssigned FailReason = "not_assigned"
	// ReasonInvalidTransition means the event would violate the forward-only
	// status path (including any transition out of a terminal state).
	ReasonInvalidTransition FailReason = "invalid_transition"
	// ReasonMalformedItem means a required field is missing or out of range.
	ReasonMalformedItem FailReason = "malformed_item"
	// ReasonStoreUnavailable means the write failed (store error or a
	// concurrent-update conflict); the client should retry the item in a
	// future sync.
	ReasonStoreUnavailable FailReason = "store_unavailable"
)

// SyncedItem reports one successfully reconciled batch item.
type SyncedItem struct {
	Type ItemType `json:"type"`
	ID   string   `json:"id"`
	// Status is always "synced"; kept explicit to match the wire contract.
	Status string `json:"status"`
}

// FailedItem reports one rejected batch item and why.
type FailedItem struct {
	Type   ItemType   `json:"type"`
	ID     string     `json:"id"`
	Reason FailReason `json:"reason"`
}

// SyncResult is the outcome of one reconciliation call. It is produced
// fresh per call and never persisted.
type SyncResult struct {
	SyncedItems []SyncedItem `json:"synced_items"`
	FailedItems []FailedItem `json:"failed_items"`
	// UpdatedRoutes and UpdatedStats are a fresh read of the driver's
	// assigned-route state, not an incremental patch.
	UpdatedRoutes []routesdomain.Route `json:"updated_routes"`
	UpdatedStats  routesdomain.Stats   `json:"updated_stats"`
}

// SyncedCount returns the number of reconciled items.
func (r *SyncResult) SyncedCount() int {
	return len(r.SyncedItems)
}

// FailedCount returns the number of rejected items.
func (r *SyncResult) FailedCount() int {
	return len(r.FailedItems)
}

// DriverLocation is the current-location projection for one driver,
// maintained from the newest accepted ping.
type DriverLocation struct {
	DriverID   string    `json:"driver_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	RecordedAt time.Time `json:"recorded_at"`
}
