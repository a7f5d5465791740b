package ports

import (
	"context"
	"errors"
	"time"

	routesdomain "luckygas-dispatch/internal/features/routes/domain"
	"luckygas-dispatch/internal/features/sync/domain"
)

// ErrStatusConflict is returned by ApplyStatusEvent when the delivery's
// status changed between the caller's read and the conditional write
// (another sync won the race). The item is reported failed, never dropped.
var ErrStatusConflict = errors.New("delivery status changed concurrently")

// AppliedEvent is the durable record kept per idempotency key.
type AppliedEvent struct {
	// Key is the client-generated idempotency key.
	Key string `json:"key"`
	// Type says whether the key belonged to a ping or a status event.
	Type domain.ItemType `json:"type"`
	// DeliveryID is set for status events.
	DeliveryID string `json:"delivery_id,omitempty"`
	// Status is the status the event applied, for status events.
	Status domain.Status `json:"status,omitempty"`
	// DriverID is the driver that uploaded the event.
	DriverID string `json:"driver_id"`
	// AppliedAt is when the server accepted the event.
	AppliedAt time.Time `json:"applied_at"`
}

// EventStore is the durable record of delivery-status changes and location
// pings. It owns canonical delivery status; the reconciler holds no state
// across calls.
type EventStore interface {
	// GetEvent returns the applied event for an idempotency key, or nil
	// when the key has never been applied.
	GetEvent(ctx context.Context, key string) (*AppliedEvent, error)

	// GetCurrentStatus returns the delivery's canonical status. Deliveries
	// with no recorded event yet are pending.
	GetCurrentStatus(ctx context.Context, deliveryID string) (domain.Status, error)

	// ApplyStatusEvent conditionally applies a status event: the write
	// succeeds only if the delivery's status still equals expected,
	// otherwise ErrStatusConflict is returned. The status update and the
	// idempotency marker are written atomically.
	ApplyStatusEvent(ctx context.Context, driverID string, event domain.DeliveryStatusEvent, expected domain.Status) error

	// RecordLocation appends a ping to the driver's trail and advances the
	// current-location projection when the ping is newer than the held one.
	// The idempotency marker is written atomically with the append.
	RecordLocation(ctx context.Context, driverID string, ping domain.LocationPing) error

	// CurrentLocation returns the driver's newest recorded ping, or nil
	// when none exists.
	CurrentLocation(ctx context.Context, driverID string) (*domain.DriverLocation, error)

	// LocationTrail returns up to limit recent pings, newest first.
	LocationTrail(ctx context.Context, driverID string, limit int) ([]domain.DriverLocation, error)

	// IsAssigned reports whether the delivery belongs to the driver.
	IsAssigned(ctx context.Context, driverID, deliveryID string) (bool, error)
}

// Broadcaster fans out state changes to connected office-staff sessions.
// Delivery is best-effort; publish failures never fail a sync item.
type Broadcaster interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// RouteReader provides the fresh route/stats snapshot embedded in every
// sync response.
type RouteReader interface {
	Snapshot(ctx context.Context, driverID string) (routesdomain.Snapshot, error)
}
