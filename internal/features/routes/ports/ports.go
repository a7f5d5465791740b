package ports

import (
	"context"

	"luckygas-dispatch/internal/features/routes/domain"
	syncdomain "luckygas-dispatch/internal/features/sync/domain"
)

// RouteProvider fetches a driver's assigned routes from the system of
// record (the ERP) or a cache in front of it.
type RouteProvider interface {
	RoutesForDriver(ctx context.Context, driverID string) ([]domain.Route, error)
}

// StatusReader exposes canonical delivery status, owned by the event
// store. Route snapshots overlay it on the ERP copy, which may lag.
type StatusReader interface {
	GetCurrentStatus(ctx context.Context, deliveryID string) (syncdomain.Status, error)
}

// AssignmentSink records which deliveries belong to a driver so sync can
// reject events for deliveries the driver does not own.
type AssignmentSink interface {
	AssignDeliveries(ctx context.Context, driverID string, deliveryIDs ...string) error
}
