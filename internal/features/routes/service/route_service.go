package service

import (
	"context"
	"fmt"

	"luckygas-dispatch/internal/core/logger"
	"luckygas-dispatch/internal/features/routes/domain"
	"luckygas-dispatch/internal/features/routes/ports"
	syncdomain "luckygas-dispatch/internal/features/sync/domain"

	"go.uber.org/zap"
)

// RouteService assembles route snapshots: ERP route plans overlaid with
// canonical delivery statuses from the event store.
type RouteService struct {
	provider    ports.RouteProvider
	statuses    ports.StatusReader
	assignments ports.AssignmentSink
	log         *zap.Logger
}

// NewRouteService creates a RouteService with the given collaborators.
func NewRouteService(provider ports.RouteProvider, statuses ports.StatusReader, assignments ports.AssignmentSink) *RouteService {
	return &RouteService{
		provider:    provider,
		statuses:    statuses,
		assignments: assignments,
		log:         logger.Named("routes"),
	}
}

// Snapshot returns the driver's routes with per-stop status overlay and
// derived progress stats. Reading a snapshot also records the stop
// assignments so later sync uploads pass the ownership check.
func (s *RouteService) Snapshot(ctx context.Context, driverID string) (domain.Snapshot, error) {
	routes, err := s.provider.RoutesForDriver(ctx, driverID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to get routes for driver: %w", err)
	}

	deliveryIDs := make([]string, 0)
	for _, route := range routes {
		for _, stop := range route.Stops {
			deliveryIDs = append(deliveryIDs, stop.DeliveryID)
		}
	}

	if err := s.assignments.AssignDeliveries(ctx, driverID, deliveryIDs...); err != nil {
		s.log.Warn("failed to record assignments",
			zap.String("driver_id", driverID),
			zap.Error(err),
		)
	}

	var stats domain.Stats
	for ri := range routes {
		for si := range routes[ri].Stops {
			stop := &routes[ri].Stops[si]

			status, err := s.statuses.GetCurrentStatus(ctx, stop.DeliveryID)
			if err != nil {
				// Fall back to the ERP's copy of the status.
				s.log.Warn("status overlay unavailable",
					zap.String("delivery_id", stop.DeliveryID),
					zap.Error(err),
				)
				status, err = syncdomain.ParseStatus(stop.Status)
				if err != nil {
					status = syncdomain.StatusPending
				}
			}
			stop.Status = status.String()

			stats.Total++
			switch status {
			case syncdomain.StatusDelivered:
				stats.Completed++
			case syncdomain.StatusFailed:
				stats.Failed++
			default:
				stats.Remaining++
			}
		}
	}

	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total)
	}

	return domain.Snapshot{Routes: routes, Stats: stats}, nil
}
