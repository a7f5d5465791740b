package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"luckygas-dispatch/internal/core/logger"
	"luckygas-dispatch/internal/features/sync/domain"
	"luckygas-dispatch/internal/features/sync/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pub/sub topics for office notifications.
const (
	// TopicDeliveryStatus carries StatusNotification payloads.
	TopicDeliveryStatus = "deliveries.status"
	// TopicDriverLocation carries LocationNotification payloads.
	TopicDriverLocation = "drivers.location"
)

var (
	// ErrDriverRequired is returned when the batch has no authenticated driver.
	ErrDriverRequired = errors.New("driver id is required")
	// ErrEmptyBatch is returned for a batch with no items; this is an
	// envelope-level failure, not a per-item one.
	ErrEmptyBatch = errors.New("batch contains no items")
)

// StatusNotification is the payload published per accepted status event.
type StatusNotification struct {
	ID         string           `json:"id"`
	DriverID   string           `json:"driver_id"`
	DeliveryID string           `json:"delivery_id"`
	Status     domain.Status    `json:"status"`
	IssueType  domain.IssueType `json:"issue_type,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// LocationNotification is the payload published per accepted ping.
type LocationNotification struct {
	ID        string    `json:"id"`
	DriverID  string    `json:"driver_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Reconciler merges offline-recorded driver batches into the event store
// with at-most-once semantics. It is stateless: every call is a pure
// function of the batch and current store state.
type Reconciler struct {
	store       ports.EventStore
	broadcaster ports.Broadcaster
	routes      ports.RouteReader
	log         *zap.Logger
}

// NewReconciler constructs a Reconciler with its collaborators.
func NewReconciler(store ports.EventStore, broadcaster ports.Broadcaster, routes ports.RouteReader) *Reconciler {
	return &Reconciler{
		store:       store,
		broadcaster: broadcaster,
		routes:      routes,
		log:         logger.Named("sync"),
	}
}

// Reconcile validates, deduplicates and applies a driver's batch, then
// assembles per-item outcomes plus a fresh route snapshot. Per-item
// problems are reported in FailedItems; an error return is reserved for
// envelope-level failures.
func (r *Reconciler) Reconcile(ctx context.Context, driverID string, batch domain.SyncBatch) (*domain.SyncResult, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return nil, ErrDriverRequired
	}
	if batch.Empty() {
		return nil, ErrEmptyBatch
	}

	result := &domain.SyncResult{
		SyncedItems: []domain.SyncedItem{},
		FailedItems: []domain.FailedItem{},
	}

	r.reconcileDeliveries(ctx, driverID, batch.Deliveries, result)
	r.reconcileLocations(ctx, driverID, batch.Locations, result)

	// The snapshot is re-read from current state rather than patched from
	// the applied items, so the response cannot drift from the store.
	snapshot, err := r.routes.Snapshot(ctx, driverID)
	if err != nil {
		r.log.Warn("route snapshot unavailable after sync",
			zap.String("driver_id", driverID),
			zap.Error(err),
		)
	} else {
		result.UpdatedRoutes = snapshot.Routes
		result.UpdatedStats = snapshot.Stats
	}

	return result, nil
}

// indexedEvent pairs a status event with its original array position, the
// stable tiebreaker for equal timestamps.
type indexedEvent struct {
	idx   int
	event domain.DeliveryStatusEvent
}

// reconcileDeliveries applies status events grouped per delivery in
// increasing timestamp order, since offline capture order can be scrambled
// by clock drift.
func (r *Reconciler) reconcileDeliveries(ctx context.Context, driverID string, events []domain.DeliveryStatusEvent, result *domain.SyncResult) {
	groups := make(map[string][]indexedEvent)
	order := make([]string, 0, len(events))

	for i, event := range events {
		id := event.DeliveryID
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], indexedEvent{idx: i, event: event})
	}

	for _, deliveryID := range order {
		group := groups[deliveryID]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].event.Timestamp.Before(group[j].event.Timestamp)
		})

		// Track the delivery's status across the group so the second event
		// of a batch sees the effect of the first.
		var view domain.Status
		viewLoaded := false

		for _, item := range group {
			event := item.event

			if err := event.Validate(); err != nil {
				r.failDelivery(result, event.ID, domain.ReasonMalformedItem)
				continue
			}

			assigned, err := r.store.IsAssigned(ctx, driverID, event.DeliveryID)
			if err != nil {
				r.failDelivery(result, event.ID, domain.ReasonStoreUnavailable)
				continue
			}
			if !assigned {
				r.failDelivery(result, event.ID, domain.ReasonNotAssigned)
				continue
			}

			// Idempotency: a retried upload reports synced without reapplying.
			prior, err := r.store.GetEvent(ctx, event.ID)
			if err != nil {
				r.failDelivery(result, event.ID, domain.ReasonStoreUnavailable)
				continue
			}
			if prior != nil {
				r.syncDelivery(result, event.ID)
				continue
			}

			if !viewLoaded {
				current, err := r.store.GetCurrentStatus(ctx, event.DeliveryID)
				if err != nil {
					r.failDelivery(result, event.ID, domain.ReasonStoreUnavailable)
					continue
				}
				view = current
				viewLoaded = true
			}

			if !view.CanTransitionTo(event.Status) {
				r.failDelivery(result, event.ID, domain.ReasonInvalidTransition)
				continue
			}

			if err := r.store.ApplyStatusEvent(ctx, driverID, event, view); err != nil {
				if errors.Is(err, ports.ErrStatusConflict) {
					r.log.Warn("concurrent update on delivery",
						zap.String("delivery_id", event.DeliveryID),
						zap.String("driver_id", driverID),
					)
				}
				r.failDelivery(result, event.ID, domain.ReasonStoreUnavailable)
				continue
			}

			view = event.Status
			r.syncDelivery(result, event.ID)
			r.publishStatus(ctx, driverID, event)
		}
	}
}

// reconcileLocations records pings in array order. Pings carry no
// transition rules; the store keeps the newest one as the current-location
// projection and appends every accepted ping to the trail.
func (r *Reconciler) reconcileLocations(ctx context.Context, driverID string, pings []domain.LocationPing, result *domain.SyncResult) {
	for _, ping := range pings {
		if err := ping.Validate(); err != nil {
			r.failLocation(result, ping.ID)
			continue
		}

		prior, err := r.store.GetEvent(ctx, ping.ID)
		if err != nil {
			result.FailedItems = append(result.FailedItems, domain.FailedItem{
				Type: domain.ItemTypeLocation, ID: ping.ID, Reason: domain.ReasonStoreUnavailable,
			})
			continue
		}
		if prior != nil {
			r.syncLocation(result, ping.ID)
			continue
		}

		if err := r.store.RecordLocation(ctx, driverID, ping); err != nil {
			result.FailedItems = append(result.FailedItems, domain.FailedItem{
				Type: domain.ItemTypeLocation, ID: ping.ID, Reason: domain.ReasonStoreUnavailable,
			})
			continue
		}

		r.syncLocation(result, ping.ID)
		r.publishLocation(ctx, driverID, ping)
	}
}

// publishStatus notifies office sessions of an accepted status change.
// Broadcast failure does not fail the item.
func (r *Reconciler) publishStatus(ctx context.Context, driverID string, event domain.DeliveryStatusEvent) {
	notification := StatusNotification{
		ID:         uuid.NewString(),
		DriverID:   driverID,
		DeliveryID: event.DeliveryID,
		Status:     event.Status,
		IssueType:  event.IssueType,
		Timestamp:  event.Timestamp,
	}
	if err := r.broadcaster.Publish(ctx, TopicDeliveryStatus, notification); err != nil {
		r.log.Warn("status broadcast failed",
			zap.String("delivery_id", event.DeliveryID),
			zap.Error(err),
		)
	}
}

// publishLocation notifies office sessions of an accepted ping.
func (r *Reconciler) publishLocation(ctx context.Context, driverID string, ping domain.LocationPing) {
	notification := LocationNotification{
		ID:        uuid.NewString(),
		DriverID:  driverID,
		Latitude:  ping.Latitude,
		Longitude: ping.Longitude,
		Timestamp: ping.Timestamp,
	}
	if err := r.broadcaster.Publish(ctx, TopicDriverLocation, notification); err != nil {
		r.log.Warn("location broadcast failed",
			zap.String("driver_id", driverID),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) syncDelivery(result *domain.SyncResult, id string) {
	result.SyncedItems = append(result.SyncedItems, domain.SyncedItem{
		Type: domain.ItemTypeDelivery, ID: id, Status: "synced",
	})
}

func (r *Reconciler) failDelivery(result *domain.SyncResult, id string, reason domain.FailReason) {
	result.FailedItems = append(result.FailedItems, domain.FailedItem{
		Type: domain.ItemTypeDelivery, ID: id, Reason: reason,
	})
}

func (r *Reconciler) syncLocation(result *domain.SyncResult, id string) {
	result.SyncedItems = append(result.SyncedItems, domain.SyncedItem{
		Type: domain.ItemTypeLocation, ID: id, Status: "synced",
	})
}

func (r *Reconciler) failLocation(result *domain.SyncResult, id string) {
	result.FailedItems = append(result.FailedItems, domain.FailedItem{
		Type: domain.ItemTypeLocation, ID: id, Reason: domain.ReasonMalformedItem,
	})
}
