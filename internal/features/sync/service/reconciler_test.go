package service

import (
	"context"
	"errors"
	"testing"
	"time"

	routesdomain "luckygas-dispatch/internal/features/routes/domain"
	"luckygas-dispatch/internal/features/sync/domain"
	"luckygas-dispatch/internal/features/sync/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEventStore is an in-memory implementation of ports.EventStore for testing.
type fakeEventStore struct {
	events    map[string]*ports.AppliedEvent
	statuses  map[string]domain.Status
	assigned  map[string]bool // "driver|delivery"
	location  map[string]*domain.DriverLocation
	trails    map[string][]domain.LocationPing
	applies   int
	failReads bool
	applyErr  error
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		events:   make(map[string]*ports.AppliedEvent),
		statuses: make(map[string]domain.Status),
		assigned: make(map[string]bool),
		location: make(map[string]*domain.DriverLocation),
		trails:   make(map[string][]domain.LocationPing),
	}
}

func (f *fakeEventStore) assign(driverID string, deliveryIDs ...string) {
	for _, id := range deliveryIDs {
		f.assigned[driverID+"|"+id] = true
	}
}

func (f *fakeEventStore) GetEvent(ctx context.Context, key string) (*ports.AppliedEvent, error) {
	if f.failReads {
		return nil, errors.New("store down")
	}
	return f.events[key], nil
}

func (f *fakeEventStore) GetCurrentStatus(ctx context.Context, deliveryID string) (domain.Status, error) {
	if f.failReads {
		return "", errors.New("store down")
	}
	if status, ok := f.statuses[deliveryID]; ok {
		return status, nil
	}
	return domain.StatusPending, nil
}

func (f *fakeEventStore) ApplyStatusEvent(ctx context.Context, driverID string, event domain.DeliveryStatusEvent, expected domain.Status) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	current := domain.StatusPending
	if status, ok := f.statuses[event.DeliveryID]; ok {
		current = status
	}
	if current != expected {
		return ports.ErrStatusConflict
	}
	f.statuses[event.DeliveryID] = event.Status
	f.events[event.ID] = &ports.AppliedEvent{
		Key:        event.ID,
		Type:       domain.ItemTypeDelivery,
		DeliveryID: event.DeliveryID,
		Status:     event.Status,
		DriverID:   driverID,
		AppliedAt:  time.Now().UTC(),
	}
	f.applies++
	return nil
}

func (f *fakeEventStore) RecordLocation(ctx context.Context, driverID string, ping domain.LocationPing) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	held := f.location[driverID]
	if held == nil || held.RecordedAt.Before(ping.Timestamp) {
		f.location[driverID] = &domain.DriverLocation{
			DriverID:   driverID,
			Latitude:   ping.Latitude,
			Longitude:  ping.Longitude,
			Accuracy:   ping.Accuracy,
			RecordedAt: ping.Timestamp,
		}
	}
	f.trails[driverID] = append(f.trails[driverID], ping)
	f.events[ping.ID] = &ports.AppliedEvent{
		Key:       ping.ID,
		Type:      domain.ItemTypeLocation,
		DriverID:  driverID,
		AppliedAt: time.Now().UTC(),
	}
	f.applies++
	return nil
}

func (f *fakeEventStore) CurrentLocation(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	return f.location[driverID], nil
}

func (f *fakeEventStore) LocationTrail(ctx context.Context, driverID string, limit int) ([]domain.DriverLocation, error) {
	return nil, nil
}

func (f *fakeEventStore) IsAssigned(ctx context.Context, driverID, deliveryID string) (bool, error) {
	if f.failReads {
		return false, errors.New("store down")
	}
	return f.assigned[driverID+"|"+deliveryID], nil
}

// fakeBroadcaster records published notifications.
type fakeBroadcaster struct {
	published []string // topics, in publish order
	returnErr error
}

func (f *fakeBroadcaster) Publish(ctx context.Context, topic string, payload any) error {
	if f.returnErr != nil {
		return f.returnErr
	}
	f.published = append(f.published, topic)
	return nil
}

// fakeRouteReader returns a fixed snapshot and counts reads.
type fakeRouteReader struct {
	snapshot  routesdomain.Snapshot
	reads     int
	returnErr error
}

func (f *fakeRouteReader) Snapshot(ctx context.Context, driverID string) (routesdomain.Snapshot, error) {
	f.reads++
	if f.returnErr != nil {
		return routesdomain.Snapshot{}, f.returnErr
	}
	return f.snapshot, nil
}

func newTestReconciler(store *fakeEventStore) (*Reconciler, *fakeBroadcaster, *fakeRouteReader) {
	broadcaster := &fakeBroadcaster{}
	routes := &fakeRouteReader{}
	return NewReconciler(store, broadcaster, routes), broadcaster, routes
}

func statusEvent(id, deliveryID string, status domain.Status, ts time.Time) domain.DeliveryStatusEvent {
	event := domain.DeliveryStatusEvent{
		ID:         id,
		DeliveryID: deliveryID,
		Status:     status,
		Timestamp:  ts,
	}
	if status == domain.StatusFailed {
		event.IssueType = domain.IssueAbsent
	}
	return event
}

func ping(id string, lat, lng float64, ts time.Time) domain.LocationPing {
	return domain.LocationPing{
		ID:        id,
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  5,
		Timestamp: ts,
	}
}

var baseTime = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// TestReconciler_Reconcile_AppliesStatusEvents verifies the happy path
// through arrival and delivery.
func TestReconciler_Reconcile_AppliesStatusEvents(t *testing.T) {
	store := newFakeEventStore()
	store.assign("driver-1", "d-100")
	reconciler, broadcaster, _ := newTestReconciler(store)

	batch := domain.SyncBatch{Deliveries: []domain.DeliveryStatusEvent{
		statusEvent("ev-1", "d-100", domain.StatusArrived, baseTime),
		statusEvent("ev-2", "d-100", domain.StatusDelivered, baseTime.Add(time.Minute)),
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	assert.Equal(t, 2, result.SyncedCount())
	assert.Equal(t, 0, result.FailedCount())
	assert.Equal(t, domain.StatusDelivered, store.statuses["d-100"])
	assert.Len(t, broadcaster.published, 2)
}

// TestReconciler_Reconcile_Idempotent verifies that resubmitting a batch
// reports synced for every item without duplicate state changes.
func TestReconciler_Reconcile_Idempotent(t *testing.T) {
	store := newFakeEventStore()
	store.assign("driver-1", "d-100")
	reconciler, _, _ := newTestReconciler(store)

	batch := domain.SyncBatch{
		Deliveries: []domain.DeliveryStatusEvent{
			statusEvent("ev-1", "d-100", domain.StatusDelivered, baseTime),
		},
		Locations: []domain.LocationPing{
			ping("loc-1", 25.03, 121.56, baseTime),
		},
	}

	first, err := reconciler.Reconcile(context.Background(), "driver-1", batch)
	require.NoError(t, err)
	require.Equal(t, 2, first.SyncedCount())
	appliesAfterFirst := store.applies

	second, err := reconciler.Reconcile(context.Background(), "driver-1", batch)
	require.NoError(t, err)

	assert.Equal(t, 2, second.SyncedCount())
	assert.Equal(t, 0, second.FailedCount())
	assert.Equal(t, appliesAfterFirst, store.applies, "resubmission must not reapply")
}

// TestReconciler_Reconcile_TimestampOrder verifies that status events for
// one delivery are applied in timestamp order, not array order.
func TestReconciler_Reconcile_TimestampOrder(t *testing.T) {
	store := newFakeEventStore()
	store.assign("driver-1", "d-100")
	reconciler, _, _ := newTestReconciler(store)

	// Delivered is first in the array but chronologically second.
	batch := domain.SyncBatch{Deliveries: []domain.DeliveryStatusEvent{
		statusEvent("ev-2", "d-100", domain.StatusDelivered, baseTime.Add(time.Minute)),
		statusEvent("ev-1", "d-100", domain.StatusArrived, baseTime),
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	assert.Equal(t, 2, result.SyncedCount())
	assert.Equal(t, domain.StatusDelivered, store.statuses["d-100"])
}

// TestReconciler_Reconcile_TimestampTies verifies that equal timestamps
// fall back to array position, keeping the sort stable.
func TestReconciler_Reconcile_TimestampTies(t *testing.T) {
	store := newFakeEventStore()
	store.assign("driver-1", "d-100")
	reconciler, _, _ := newTestReconciler(store)

	batch := domain.SyncBatch{Deliveries: []domain.DeliveryStatusEvent{
		statusEvent("ev-1", "d-100", domain.StatusArrived, baseTime),
		statusEvent("ev-2", "d-100", domain.StatusDelivered, baseTime),
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	assert.Equal(t, 2, result.SyncedCount())
	assert.Equal(t, domain.StatusDelivered, store.statuses["d-100"])
}

// TestReconciler_Reconcile_TerminalRejected verifies that a terminal
// delivery accepts no further transitions.
func TestReconciler_Reconcile_TerminalRejected(t *testing.T) {
	store := newFakeEventStore()
	store.assign("driver-1", "d-100")
	store.statuses["d-100"] = domain.StatusFailed
	reconciler, _, _ := newTestReconciler(store)

	batch := domain.SyncBatch{Deliveries: []domain.DeliveryStatusEvent{
		statusEvent("ev-1", "d-100", domain.StatusDelivered, baseTime),
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	require.Equal(t, 1, result.FailedCount())
	assert.Equal(t, domain.ReasonInvalidTransition, result.FailedItems[0].Reason)
	assert.Equal(t, domain.StatusFailed, store.statuses["d-100"], "terminal status must not change")
}

// TestReconciler_Reconcile_PartialTolerance verifies that one bad item
// does not block the rest of the batch.
func TestReconciler_Reconcile_PartialTolerance(t *testing.T) {
	store := newFakeEventStore()
	reconciler, _, _ := newTestReconciler(store)

	batch := domain.SyncBatch{Deliveries: []domain.DeliveryStatusEvent{
		statusEvent("ev-0", "d-999", domain.StatusDelivered, baseTime), // not assigned
	}}
	for i := 1; i <= 9; i++ {
		deliveryID := "d-10" + string(rune('0'+i))
		store.assign("driver-1", deliveryID)
		batch.Deliveries = append(batch.Deliveries,
			statusEvent("ev-"+string(rune('0'+i)), deliveryID, domain.StatusDelivered, baseTime))
	}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	assert.Equal(t, 9, result.SyncedCount())
	require.Equal(t, 1, result.FailedCount())
	assert.Equal(t, "ev-0", result.FailedItems[0].ID)
	assert.Equal(t, domain.ReasonNotAssigned, result.FailedItems[0].Reason)
}

// TestReconciler_Reconcile_MalformedFailedEvent verifies that a failed
// status without an issue type is rejected without touching the store.
func TestReconciler_Reconcile_MalformedFailedEvent(t *testing.T) {
	store := newFakeEventStore()
	store.assign("driver-1", "d-100")
	reconciler, _, _ := newTestReconciler(store)

	batch := domain.SyncBatch{Deliveries: []domain.DeliveryStatusEvent{
		{
			ID:         "ev-1",
			DeliveryID: "d-100",
			Status:     domain.StatusFailed,
			// IssueType deliberately missing.
			Timestamp: baseTime,
		},
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	require.Equal(t, 1, result.FailedCount())
	assert.Equal(t, domain.ReasonMalformedItem, result.FailedItems[0].Reason)
	assert.Zero(t, store.applies, "malformed items must not mutate the store")
}

// TestReconciler_Reconcile_StoreConflict verifies that a concurrent-write
// conflict surfaces as a per-item failure, never a dropped item.
func TestReconciler_Reconcile_StoreConflict(t *testing.T) {
	store := newFakeEventStore()
	store.assign("driver-1", "d-100")
	store.applyErr = ports.ErrStatusConflict
	reconciler, _, _ := newTestReconciler(store)

	batch := domain.SyncBatch{Deliveries: []domain.DeliveryStatusEvent{
		statusEvent("ev-1", "d-100", domain.StatusArrived, baseTime),
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	require.Equal(t, 1, result.FailedCount())
	assert.Equal(t, domain.ReasonStoreUnavailable, result.FailedItems[0].Reason)
}

// TestReconciler_Reconcile_StoreReadFailure verifies store outages degrade
// to per-item failures rather than failing the call.
func TestReconciler_Reconcile_StoreReadFailure(t *testing.T) {
	store := newFakeEventStore()
	store.failReads = true
	reconciler, _, _ := newTestReconciler(store)

	batch := domain.SyncBatch{Deliveries: []domain.DeliveryStatusEvent{
		statusEvent("ev-1", "d-100", domain.StatusArrived, baseTime),
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	require.Equal(t, 1, result.FailedCount())
	assert.Equal(t, domain.ReasonStoreUnavailable, result.FailedItems[0].Reason)
}

// TestReconciler_Reconcile_BroadcastFailureTolerated verifies that
// notification failures never fail a sync item.
func TestReconciler_Reconcile_BroadcastFailureTolerated(t *testing.T) {
	store := newFakeEventStore()
	store.assign("driver-1", "d-100")
	broadcaster := &fakeBroadcaster{returnErr: errors.New("pubsub down")}
	reconciler := NewReconciler(store, broadcaster, &fakeRouteReader{})

	batch := domain.SyncBatch{Deliveries: []domain.DeliveryStatusEvent{
		statusEvent("ev-1", "d-100", domain.StatusDelivered, baseTime),
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	assert.Equal(t, 1, result.SyncedCount())
	assert.Equal(t, 0, result.FailedCount())
}

// TestReconciler_Reconcile_NewestPingWins verifies that the current
// location reflects the chronologically newest ping regardless of array order.
func TestReconciler_Reconcile_NewestPingWins(t *testing.T) {
	store := newFakeEventStore()
	reconciler, _, _ := newTestReconciler(store)

	batch := domain.SyncBatch{Locations: []domain.LocationPing{
		ping("loc-2", 25.05, 121.55, baseTime.Add(10*time.Minute)),
		ping("loc-1", 25.03, 121.56, baseTime),
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	assert.Equal(t, 2, result.SyncedCount())
	require.NotNil(t, store.location["driver-1"])
	assert.Equal(t, 25.05, store.location["driver-1"].Latitude)
	assert.Len(t, store.trails["driver-1"], 2, "all pings are kept in the trail")
}

// TestReconciler_Reconcile_MalformedPing verifies range validation on pings.
func TestReconciler_Reconcile_MalformedPing(t *testing.T) {
	store := newFakeEventStore()
	reconciler, _, _ := newTestReconciler(store)

	batch := domain.SyncBatch{Locations: []domain.LocationPing{
		ping("loc-1", 123.0, 121.56, baseTime), // latitude out of range
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	require.Equal(t, 1, result.FailedCount())
	assert.Equal(t, domain.ReasonMalformedItem, result.FailedItems[0].Reason)
	assert.Zero(t, store.applies)
}

// TestReconciler_Reconcile_SnapshotRefreshed verifies the response carries
// a fresh route snapshot read after the batch was applied.
func TestReconciler_Reconcile_SnapshotRefreshed(t *testing.T) {
	store := newFakeEventStore()
	store.assign("driver-1", "d-100")
	broadcaster := &fakeBroadcaster{}
	routes := &fakeRouteReader{snapshot: routesdomain.Snapshot{
		Routes: []routesdomain.Route{{ID: "r-1", Name: "Xinyi District"}},
		Stats:  routesdomain.Stats{Total: 10, Completed: 4, Remaining: 6, CompletionRate: 0.4},
	}}
	reconciler := NewReconciler(store, broadcaster, routes)

	batch := domain.SyncBatch{Deliveries: []domain.DeliveryStatusEvent{
		statusEvent("ev-1", "d-100", domain.StatusArrived, baseTime),
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	assert.Equal(t, 1, routes.reads)
	require.Len(t, result.UpdatedRoutes, 1)
	assert.Equal(t, "r-1", result.UpdatedRoutes[0].ID)
	assert.Equal(t, 0.4, result.UpdatedStats.CompletionRate)
}

// TestReconciler_Reconcile_SnapshotFailureTolerated verifies that a
// snapshot read failure does not fail the call; applied items stay applied.
func TestReconciler_Reconcile_SnapshotFailureTolerated(t *testing.T) {
	store := newFakeEventStore()
	store.assign("driver-1", "d-100")
	routes := &fakeRouteReader{returnErr: errors.New("erp down")}
	reconciler := NewReconciler(store, &fakeBroadcaster{}, routes)

	batch := domain.SyncBatch{Deliveries: []domain.DeliveryStatusEvent{
		statusEvent("ev-1", "d-100", domain.StatusDelivered, baseTime),
	}}

	result, err := reconciler.Reconcile(context.Background(), "driver-1", batch)

	require.NoError(t, err)
	assert.Equal(t, 1, result.SyncedCount())
	assert.Empty(t, result.UpdatedRoutes)
	assert.Equal(t, domain.StatusDelivered, store.statuses["d-100"])
}

// TestReconciler_Reconcile_EnvelopeErrors verifies whole-call failures are
// reserved for envelope-level problems.
func TestReconciler_Reconcile_EnvelopeErrors(t *testing.T) {
	reconciler, _, _ := newTestReconciler(newFakeEventStore())

	_, err := reconciler.Reconcile(context.Background(), "driver-1", domain.SyncBatch{})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = reconciler.Reconcile(context.Background(), "  ", domain.SyncBatch{
		Locations: []domain.LocationPing{ping("loc-1", 25.0, 121.5, baseTime)},
	})
	assert.ErrorIs(t, err, ErrDriverRequired)
}
