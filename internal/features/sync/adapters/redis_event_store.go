package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"luckygas-dispatch/internal/features/sync/domain"
	"luckygas-dispatch/internal/features/sync/ports"

	"github.com/redis/go-redis/v9"
)

// RedisEventStore implements ports.EventStore on Redis.
//
// Key layout:
//
//	sync:event:<key>            JSON AppliedEvent, the idempotency marker
//	delivery:<id>:status        current status string
//	delivery:<id>:events        list of applied status events (audit trail)
//	driver:<id>:location        JSON of the newest ping (projection)
//	driver:<id>:trail           sorted set of recent pings, scored by time
//	driver:<id>:deliveries      set of assigned delivery IDs
type RedisEventStore struct {
	client     *redis.Client
	trailLimit int
}

// NewRedisEventStore creates a Redis-backed event store.
// The redisURL should be in the format: redis://[:password@]host[:port][/database]
func NewRedisEventStore(redisURL string, trailLimit int) (*RedisEventStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if trailLimit <= 0 {
		trailLimit = 500
	}

	return &RedisEventStore{
		client:     redis.NewClient(opts),
		trailLimit: trailLimit,
	}, nil
}

// trailEntry is the stored form of one trail member. The ping ID keeps
// members unique inside the sorted set.
type trailEntry struct {
	ID         string    `json:"id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	RecordedAt time.Time `json:"recorded_at"`
}

func eventKey(key string) string            { return "sync:event:" + key }
func statusKey(deliveryID string) string    { return "delivery:" + deliveryID + ":status" }
func eventLogKey(deliveryID string) string  { return "delivery:" + deliveryID + ":events" }
func locationKey(driverID string) string    { return "driver:" + driverID + ":location" }
func trailKey(driverID string) string       { return "driver:" + driverID + ":trail" }
func assignmentsKey(driverID string) string { return "driver:" + driverID + ":deliveries" }

// GetEvent returns the applied event for an idempotency key, or nil when
// the key has never been applied.
func (s *RedisEventStore) GetEvent(ctx context.Context, key string) (*ports.AppliedEvent, error) {
	data, err := s.client.Get(ctx, eventKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event %s: %w", key, err)
	}

	var event ports.AppliedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %s: %w", key, err)
	}
	return &event, nil
}

// GetCurrentStatus returns the delivery's canonical status. A delivery
// with no recorded event yet is pending.
func (s *RedisEventStore) GetCurrentStatus(ctx context.Context, deliveryID string) (domain.Status, error) {
	raw, err := s.client.Get(ctx, statusKey(deliveryID)).Result()
	if err == redis.Nil {
		return domain.StatusPending, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status of %s: %w", deliveryID, err)
	}

	status, err := domain.ParseStatus(raw)
	if err != nil {
		return "", fmt.Errorf("corrupt status for %s: %w", deliveryID, err)
	}
	return status, nil
}

// ApplyStatusEvent applies a status event under optimistic concurrency:
// the status key is watched, re-read, compared to expected, and the write
// goes through a MULTI/EXEC so the status update, the idempotency marker
// and the audit-log append land atomically.
func (s *RedisEventStore) ApplyStatusEvent(ctx context.Context, driverID string, event domain.DeliveryStatusEvent, expected domain.Status) error {
	marker, err := json.Marshal(ports.AppliedEvent{
		Key:        event.ID,
		Type:       domain.ItemTypeDelivery,
		DeliveryID: event.DeliveryID,
		Status:     event.Status,
		DriverID:   driverID,
		AppliedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event marker: %w", err)
	}

	logEntry, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := statusKey(event.DeliveryID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		current := domain.StatusPending
		if err == nil {
			if current, err = domain.ParseStatus(raw); err != nil {
				return fmt.Errorf("corrupt status for %s: %w", event.DeliveryID, err)
			}
		} else if err != redis.Nil {
			return err
		}

		if current != expected {
			return ports.ErrStatusConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, event.Status.String(), 0)
			pipe.Set(ctx, eventKey(event.ID), marker, 0)
			pipe.RPush(ctx, eventLogKey(event.DeliveryID), logEntry)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ports.ErrStatusConflict
	}
	return err
}

// RecordLocation appends the ping to the driver's trail and advances the
// current-location projection only when the ping is newer than the held
// one, so out-of-order uploads cannot move the marker backwards.
func (s *RedisEventStore) RecordLocation(ctx context.Context, driverID string, ping domain.LocationPing) error {
	marker, err := json.Marshal(ports.AppliedEvent{
		Key:       ping.ID,
		Type:      domain.ItemTypeLocation,
		DriverID:  driverID,
		AppliedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event marker: %w", err)
	}

	entry, err := json.Marshal(trailEntry{
		ID:         ping.ID,
		Latitude:   ping.Latitude,
		Longitude:  ping.Longitude,
		Accuracy:   ping.Accuracy,
		RecordedAt: ping.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal ping: %w", err)
	}

	projection, err := json.Marshal(domain.DriverLocation{
		DriverID:   driverID,
		Latitude:   ping.Latitude,
		Longitude:  ping.Longitude,
		Accuracy:   ping.Accuracy,
		RecordedAt: ping.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}

	key := locationKey(driverID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		newest := true
		raw, err := tx.Get(ctx, key).Bytes()
		if err == nil {
			var held domain.DriverLocation
			if err := json.Unmarshal(raw, &held); err == nil && !held.RecordedAt.Before(ping.Timestamp) {
				newest = false
			}
		} else if err != redis.Nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if newest {
				pipe.Set(ctx, key, projection, 0)
			}
			pipe.Set(ctx, eventKey(ping.ID), marker, 0)
			pipe.ZAdd(ctx, trailKey(driverID), redis.Z{
				Score:  float64(ping.Timestamp.UnixMilli()),
				Member: entry,
			})
			pipe.ZRemRangeByRank(ctx, trailKey(driverID), 0, int64(-(s.trailLimit + 1)))
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ports.ErrStatusConflict
	}
	return err
}

// CurrentLocation returns the driver's newest recorded ping, or nil when
// none exists.
func (s *RedisEventStore) CurrentLocation(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	data, err := s.client.Get(ctx, locationKey(driverID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read location of %s: %w", driverID, err)
	}

	var location domain.DriverLocation
	if err := json.Unmarshal(data, &location); err != nil {
		return nil, fmt.Errorf("failed to unmarshal location of %s: %w", driverID, err)
	}
	return &location, nil
}

// LocationTrail returns up to limit recent pings, newest first.
func (s *RedisEventStore) LocationTrail(ctx context.Context, driverID string, limit int) ([]domain.DriverLocation, error) {
	if limit <= 0 || limit > s.trailLimit {
		limit = s.trailLimit
	}

	members, err := s.client.ZRevRange(ctx, trailKey(driverID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read trail of %s: %w", driverID, err)
	}

	trail := make([]domain.DriverLocation, 0, len(members))
	for _, member := range members {
		var entry trailEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			return nil, fmt.Errorf("corrupt trail entry for %s: %w", driverID, err)
		}
		trail = append(trail, domain.DriverLocation{
			DriverID:   driverID,
			Latitude:   entry.Latitude,
			Longitude:  entry.Longitude,
			Accuracy:   entry.Accuracy,
			RecordedAt: entry.RecordedAt,
		})
	}
	return trail, nil
}

// IsAssigned reports whether the delivery belongs to the driver.
func (s *RedisEventStore) IsAssigned(ctx context.Context, driverID, deliveryID string) (bool, error) {
	assigned, err := s.client.SIsMember(ctx, assignmentsKey(driverID), deliveryID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return assigned, nil
}

// AssignDeliveries records deliveries as belonging to the driver. Called
// whenever fresh route assignments are read from the ERP.
func (s *RedisEventStore) AssignDeliveries(ctx context.Context, driverID string, deliveryIDs ...string) error {
	if len(deliveryIDs) == 0 {
		return nil
	}

	members := make([]interface{}, len(deliveryIDs))
	for i, id := range deliveryIDs {
		members[i] = id
	}

	if err := s.client.SAdd(ctx, assignmentsKey(driverID), members...).Err(); err != nil {
		return fmt.Errorf("failed to record assignments: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *RedisEventStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisEventStore) Close() error {
	return s.client.Close()
}
