package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// EventStore implements ports.ProcessedEventStore using Redis SET NX.
// It deduplicates gateway webhook deliveries by event ID.
type EventStore struct {
	client *goredis.Client
	prefix string
}

// NewEventStore creates a new Redis-backed processed-event store.
func NewEventStore(client *goredis.Client) *EventStore {
	return &EventStore{
		client: client,
		prefix: "gwevent:",
	}
}

// CheckAndSet atomically marks an event ID as processed. Returns true when
// the event is new, false when it was already seen within the TTL.
func (s *EventStore) CheckAndSet(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	key := s.prefix + eventID
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists — duplicate delivery
			return false, nil
		}
		return false, fmt.Errorf("redis event check: %w", err)
	}
	return result == "OK", nil
}
