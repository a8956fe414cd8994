package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tandemhq/tandem/internal/metrics"
)

const eventTTL = 24 * time.Hour

// RedisStore keeps hot, expiring data: the per-room recent-event cache
// used for reconnect catch-up, and the counters behind the rate limiter.
// Nothing here is a store of record.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the rate limiter middleware.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// roomEventsKey returns the key for a room's recent-event sorted set.
func roomEventsKey(room string) string {
	return fmt.Sprintf("events:%s", room)
}

// AddEvent caches a broadcast envelope for the room. Members carry a ULID
// prefix so identical payloads broadcast twice stay distinct entries.
func (s *RedisStore) AddEvent(ctx context.Context, room string, data []byte) error {
	start := time.Now()
	defer func() { metrics.RedisLatency.Observe(time.Since(start).Seconds()) }()

	key := roomEventsKey(room)
	member := ulid.Make().String() + "|" + string(data)

	if err := s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: member,
	}).Err(); err != nil {
		return err
	}

	return s.client.Expire(ctx, key, eventTTL).Err()
}

// RoomEvents retrieves cached envelopes for a room, newest first. before
// is an exclusive Unix-ms upper bound; zero means no bound.
func (s *RedisStore) RoomEvents(ctx context.Context, room string, limit int, before int64) ([]json.RawMessage, error) {
	start := time.Now()
	defer func() { metrics.RedisLatency.Observe(time.Since(start).Seconds()) }()

	maxScore := "+inf"
	if before > 0 {
		maxScore = fmt.Sprintf("(%d", before) // exclusive
	}

	results, err := s.client.ZRevRangeByScore(ctx, roomEventsKey(room), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   maxScore,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	events := make([]json.RawMessage, 0, len(results))
	for _, member := range results {
		_, data, found := strings.Cut(member, "|")
		if !found {
			continue
		}
		events = append(events, json.RawMessage(data))
	}
	return events, nil
}
