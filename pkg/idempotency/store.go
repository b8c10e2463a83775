package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "\x00pending"

type State int

const (
	// Started means the caller owns the key and must Complete or Release it.
	Started State = iota
	// InFlight means another request holds the key and has not finished.
	InFlight
	// Done means an earlier request finished; its result is returned.
	Done
)

type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

func (s *Store) RequestKey(tenantID, userID, key string) string {
	return fmt.Sprintf("idem:checkout:%s:%s:%s", tenantID, userID, key)
}

// Seen marks key as processed and reports whether it already was.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

func (s *Store) Begin(ctx context.Context, key string) (State, string, error) {
	ok, err := s.rdb.SetNX(ctx, key, pendingMarker, s.ttl).Result()
	if err != nil {
		return 0, "", err
	}
	if ok {
		return Started, "", nil
	}

	val, err := s.rdb.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Expired between SETNX and GET; try once more.
		return s.Begin(ctx, key)
	case err != nil:
		return 0, "", err
	case val == pendingMarker:
		return InFlight, "", nil
	default:
		return Done, val, nil
	}
}

func (s *Store) Complete(ctx context.Context, key, result string) error {
	return s.rdb.Set(ctx, key, result, s.ttl).Err()
}

func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
