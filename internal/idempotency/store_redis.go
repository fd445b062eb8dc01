package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefix for idempotency records
const redisKeyPrefix = "idem:"

// RedisStore shares idempotency keys between server instances. Reservation
// uses SET NX so only one instance runs a given key.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (*Record, bool, error) {
	pending, err := json.Marshal(Record{State: StatePending, Fingerprint: fingerprint})
	if err != nil {
		return nil, false, err
	}
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, pending, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; report it as in progress and let the
		// client retry.
		return &Record{State: StatePending, Fingerprint: fingerprint}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load idempotency key: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, false, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, redisKeyPrefix+key, raw, ttl).Result()
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if !ok {
		return ErrNotReserved
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}
