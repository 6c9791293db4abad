package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/redis/go-redis/v9"
)

type RedisSubscriberStore struct {
	rdb *redis.Client
}

func NewRedisSubscriberStore(rdb *redis.Client) *RedisSubscriberStore {
	return &RedisSubscriberStore{rdb: rdb}
}

func (s *RedisSubscriberStore) Exists(ctx context.Context, workshopSlug, email string) (bool, error) {
	n, err := s.rdb.Exists(ctx, SubscriberKey(workshopSlug, email)).Result()
	if err != nil {
		return false, fmt.Errorf("subscriber exists: %w", err)
	}
	return n > 0, nil
}

// Create writes the subscriber only when none exists and reports whether it
// did. It is the idempotency gate for enrollment.
func (s *RedisSubscriberStore) Create(ctx context.Context, sub model.Subscriber, ttl time.Duration) (bool, error) {
	b, err := json.Marshal(sub)
	if err != nil {
		return false, err
	}
	ok, err := s.rdb.SetNX(ctx, SubscriberKey(sub.WorkshopSlug, sub.Email), b, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("create subscriber: %w", err)
	}
	return ok, nil
}

func (s *RedisSubscriberStore) Put(ctx context.Context, sub model.Subscriber, ttl time.Duration) error {
	b, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, SubscriberKey(sub.WorkshopSlug, sub.Email), b, ttl).Err(); err != nil {
		return fmt.Errorf("put subscriber: %w", err)
	}
	return nil
}

func (s *RedisSubscriberStore) Delete(ctx context.Context, workshopSlug, email string) error {
	return s.rdb.Del(ctx, SubscriberKey(workshopSlug, email)).Err()
}
