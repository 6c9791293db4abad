package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/redis/go-redis/v9"
)

type RedisOptInStore struct {
	rdb *redis.Client
}

func NewRedisOptInStore(rdb *redis.Client) *RedisOptInStore {
	return &RedisOptInStore{rdb: rdb}
}

func (s *RedisOptInStore) Put(ctx context.Context, rec model.OptInRecord, ttl time.Duration) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, OptInKey(rec.Token), b, ttl).Err(); err != nil {
		return fmt.Errorf("store optin: %w", err)
	}
	return nil
}

func (s *RedisOptInStore) Get(ctx context.Context, token string) (model.OptInRecord, error) {
	raw, err := s.rdb.Get(ctx, OptInKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.OptInRecord{}, ErrNotFound
	}
	if err != nil {
		return model.OptInRecord{}, fmt.Errorf("get optin: %w", err)
	}

	var rec model.OptInRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.OptInRecord{}, fmt.Errorf("decode optin: %w", err)
	}
	return rec, nil
}

func (s *RedisOptInStore) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, OptInKey(token)).Err()
}
