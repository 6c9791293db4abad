package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultFailureLogKey = "drip:enroll-failures"
	failureLogCap        = 500
)

// RedisFailureLog is a capped newest-first list of enrollment failures.
type RedisFailureLog struct {
	rdb *redis.Client
	key string
}

func NewRedisFailureLog(rdb *redis.Client, key string) *RedisFailureLog {
	if key == "" {
		key = DefaultFailureLogKey
	}
	return &RedisFailureLog{rdb: rdb, key: key}
}

func (l *RedisFailureLog) Record(ctx context.Context, f model.EnrollmentFailure) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, l.key, b)
		p.LTrim(ctx, l.key, 0, failureLogCap-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record enrollment failure: %w", err)
	}
	return nil
}

func (l *RedisFailureLog) List(ctx context.Context, limit int) ([]model.EnrollmentFailure, error) {
	if limit <= 0 || limit > failureLogCap {
		limit = failureLogCap
	}
	raws, err := l.rdb.LRange(ctx, l.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list enrollment failures: %w", err)
	}
	out := make([]model.EnrollmentFailure, 0, len(raws))
	for _, raw := range raws {
		var f model.EnrollmentFailure
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
