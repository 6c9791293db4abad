package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultQueueKey = "drip:queue"

// RedisQueue is a sorted set of delivery keys scored by due time in unix
// milliseconds.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Key() string {
	return q.key
}

func (q *RedisQueue) Insert(ctx context.Context, deliveryKey string, sendAt time.Time) error {
	if err := q.rdb.ZAdd(ctx, q.key, queueMember(deliveryKey, sendAt)).Err(); err != nil {
		return fmt.Errorf("queue insert: %w", err)
	}
	return nil
}

// Due returns up to limit members with score <= now, earliest first. Members
// sharing a score come back in lexical order.
func (q *RedisQueue) Due(ctx context.Context, now time.Time, limit int) ([]QueueItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	zs, err := q.rdb.ZRangeByScoreWithScores(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("queue due: %w", err)
	}
	return queueItems(zs), nil
}

func (q *RedisQueue) Remove(ctx context.Context, deliveryKey string) error {
	return q.rdb.ZRem(ctx, q.key, deliveryKey).Err()
}

func (q *RedisQueue) Count(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue count: %w", err)
	}
	return n, nil
}

func (q *RedisQueue) Entries(ctx context.Context) ([]QueueItem, error) {
	zs, err := q.rdb.ZRangeWithScores(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue entries: %w", err)
	}
	return queueItems(zs), nil
}

func queueItems(zs []redis.Z) []QueueItem {
	out := make([]QueueItem, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, QueueItem{
			DeliveryKey: member,
			SendAt:      time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return out
}

func queueMember(deliveryKey string, sendAt time.Time) redis.Z {
	return redis.Z{Score: float64(sendAt.UnixMilli()), Member: deliveryKey}
}
