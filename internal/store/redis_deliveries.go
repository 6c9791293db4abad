package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/redis/go-redis/v9"
)

// claimScript moves a delivery to sending only from pending or failed, or
// from a sending state whose lease has lapsed. Times are unix milliseconds.
var claimScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then
  return 'missing'
end
if state == 'sent' then
  return 'sent'
end
if state == 'sending' then
  local claimed = tonumber(redis.call('HGET', KEYS[1], 'claimedAt') or '0') or 0
  if claimed > tonumber(ARGV[2]) then
    return 'busy'
  end
end
redis.call('HSET', KEYS[1], 'state', 'sending', 'claimedAt', ARGV[1], 'updatedAt', ARGV[1])
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
return 'claimed'
`)

// RedisDeliveryStore keeps each delivery as a hash and writes its queue entry
// through the queue it was constructed with.
type RedisDeliveryStore struct {
	rdb   *redis.Client
	queue *RedisQueue
}

func NewRedisDeliveryStore(rdb *redis.Client, queue *RedisQueue) *RedisDeliveryStore {
	return &RedisDeliveryStore{rdb: rdb, queue: queue}
}

// Schedule persists every record and queue entry in one MULTI so a sequence
// is never half enqueued.
func (s *RedisDeliveryStore) Schedule(ctx context.Context, deliveries []model.Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, d := range deliveries {
			p.Del(ctx, d.Key)
			p.HSet(ctx, d.Key, deliveryFields(d))
			p.ZAdd(ctx, s.queue.key, queueMember(d.Key, d.SendAt))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("schedule deliveries: %w", err)
	}
	return nil
}

func (s *RedisDeliveryStore) Get(ctx context.Context, key string) (model.Delivery, error) {
	m, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return model.Delivery{}, fmt.Errorf("get delivery: %w", err)
	}
	if len(m) == 0 {
		return model.Delivery{}, ErrNotFound
	}
	return parseDelivery(key, m), nil
}

func (s *RedisDeliveryStore) Claim(ctx context.Context, key string, now time.Time, lease time.Duration) (ClaimResult, error) {
	res, err := claimScript.Run(ctx, s.rdb, []string{key},
		now.UnixMilli(),
		now.Add(-lease).UnixMilli(),
	).Text()
	if err != nil {
		return "", fmt.Errorf("claim delivery: %w", err)
	}
	return ClaimResult(res), nil
}

// MarkSent records the send and drops the queue entry. The record is kept as
// the audit trail.
func (s *RedisDeliveryStore) MarkSent(ctx context.Context, key string, sentAt time.Time) error {
	ms := sentAt.UnixMilli()
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, map[string]any{
			"state":     string(model.Sent),
			"sentAt":    ms,
			"updatedAt": ms,
			"lastError": "",
		})
		p.ZRem(ctx, s.queue.key, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// MarkFailed re-arms the delivery at retryAt.
func (s *RedisDeliveryStore) MarkFailed(ctx context.Context, key string, reason string, now, retryAt time.Time) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, map[string]any{
			"state":     string(model.Failed),
			"lastError": reason,
			"sendAt":    retryAt.UnixMilli(),
			"updatedAt": now.UnixMilli(),
		})
		p.ZAdd(ctx, s.queue.key, queueMember(key, retryAt))
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (s *RedisDeliveryStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		p.ZRem(ctx, s.queue.key, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete deliveries: %w", err)
	}
	return nil
}

func deliveryFields(d model.Delivery) map[string]any {
	f := map[string]any{
		"enrollmentId":  d.EnrollmentID,
		"email":         d.Email,
		"firstName":     d.FirstName,
		"workshopSlug":  d.WorkshopSlug,
		"workshopTitle": d.WorkshopTitle,
		"lessonKey":     d.LessonKey,
		"lessonIndex":   d.LessonIndex,
		"subject":       d.Subject,
		"preheader":     d.Preheader,
		"html":          d.HTML,
		"sendAt":        d.SendAt.UnixMilli(),
		"state":         string(d.State),
		"attempts":      d.Attempts,
		"lastError":     d.LastError,
		"createdAt":     d.CreatedAt.UnixMilli(),
		"updatedAt":     d.UpdatedAt.UnixMilli(),
	}
	if d.ClaimedAt != nil {
		f["claimedAt"] = d.ClaimedAt.UnixMilli()
	}
	if d.SentAt != nil {
		f["sentAt"] = d.SentAt.UnixMilli()
	}
	return f
}

func parseDelivery(key string, m map[string]string) model.Delivery {
	d := model.Delivery{
		Key:           key,
		EnrollmentID:  m["enrollmentId"],
		Email:         m["email"],
		FirstName:     m["firstName"],
		WorkshopSlug:  m["workshopSlug"],
		WorkshopTitle: m["workshopTitle"],
		LessonKey:     m["lessonKey"],
		LessonIndex:   atoi(m["lessonIndex"]),
		Subject:       m["subject"],
		Preheader:     m["preheader"],
		HTML:          m["html"],
		SendAt:        millis(m["sendAt"]),
		State:         model.DeliveryState(m["state"]),
		Attempts:      atoi(m["attempts"]),
		LastError:     m["lastError"],
		CreatedAt:     millis(m["createdAt"]),
		UpdatedAt:     millis(m["updatedAt"]),
	}
	if v, ok := m["claimedAt"]; ok && v != "" {
		t := millis(v)
		d.ClaimedAt = &t
	}
	if v, ok := m["sentAt"]; ok && v != "" {
		t := millis(v)
		d.SentAt = &t
	}
	return d
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func millis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
