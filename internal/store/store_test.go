package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestEmailHash_NormalizesCaseAndSpace(t *testing.T) {
	a := EmailHash("  Alice@Example.com ")
	b := EmailHash("alice@example.com")
	if a != b {
		t.Fatalf("expected equal hashes, got %q and %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if strings.Contains(SubscriberKey("ts-101", "alice@example.com"), "alice") {
		t.Fatalf("subscriber key must not contain the raw address")
	}
}

func TestDeliveryKey_Deterministic(t *testing.T) {
	k1 := DeliveryKey("ts-101", "Alice@example.com", "intro")
	k2 := DeliveryKey("ts-101", "alice@example.com", "intro")
	if k1 != k2 {
		t.Fatalf("expected deterministic key, got %q vs %q", k1, k2)
	}
	if !strings.HasPrefix(k1, "delivery:ts-101:") || !strings.HasSuffix(k1, ":intro") {
		t.Fatalf("unexpected key shape: %q", k1)
	}
}

func TestRedisOptInStore_PutGetDelete(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	s := NewRedisOptInStore(rdb)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := model.OptInRecord{
		Token:        "tok",
		Email:        "alice@example.com",
		FirstName:    "Alice",
		WorkshopSlug: "ts-101",
		AudienceID:   "aud",
		CreatedAt:    now,
		ExpiresAt:    now.Add(48 * time.Hour),
	}
	if err := s.Put(ctx, rec, 48*time.Hour); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if ttl := mr.TTL(OptInKey("tok")); ttl != 48*time.Hour {
		t.Fatalf("expected ttl 48h, got %v", ttl)
	}

	got, err := s.Get(ctx, "tok")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Email != rec.Email || got.WorkshopSlug != rec.WorkshopSlug || !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := s.Delete(ctx, "tok"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := s.Get(ctx, "tok"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisSubscriberStore_CreateIsOnce(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	s := NewRedisSubscriberStore(rdb)
	ctx := context.Background()

	sub := model.Subscriber{ID: "1", Email: "alice@example.com", WorkshopSlug: "ts-101"}

	ok, err := s.Create(ctx, sub, time.Hour)
	if err != nil || !ok {
		t.Fatalf("first Create() = %v, %v", ok, err)
	}
	ok, err = s.Create(ctx, sub, time.Hour)
	if err != nil || ok {
		t.Fatalf("second Create() = %v, %v; expected false", ok, err)
	}

	exists, err := s.Exists(ctx, "ts-101", "ALICE@example.com")
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v", exists, err)
	}
	if ttl := mr.TTL(SubscriberKey("ts-101", "alice@example.com")); ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", ttl)
	}

	if err := s.Put(ctx, sub, 2*time.Hour); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := s.Delete(ctx, "ts-101", "alice@example.com"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	exists, _ = s.Exists(ctx, "ts-101", "alice@example.com")
	if exists {
		t.Fatalf("expected subscriber removed")
	}
}

func newDelivery(key string, sendAt time.Time) model.Delivery {
	return model.Delivery{
		Key:           key,
		EnrollmentID:  "enr-1",
		Email:         "alice@example.com",
		FirstName:     "Alice",
		WorkshopSlug:  "ts-101",
		WorkshopTitle: "TypeScript 101",
		LessonKey:     strings.TrimPrefix(key, "d:"),
		LessonIndex:   0,
		Subject:       "Welcome",
		HTML:          "<p>hi</p>",
		SendAt:        sendAt,
		State:         model.Pending,
		CreatedAt:     sendAt,
		UpdatedAt:     sendAt,
	}
}

func TestRedisDeliveryStore_ScheduleAndDue(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	q := NewRedisQueue(rdb, "")
	s := NewRedisDeliveryStore(rdb, q)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ds := []model.Delivery{
		newDelivery("d:b", t0.Add(24*time.Hour)),
		newDelivery("d:a", t0),
		newDelivery("d:c", t0.Add(72*time.Hour)),
	}
	if err := s.Schedule(ctx, ds); err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}

	n, err := q.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count() = %d, %v", n, err)
	}

	due, err := q.Due(ctx, t0, 10)
	if err != nil {
		t.Fatalf("Due() error: %v", err)
	}
	if len(due) != 1 || due[0].DeliveryKey != "d:a" || !due[0].SendAt.Equal(t0) {
		t.Fatalf("unexpected due set: %v", due)
	}

	due, _ = q.Due(ctx, t0.Add(100*time.Hour), 2)
	if len(due) != 2 || due[0].DeliveryKey != "d:a" || due[1].DeliveryKey != "d:b" {
		t.Fatalf("expected ascending due with limit, got %v", due)
	}

	got, err := s.Get(ctx, "d:b")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.State != model.Pending || !got.SendAt.Equal(t0.Add(24*time.Hour)) || got.HTML != "<p>hi</p>" {
		t.Fatalf("unexpected delivery: %+v", got)
	}

	entries, err := q.Entries(ctx)
	if err != nil || len(entries) != 3 {
		t.Fatalf("Entries() = %v, %v", entries, err)
	}
	if !entries[2].SendAt.Equal(t0.Add(72 * time.Hour)) {
		t.Fatalf("unexpected last entry: %+v", entries[2])
	}
}

func TestRedisDeliveryStore_ClaimTransitions(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	q := NewRedisQueue(rdb, "")
	s := NewRedisDeliveryStore(rdb, q)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	lease := 10 * time.Minute
	if err := s.Schedule(ctx, []model.Delivery{newDelivery("d:a", t0)}); err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}

	res, err := s.Claim(ctx, "d:missing", t0, lease)
	if err != nil || res != ClaimMissing {
		t.Fatalf("Claim(missing) = %q, %v", res, err)
	}

	res, err = s.Claim(ctx, "d:a", t0, lease)
	if err != nil || res != ClaimAcquired {
		t.Fatalf("first Claim() = %q, %v", res, err)
	}
	res, _ = s.Claim(ctx, "d:a", t0.Add(time.Minute), lease)
	if res != ClaimBusy {
		t.Fatalf("expected busy inside lease, got %q", res)
	}
	res, _ = s.Claim(ctx, "d:a", t0.Add(lease+time.Second), lease)
	if res != ClaimAcquired {
		t.Fatalf("expected reclaim after lease, got %q", res)
	}

	got, _ := s.Get(ctx, "d:a")
	if got.State != model.Sending || got.Attempts != 2 || got.ClaimedAt == nil {
		t.Fatalf("unexpected delivery after claims: %+v", got)
	}

	sentAt := t0.Add(lease + 2*time.Second)
	if err := s.MarkSent(ctx, "d:a", sentAt); err != nil {
		t.Fatalf("MarkSent() error: %v", err)
	}
	res, _ = s.Claim(ctx, "d:a", sentAt, lease)
	if res != ClaimSent {
		t.Fatalf("expected sent, got %q", res)
	}
	if n, _ := q.Count(ctx); n != 0 {
		t.Fatalf("expected queue emptied by MarkSent, got %d", n)
	}
	got, _ = s.Get(ctx, "d:a")
	if got.SentAt == nil || !got.SentAt.Equal(sentAt) {
		t.Fatalf("expected sentAt recorded, got %+v", got.SentAt)
	}
}

func TestRedisDeliveryStore_MarkFailedRearms(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	q := NewRedisQueue(rdb, "")
	s := NewRedisDeliveryStore(rdb, q)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	_ = s.Schedule(ctx, []model.Delivery{newDelivery("d:a", t0)})
	_, _ = s.Claim(ctx, "d:a", t0, time.Minute)

	retryAt := t0.Add(time.Hour)
	if err := s.MarkFailed(ctx, "d:a", "provider down", t0, retryAt); err != nil {
		t.Fatalf("MarkFailed() error: %v", err)
	}

	got, _ := s.Get(ctx, "d:a")
	if got.State != model.Failed || got.LastError != "provider down" || !got.SendAt.Equal(retryAt) {
		t.Fatalf("unexpected failed delivery: %+v", got)
	}

	due, _ := q.Due(ctx, t0.Add(30*time.Minute), 10)
	if len(due) != 0 {
		t.Fatalf("expected nothing due before retry, got %v", due)
	}
	due, _ = q.Due(ctx, retryAt, 10)
	if len(due) != 1 {
		t.Fatalf("expected retry due, got %v", due)
	}

	res, _ := s.Claim(ctx, "d:a", retryAt, time.Minute)
	if res != ClaimAcquired {
		t.Fatalf("expected failed delivery claimable, got %q", res)
	}
}

func TestRedisDeliveryStore_Delete(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	q := NewRedisQueue(rdb, "")
	s := NewRedisDeliveryStore(rdb, q)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	_ = s.Schedule(ctx, []model.Delivery{newDelivery("d:a", t0), newDelivery("d:b", t0)})

	if err := s.Delete(ctx, "d:a", "d:b"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if mr.Exists("d:a") || mr.Exists("d:b") {
		t.Fatalf("expected records removed")
	}
	if n, _ := q.Count(ctx); n != 0 {
		t.Fatalf("expected queue emptied, got %d", n)
	}
	if _, err := s.Get(ctx, "d:a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisFailureLog_NewestFirstAndCapped(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	l := NewRedisFailureLog(rdb, "")
	ctx := context.Background()

	for i := 0; i < failureLogCap+5; i++ {
		f := model.EnrollmentFailure{ID: string(rune('a' + i%26)), Email: "x@example.com", Error: "boom"}
		if err := l.Record(ctx, f); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}
	n, _ := rdb.LLen(ctx, DefaultFailureLogKey).Result()
	if n != failureLogCap {
		t.Fatalf("expected cap %d, got %d", failureLogCap, n)
	}

	_ = l.Record(ctx, model.EnrollmentFailure{ID: "latest", Error: "boom"})
	got, err := l.List(ctx, 3)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 3 || got[0].ID != "latest" {
		t.Fatalf("expected newest first, got %+v", got)
	}
}
