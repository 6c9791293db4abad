// Package store holds the Redis-backed durable state of the drip engine:
// opt-in tokens, subscribers, delivery records, the delivery queue and the
// enrollment failure log. Every call re-reads Redis; nothing is cached in
// process.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/LeventeLantos/workshop-drip/internal/model"
)

var ErrNotFound = errors.New("store: not found")

type ClaimResult string

const (
	ClaimAcquired ClaimResult = "claimed"
	ClaimSent     ClaimResult = "sent"
	ClaimBusy     ClaimResult = "busy"
	ClaimMissing  ClaimResult = "missing"
)

type OptInStore interface {
	Put(ctx context.Context, rec model.OptInRecord, ttl time.Duration) error
	Get(ctx context.Context, token string) (model.OptInRecord, error)
	Delete(ctx context.Context, token string) error
}

type SubscriberStore interface {
	Exists(ctx context.Context, workshopSlug, email string) (bool, error)
	Create(ctx context.Context, sub model.Subscriber, ttl time.Duration) (bool, error)
	Put(ctx context.Context, sub model.Subscriber, ttl time.Duration) error
	Delete(ctx context.Context, workshopSlug, email string) error
}

type DeliveryStore interface {
	Schedule(ctx context.Context, deliveries []model.Delivery) error
	Get(ctx context.Context, key string) (model.Delivery, error)
	Claim(ctx context.Context, key string, now time.Time, lease time.Duration) (ClaimResult, error)
	MarkSent(ctx context.Context, key string, sentAt time.Time) error
	MarkFailed(ctx context.Context, key string, reason string, now, retryAt time.Time) error
	Delete(ctx context.Context, keys ...string) error
}

type Queue interface {
	Insert(ctx context.Context, deliveryKey string, sendAt time.Time) error
	Due(ctx context.Context, now time.Time, limit int) ([]QueueItem, error)
	Remove(ctx context.Context, deliveryKey string) error
	Count(ctx context.Context) (int64, error)
	Entries(ctx context.Context) ([]QueueItem, error)
}

type QueueItem struct {
	DeliveryKey string
	SendAt      time.Time
}

type FailureLog interface {
	Record(ctx context.Context, f model.EnrollmentFailure) error
	List(ctx context.Context, limit int) ([]model.EnrollmentFailure, error)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailHash keeps raw addresses out of key names.
func EmailHash(email string) string {
	h := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(h[:])
}

func OptInKey(token string) string {
	return "optin:" + token
}

func SubscriberKey(workshopSlug, email string) string {
	return "subscriber:" + workshopSlug + ":" + EmailHash(email)
}

// DeliveryKey is deterministic so a re-enrollment can find and clear the
// records of a previous run from the current sequence alone.
func DeliveryKey(workshopSlug, email, lessonKey string) string {
	return "delivery:" + workshopSlug + ":" + EmailHash(email) + ":" + lessonKey
}
