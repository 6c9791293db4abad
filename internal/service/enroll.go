package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LeventeLantos/workshop-drip/internal/metrics"
	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/LeventeLantos/workshop-drip/internal/render"
	"github.com/LeventeLantos/workshop-drip/internal/store"
	"github.com/google/uuid"
)

type EnrollRequest struct {
	Email         string `json:"email"`
	FirstName     string `json:"firstName,omitempty"`
	WorkshopSlug  string `json:"workshopSlug"`
	ForceReEnroll bool   `json:"forceReEnroll,omitempty"`
}

// Enroller is the subscriber registry: it turns a confirmed address into a
// subscriber record plus one scheduled delivery per lesson.
type Enroller struct {
	resolver    SequenceResolver
	subscribers store.SubscriberStore
	deliveries  store.DeliveryStore
	renderer    LessonRenderer
	ttl         time.Duration

	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewEnroller(
	resolver SequenceResolver,
	subscribers store.SubscriberStore,
	deliveries store.DeliveryStore,
	renderer LessonRenderer,
	subscriberTTL time.Duration,
) *Enroller {
	return &Enroller{
		resolver:    resolver,
		subscribers: subscribers,
		deliveries:  deliveries,
		renderer:    renderer,
		ttl:         subscriberTTL,
		now:         time.Now,
		logger:      slog.Default(),
	}
}

func (e *Enroller) WithClock(now func() time.Time) *Enroller {
	e.now = now
	return e
}

func (e *Enroller) WithLogger(l *slog.Logger) *Enroller {
	e.logger = l
	return e
}

func (e *Enroller) WithMetrics(m *metrics.Metrics) *Enroller {
	e.metrics = m
	return e
}

func (e *Enroller) Enroll(ctx context.Context, req EnrollRequest) (model.EnrollResult, error) {
	res, err := e.enroll(ctx, req)
	if e.metrics != nil {
		label := string(res.Status)
		if err != nil {
			label = "error"
		}
		e.metrics.Enrollments.WithLabelValues(label).Inc()
	}
	return res, err
}

func (e *Enroller) enroll(ctx context.Context, req EnrollRequest) (model.EnrollResult, error) {
	slug := strings.TrimSpace(req.WorkshopSlug)
	if slug == "" {
		return skipped(model.SkipMissingWorkshopSlug), nil
	}
	email := store.NormalizeEmail(req.Email)

	if !req.ForceReEnroll {
		exists, err := e.subscribers.Exists(ctx, slug, email)
		if err != nil {
			return model.EnrollResult{}, fmt.Errorf("check subscriber: %w", err)
		}
		if exists {
			return model.EnrollResult{Status: model.EnrollExists}, nil
		}
	}

	seq, err := e.resolver.Resolve(ctx, slug)
	if err != nil {
		return model.EnrollResult{}, err
	}
	if seq == nil {
		return skipped(model.SkipNoSequence), nil
	}
	if len(seq.Lessons) == 0 {
		return skipped(model.SkipEmptySequence), nil
	}

	if req.ForceReEnroll {
		keys := make([]string, len(seq.Lessons))
		for i, l := range seq.Lessons {
			keys[i] = store.DeliveryKey(slug, email, l.Key)
		}
		if err := e.deliveries.Delete(ctx, keys...); err != nil {
			return model.EnrollResult{}, fmt.Errorf("clear previous deliveries: %w", err)
		}
	}

	enrolledAt := e.now().UTC()
	enrollmentID := uuid.NewString()

	deliveries, err := e.buildDeliveries(seq, slug, email, req.FirstName, enrollmentID, enrolledAt)
	if err != nil {
		return model.EnrollResult{}, err
	}

	sub := model.Subscriber{
		ID:           enrollmentID,
		Email:        email,
		FirstName:    req.FirstName,
		WorkshopSlug: slug,
		EnrolledAt:   enrolledAt,
	}
	if req.ForceReEnroll {
		if err := e.subscribers.Put(ctx, sub, e.ttl); err != nil {
			return model.EnrollResult{}, fmt.Errorf("store subscriber: %w", err)
		}
	} else {
		created, err := e.subscribers.Create(ctx, sub, e.ttl)
		if err != nil {
			return model.EnrollResult{}, fmt.Errorf("store subscriber: %w", err)
		}
		if !created {
			return model.EnrollResult{Status: model.EnrollExists}, nil
		}
	}

	if err := e.deliveries.Schedule(ctx, deliveries); err != nil {
		if derr := e.subscribers.Delete(ctx, slug, email); derr != nil {
			e.logger.Error("rollback subscriber failed", "workshop", slug, "error", derr)
		}
		return model.EnrollResult{}, err
	}

	e.logger.Info("subscriber enrolled",
		"workshop", slug,
		"enrollment_id", enrollmentID,
		"lessons", len(deliveries),
		"test_cadence", seq.IsTest,
		"forced", req.ForceReEnroll,
	)
	return model.EnrollResult{Status: model.EnrollQueued, Count: len(deliveries), IsTest: seq.IsTest}, nil
}

func (e *Enroller) buildDeliveries(seq *model.Sequence, slug, email, firstName, enrollmentID string, enrolledAt time.Time) ([]model.Delivery, error) {
	offsets := make([]int, len(seq.Lessons))
	for i, l := range seq.Lessons {
		offsets[i] = l.SendOffsetDays
	}
	times := ScheduleTimes(enrolledAt, offsets, seq.IsTest)

	out := make([]model.Delivery, 0, len(seq.Lessons))
	for i, l := range seq.Lessons {
		html, err := e.renderer.Lesson(render.Lesson{
			FirstName:     firstName,
			WorkshopTitle: seq.WorkshopTitle,
			WorkshopImage: seq.WorkshopImage,
			Subject:       l.Subject,
			Preheader:     l.Preheader,
			Summary:       l.Summary,
			Content:       l.Content,
			PostSlug:      l.PostSlug,
			LessonNumber:  i + 1,
			LessonCount:   len(seq.Lessons),
		})
		if err != nil {
			return nil, fmt.Errorf("lesson %s: %w", l.Key, err)
		}

		out = append(out, model.Delivery{
			Key:           store.DeliveryKey(slug, email, l.Key),
			EnrollmentID:  enrollmentID,
			Email:         email,
			FirstName:     firstName,
			WorkshopSlug:  slug,
			WorkshopTitle: seq.WorkshopTitle,
			LessonKey:     l.Key,
			LessonIndex:   i,
			Subject:       l.Subject,
			Preheader:     l.Preheader,
			HTML:          html,
			SendAt:        times[i],
			State:         model.Pending,
			CreatedAt:     enrolledAt,
			UpdatedAt:     enrolledAt,
		})
	}
	return out, nil
}

func skipped(reason string) model.EnrollResult {
	return model.EnrollResult{Status: model.EnrollSkipped, Reason: reason}
}
