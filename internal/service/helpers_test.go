package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/LeventeLantos/workshop-drip/internal/render"
	"github.com/LeventeLantos/workshop-drip/internal/repo"
	"github.com/LeventeLantos/workshop-drip/internal/service"
	"github.com/LeventeLantos/workshop-drip/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeWorkshops struct {
	mu        sync.Mutex
	workshops map[string]model.Workshop
	err       error
}

func (f *fakeWorkshops) GetWorkshop(ctx context.Context, slug string) (model.Workshop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Workshop{}, f.err
	}
	w, ok := f.workshops[slug]
	if !ok {
		return model.Workshop{}, repo.ErrWorkshopNotFound
	}
	return w, nil
}

func (f *fakeWorkshops) put(w model.Workshop) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.workshops == nil {
		f.workshops = map[string]model.Workshop{}
	}
	f.workshops[w.Slug] = w
}

type sentEmail struct {
	To, Subject, HTML string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, html string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, HTML: html})
	return "msg", nil
}

func (m *fakeMailer) calls() []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEmail(nil), m.sent...)
}

func (m *fakeMailer) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type fakeLists struct {
	mu    sync.Mutex
	added []string
	err   error
}

func (l *fakeLists) AddContact(ctx context.Context, audienceID, email, firstName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.added = append(l.added, audienceID+"|"+email)
	return nil
}

type failingSchedule struct {
	store.DeliveryStore
}

func (failingSchedule) Schedule(ctx context.Context, ds []model.Delivery) error {
	return errors.New("redis down")
}

func intp(v int) *int { return &v }

func typescript101() model.Workshop {
	body := func(s string) []model.Block {
		return []model.Block{{Type: model.BlockParagraph, Text: s}}
	}
	return model.Workshop{
		Slug:  "typescript-101",
		Title: "TypeScript 101",
		Lessons: []model.AuthoredLesson{
			{Key: "welcome", Subject: "Welcome", SendOffsetDays: intp(0), Content: body("one")},
			{Key: "narrowing", Subject: "Narrowing", SendOffsetDays: intp(1), Content: body("two")},
			{Key: "generics", Subject: "Generics", SendOffsetDays: intp(3), Content: body("three")},
		},
	}
}

type harness struct {
	mr          *miniredis.Miniredis
	rdb         *redis.Client
	clock       *clock
	workshops   *fakeWorkshops
	mailer      *fakeMailer
	lists       *fakeLists
	optins      *store.RedisOptInStore
	subscribers *store.RedisSubscriberStore
	queue       *store.RedisQueue
	deliveries  *store.RedisDeliveryStore
	failures    *store.RedisFailureLog
	renderer    *render.Renderer
	enroller    *service.Enroller
	processor   *service.Processor
	orch        *service.Orchestrator
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		mr:          mr,
		rdb:         rdb,
		clock:       &clock{t: t0},
		workshops:   &fakeWorkshops{},
		mailer:      &fakeMailer{},
		lists:       &fakeLists{},
		optins:      store.NewRedisOptInStore(rdb),
		subscribers: store.NewRedisSubscriberStore(rdb),
		renderer:    render.New("https://example.dev"),
	}
	h.queue = store.NewRedisQueue(rdb, "")
	h.deliveries = store.NewRedisDeliveryStore(rdb, h.queue)
	h.failures = store.NewRedisFailureLog(rdb, "")
	h.workshops.put(typescript101())

	h.enroller = service.NewEnroller(
		service.NewResolver(h.workshops),
		h.subscribers,
		h.deliveries,
		h.renderer,
		90*24*time.Hour,
	).WithClock(h.clock.Now).WithLogger(quietLogger())

	h.processor = service.NewProcessor(h.deliveries, h.queue, h.mailer).
		WithClock(h.clock.Now).
		WithLogger(quietLogger())

	h.orch = service.NewOrchestrator(
		h.optins,
		h.mailer,
		h.lists,
		h.enroller,
		h.failures,
		h.renderer,
		"https://example.dev/v1/optin/confirm",
	).WithClock(h.clock.Now).WithWorkshops(h.workshops).WithLogger(quietLogger())

	return h
}

func (h *harness) queueLen(t *testing.T) int64 {
	t.Helper()
	n, err := h.queue.Count(context.Background())
	if err != nil {
		t.Fatalf("queue count: %v", err)
	}
	return n
}
