package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/LeventeLantos/workshop-drip/internal/metrics"
	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/LeventeLantos/workshop-drip/internal/store"
)

const DefaultProcessLimit = 50

// Processor drains due deliveries. Sends within one pass run sequentially in
// ascending due order. Overlapping passes are safe: a delivery can only be
// claimed once per lease.
type Processor struct {
	deliveries store.DeliveryStore
	queue      store.Queue
	mailer     Mailer

	retryDelay time.Duration
	lease      time.Duration

	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewProcessor(deliveries store.DeliveryStore, queue store.Queue, mailer Mailer) *Processor {
	return &Processor{
		deliveries: deliveries,
		queue:      queue,
		mailer:     mailer,
		retryDelay: time.Hour,
		lease:      10 * time.Minute,
		now:        time.Now,
		logger:     slog.Default(),
	}
}

func (p *Processor) WithRetryDelay(d time.Duration) *Processor {
	p.retryDelay = d
	return p
}

func (p *Processor) WithLease(d time.Duration) *Processor {
	p.lease = d
	return p
}

func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

func (p *Processor) WithLogger(l *slog.Logger) *Processor {
	p.logger = l
	return p
}

func (p *Processor) WithMetrics(m *metrics.Metrics) *Processor {
	p.metrics = m
	return p
}

func (p *Processor) Process(ctx context.Context, limit int) (model.ProcessResult, error) {
	if limit <= 0 {
		limit = DefaultProcessLimit
	}

	var res model.ProcessResult

	due, err := p.queue.Due(ctx, p.now(), limit)
	if err != nil {
		return res, err
	}

	for _, key := range p.orderDue(ctx, due) {
		if err := ctx.Err(); err != nil {
			break
		}
		switch p.processOne(ctx, key) {
		case outcomeSent:
			res.Sent++
		case outcomeFailed:
			res.Failed++
		}
	}

	remaining, err := p.queue.Count(ctx)
	if err != nil {
		return res, err
	}
	res.Remaining = remaining
	if p.metrics != nil {
		p.metrics.QueueDepth.Set(float64(remaining))
	}
	return res, nil
}

// orderDue keeps the queue's time order and breaks ties between members that
// share a send time by recipient and lesson position. The sorted set alone
// would order them by key.
func (p *Processor) orderDue(ctx context.Context, due []store.QueueItem) []string {
	keys := make([]string, 0, len(due))
	for start := 0; start < len(due); {
		end := start + 1
		for end < len(due) && due[end].SendAt.Equal(due[start].SendAt) {
			end++
		}
		keys = append(keys, p.orderTie(ctx, due[start:end])...)
		start = end
	}
	return keys
}

type tieRank struct {
	key    string
	loaded bool
	email  string
	index  int
}

func (p *Processor) orderTie(ctx context.Context, group []store.QueueItem) []string {
	if len(group) == 1 {
		return []string{group[0].DeliveryKey}
	}

	ranks := make([]tieRank, len(group))
	for i, it := range group {
		ranks[i].key = it.DeliveryKey
		d, err := p.deliveries.Get(ctx, it.DeliveryKey)
		if err != nil {
			continue
		}
		ranks[i].loaded = true
		ranks[i].email = d.Email
		ranks[i].index = d.LessonIndex
	}

	// unreadable records go last; processOne sorts them out
	slices.SortStableFunc(ranks, func(a, b tieRank) int {
		if a.loaded != b.loaded {
			if a.loaded {
				return -1
			}
			return 1
		}
		return cmp.Or(cmp.Compare(a.email, b.email), cmp.Compare(a.index, b.index))
	})

	keys := make([]string, len(ranks))
	for i, r := range ranks {
		keys[i] = r.key
	}
	return keys
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

func (p *Processor) processOne(ctx context.Context, key string) outcome {
	now := p.now()
	claim, err := p.deliveries.Claim(ctx, key, now, p.lease)
	if err != nil {
		p.logger.Error("claim delivery failed", "delivery_key", key, "error", err)
		return outcomeSkipped
	}

	switch claim {
	case store.ClaimMissing:
		p.dropFromQueue(ctx, key)
		if p.metrics != nil {
			p.metrics.DeliveriesOrphaned.Inc()
		}
		p.logger.Info("orphaned queue entry removed", "delivery_key", key)
		return outcomeSkipped
	case store.ClaimSent:
		p.dropFromQueue(ctx, key)
		return outcomeSkipped
	case store.ClaimBusy:
		return outcomeSkipped
	}

	d, err := p.deliveries.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		p.dropFromQueue(ctx, key)
		return outcomeSkipped
	}
	if err != nil {
		p.logger.Error("load delivery failed", "delivery_key", key, "error", err)
		return outcomeSkipped
	}

	log := p.logger.With("delivery_key", key, "workshop", d.WorkshopSlug, "attempt", d.Attempts)

	subject := d.Subject
	if d.WorkshopTitle != "" {
		subject = d.WorkshopTitle + ": " + d.Subject
	}

	if _, err := p.mailer.Send(ctx, d.Email, subject, d.HTML); err != nil {
		failedAt := p.now()
		retryAt := failedAt.Add(p.retryDelay)
		if merr := p.deliveries.MarkFailed(ctx, key, err.Error(), failedAt, retryAt); merr != nil {
			log.Error("mark failed failed", "error", merr)
		}
		if p.metrics != nil {
			p.metrics.DeliveriesFailed.Inc()
		}
		log.Warn("lesson send failed", "error", err, "retry_at", retryAt)
		return outcomeFailed
	}

	if err := p.markSent(ctx, key); err != nil {
		log.Error("lesson sent but not marked; it will be sent again when the lease expires",
			"error", err, "lease", p.lease)
	}
	if p.metrics != nil {
		p.metrics.DeliveriesSent.Inc()
	}
	log.Info("lesson sent")
	return outcomeSent
}

// markSent retries once; a delivery left in sending is resent after its lease.
func (p *Processor) markSent(ctx context.Context, key string) error {
	err := p.deliveries.MarkSent(ctx, key, p.now())
	if err == nil {
		return nil
	}
	p.logger.Warn("mark sent failed, retrying", "delivery_key", key, "error", err)
	return p.deliveries.MarkSent(ctx, key, p.now())
}

func (p *Processor) dropFromQueue(ctx context.Context, key string) {
	if err := p.queue.Remove(ctx, key); err != nil {
		p.logger.Error("queue remove failed", "delivery_key", key, "error", err)
	}
}

// Inspect lists the whole queue with due flags. It never writes.
func (p *Processor) Inspect(ctx context.Context) ([]model.QueueEntry, error) {
	items, err := p.queue.Entries(ctx)
	if err != nil {
		return nil, err
	}

	now := p.now()
	out := make([]model.QueueEntry, 0, len(items))
	for _, it := range items {
		e := model.QueueEntry{
			DeliveryKey: it.DeliveryKey,
			SendAt:      it.SendAt,
			Due:         !it.SendAt.After(now),
		}
		if !e.Due {
			e.Delay = it.SendAt.Sub(now)
			e.DelayMillis = e.Delay.Milliseconds()
		}

		d, err := p.deliveries.Get(ctx, it.DeliveryKey)
		switch {
		case errors.Is(err, store.ErrNotFound):
			e.Missing = true
		case err != nil:
			return nil, err
		default:
			e.State = d.State
			e.Email = d.Email
			e.Subject = d.Subject
			e.Attempts = d.Attempts
		}
		out = append(out, e)
	}
	return out, nil
}
