// Package scheduler triggers queue processing on a fixed interval inside the
// server process. It is optional; external triggers keep working alongside.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxBurst caps back-to-back passes within one tick.
const DefaultMaxBurst = 10

// TickFunc runs one pass. more reports that the pass filled its batch and
// another pass should follow right away.
type TickFunc func(ctx context.Context) (more bool, err error)

type Status struct {
	Running    bool      `json:"running"`
	Interval   string    `json:"interval"`
	Ticks      int64     `json:"ticks"`
	LastTickAt time.Time `json:"lastTickAt,omitzero"`
	LastError  string    `json:"lastError,omitempty"`
}

type Scheduler struct {
	interval time.Duration
	tickFn   TickFunc
	maxBurst int

	running atomic.Bool
	ticks   atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	lastMu    sync.Mutex
	lastTick  time.Time
	lastError string
}

func New(interval time.Duration, tickFn TickFunc) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	return &Scheduler{
		interval: interval,
		tickFn:   tickFn,
		maxBurst: DefaultMaxBurst,
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) WithMaxBurst(n int) *Scheduler {
	if n > 0 {
		s.maxBurst = n
	}
	return s
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("drip scheduler started", "interval", s.interval.String())

		s.tick(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("drip scheduler stopping")
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("drip scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Status() Status {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return Status{
		Running:    s.running.Load(),
		Interval:   s.interval.String(),
		Ticks:      s.ticks.Load(),
		LastTickAt: s.lastTick,
		LastError:  s.lastError,
	}
}

// tick repeats the pass while it reports more work, up to maxBurst.
func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()
	passes := 0
	for passes < s.maxBurst {
		if ctx.Err() != nil {
			break
		}
		passes++
		more, err := s.safePass(ctx)
		s.record(err)
		if err != nil || !more {
			break
		}
	}
	s.ticks.Add(1)
	slog.Info("drip scheduler tick completed",
		"passes", passes,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Scheduler) safePass(ctx context.Context) (more bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("drip scheduler pass panic recovered", "panic", r)
			more, err = false, errors.New("pass panicked")
		}
	}()
	return s.tickFn(ctx)
}

func (s *Scheduler) record(err error) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.lastTick = time.Now().UTC()
	if err != nil {
		s.lastError = err.Error()
		slog.Error("drip scheduler pass failed", "error", err)
		return
	}
	s.lastError = ""
}
