package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeventeLantos/workshop-drip/internal/api"
	"github.com/LeventeLantos/workshop-drip/internal/client"
	"github.com/LeventeLantos/workshop-drip/internal/config"
	"github.com/LeventeLantos/workshop-drip/internal/metrics"
	"github.com/LeventeLantos/workshop-drip/internal/render"
	"github.com/LeventeLantos/workshop-drip/internal/repo"
	"github.com/LeventeLantos/workshop-drip/internal/scheduler"
	"github.com/LeventeLantos/workshop-drip/internal/service"
	"github.com/LeventeLantos/workshop-drip/internal/store"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	logger := newLogger(os.Getenv("ENV"))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadAll()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("workshop-drip starting",
		"env", cfg.Env,
		"addr", cfg.Server.Address,
		"scheduler", cfg.Scheduler.Enabled,
		"interval", cfg.Scheduler.Interval.String(),
		"batch", cfg.Drip.BatchSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	workshops, closeContent, err := openContent(ctx, cfg)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}
	defer closeContent()

	m := metrics.New()
	renderer := render.New(cfg.Site.URL)
	resend := client.NewResendClient(cfg.Resend.BaseURL, cfg.Resend.APIKey, cfg.Resend.From)

	queue := store.NewRedisQueue(rdb, "")
	deliveries := store.NewRedisDeliveryStore(rdb, queue)
	failures := store.NewRedisFailureLog(rdb, "")

	enroller := service.NewEnroller(
		service.NewResolver(workshops),
		store.NewRedisSubscriberStore(rdb),
		deliveries,
		renderer,
		cfg.Drip.SubscriberTTL,
	).WithLogger(logger).WithMetrics(m)

	processor := service.NewProcessor(deliveries, queue, resend).
		WithRetryDelay(cfg.Drip.RetryDelay).
		WithLease(cfg.Drip.SendingLease).
		WithLogger(logger).
		WithMetrics(m)

	orch := service.NewOrchestrator(
		store.NewRedisOptInStore(rdb),
		resend,
		resend,
		enroller,
		failures,
		renderer,
		cfg.Site.ConfirmURL,
	).WithTTL(cfg.Drip.OptInTTL).WithWorkshops(workshops).WithLogger(logger).WithMetrics(m)

	sched, err := scheduler.New(cfg.Scheduler.Interval, func(ctx context.Context) (bool, error) {
		res, err := processor.Process(ctx, cfg.Drip.BatchSize)
		if err != nil {
			return false, err
		}
		return res.Sent+res.Failed >= cfg.Drip.BatchSize && res.Remaining > 0, nil
	})
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if cfg.Scheduler.Enabled {
		sched.Start()
	}
	defer sched.Stop()

	h := api.NewHandler(orch, processor, enroller, failures, sched, api.Redirects{
		Success: cfg.Site.SuccessURL,
		Error:   cfg.Site.ErrorURL,
		Invalid: cfg.Site.InvalidURL,
	}, cfg.Drip.BatchSize, logger)

	srv := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.Router(h, api.RouterOptions{
			AdminAPIKey: cfg.Server.AdminAPIKey,
			Metrics:     m.Handler(),
			Middleware:  []func(http.Handler) http.Handler{loggingMiddleware},
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// openContent prefers Postgres and falls back to the JSON content file.
func openContent(ctx context.Context, cfg *config.Config) (repo.WorkshopRepository, func(), error) {
	if cfg.Database.PostgresURL == "" {
		slog.Info("content source", "kind", "file", "path", cfg.Database.ContentFile)
		return repo.NewFileWorkshopRepo(cfg.Database.ContentFile), func() {}, nil
	}

	pool, err := repo.NewPool(ctx, cfg.Database.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	r := repo.NewPostgresWorkshopRepo(pool)
	if err := r.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	slog.Info("content source", "kind", "postgres")
	return r, pool.Close, nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
