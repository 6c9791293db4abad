package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	AdminAPIKey string
	Metrics     http.Handler
	// Middleware runs after RequestID and RealIP, before Recoverer.
	Middleware []func(http.Handler) http.Handler
}

func Router(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	for _, mw := range opts.Middleware {
		r.Use(mw)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/v1/health", h.Health)

	r.Post("/v1/optin", h.StartOptIn)
	r.Get("/v1/optin/confirm", h.ConfirmOptIn)

	r.Group(func(r chi.Router) {
		r.Use(requireBearer(opts.AdminAPIKey))

		r.Post("/v1/drip/process", h.Process)
		r.Get("/v1/drip/queue", h.Queue)
		r.Post("/v1/drip/enroll", h.Enroll)
		r.Get("/v1/drip/enroll-failures", h.EnrollFailures)

		r.Get("/v1/scheduler/status", h.SchedulerStatus)
		r.Post("/v1/scheduler/start", h.SchedulerStart)
		r.Post("/v1/scheduler/stop", h.SchedulerStop)
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("workshop-drip"))
	})

	return r
}

// requireBearer rejects every request when key is empty.
func requireBearer(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				respondErr(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
