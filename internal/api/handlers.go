package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/LeventeLantos/workshop-drip/internal/scheduler"
	"github.com/LeventeLantos/workshop-drip/internal/service"
	"github.com/go-chi/chi/v5/middleware"
)

const maxProcessLimit = 500

type OptInFlow interface {
	Start(ctx context.Context, req service.StartRequest) (service.StartResult, error)
	Confirm(ctx context.Context, token string) model.ConfirmResult
}

type Drip interface {
	Process(ctx context.Context, limit int) (model.ProcessResult, error)
	Inspect(ctx context.Context) ([]model.QueueEntry, error)
}

type FailureLister interface {
	List(ctx context.Context, limit int) ([]model.EnrollmentFailure, error)
}

// Redirects are the pages a confirmation link lands on.
type Redirects struct {
	Success string
	Error   string
	Invalid string
}

type Handler struct {
	optin     OptInFlow
	drip      Drip
	enroller  service.SubscriberEnroller
	failures  FailureLister
	sched     *scheduler.Scheduler
	redirects Redirects
	batchSize int
	logger    *slog.Logger
}

func NewHandler(
	optin OptInFlow,
	drip Drip,
	enroller service.SubscriberEnroller,
	failures FailureLister,
	sched *scheduler.Scheduler,
	redirects Redirects,
	batchSize int,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = service.DefaultProcessLimit
	}
	return &Handler{
		optin:     optin,
		drip:      drip,
		enroller:  enroller,
		failures:  failures,
		sched:     sched,
		redirects: redirects,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) StartOptIn(w http.ResponseWriter, r *http.Request) {
	var req service.StartRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.optin.Start(r.Context(), req)
	var ve *service.ValidationError
	var ede *service.EmailDeliveryError
	switch {
	case errors.As(err, &ve):
		respondErr(w, http.StatusBadRequest, ve.Error())
	case errors.As(err, &ede):
		h.logger.Error("confirmation email failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		respondErr(w, http.StatusBadGateway, "could not send confirmation email")
	case err != nil:
		h.respondInternalErr(w, r, err)
	default:
		respond(w, http.StatusAccepted, res)
	}
}

// ConfirmOptIn redirects a browser to the outcome page. Clients asking for
// JSON get the result as a body instead.
func (h *Handler) ConfirmOptIn(w http.ResponseWriter, r *http.Request) {
	res := h.optin.Confirm(r.Context(), r.URL.Query().Get("token"))

	if wantsJSON(r) {
		status := http.StatusOK
		switch res.Status {
		case model.ConfirmInvalid:
			status = http.StatusGone
		case model.ConfirmError:
			status = http.StatusBadGateway
		}
		respond(w, status, res)
		return
	}

	target := h.redirects.Success
	switch res.Status {
	case model.ConfirmInvalid:
		target = h.redirects.Invalid
	case model.ConfirmError:
		target = h.redirects.Error
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), h.batchSize)
	if limit <= 0 {
		limit = h.batchSize
	}
	if limit > maxProcessLimit {
		limit = maxProcessLimit
	}

	res, err := h.drip.Process(r.Context(), limit)
	if err != nil {
		h.respondInternalErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.drip.Inspect(r.Context())
	if err != nil {
		h.respondInternalErr(w, r, err)
		return
	}
	due := 0
	for _, e := range entries {
		if e.Due {
			due++
		}
	}
	respond(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"due":     due,
		"entries": entries,
	})
}

func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req service.EnrollRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		respondErr(w, http.StatusBadRequest, "email is required")
		return
	}

	res, err := h.enroller.Enroll(r.Context(), req)
	if err != nil {
		h.respondInternalErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) EnrollFailures(w http.ResponseWriter, r *http.Request) {
	items, err := h.failures.List(r.Context(), parseInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		h.respondInternalErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	respond(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	respond(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func respondErr(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

func (h *Handler) respondInternalErr(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("internal error",
		"error", err,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	respondErr(w, http.StatusInternalServerError, "internal server error")
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
