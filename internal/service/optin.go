package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/LeventeLantos/workshop-drip/internal/client"
	"github.com/LeventeLantos/workshop-drip/internal/metrics"
	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/LeventeLantos/workshop-drip/internal/render"
	"github.com/LeventeLantos/workshop-drip/internal/repo"
	"github.com/LeventeLantos/workshop-drip/internal/store"
	"github.com/google/uuid"
)

const (
	maxEmailLen     = 320
	maxFirstNameLen = 80
	DefaultOptInTTL = 48 * time.Hour
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type StartRequest struct {
	Email        string `json:"email"`
	FirstName    string `json:"firstName,omitempty"`
	WorkshopSlug string `json:"workshopSlug"`
	AudienceID   string `json:"audienceId"`
}

type StartResult struct {
	Token      string `json:"token"`
	ConfirmURL string `json:"confirmUrl"`
}

// Orchestrator runs the double opt-in: Start mails a single-use link, Confirm
// exchanges it for a list subscription and a drip enrollment.
type Orchestrator struct {
	optins    store.OptInStore
	mailer    Mailer
	lists     ListProvider
	enroller  SubscriberEnroller
	failures  store.FailureLog
	renderer  ConfirmationRenderer
	workshops repo.WorkshopRepository

	confirmURL string
	ttl        time.Duration

	now     func() time.Time
	token   func() (string, error)
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewOrchestrator(
	optins store.OptInStore,
	mailer Mailer,
	lists ListProvider,
	enroller SubscriberEnroller,
	failures store.FailureLog,
	renderer ConfirmationRenderer,
	confirmURL string,
) *Orchestrator {
	return &Orchestrator{
		optins:     optins,
		mailer:     mailer,
		lists:      lists,
		enroller:   enroller,
		failures:   failures,
		renderer:   renderer,
		confirmURL: confirmURL,
		ttl:        DefaultOptInTTL,
		now:        time.Now,
		token:      newToken,
		logger:     slog.Default(),
	}
}

func (o *Orchestrator) WithTTL(d time.Duration) *Orchestrator {
	o.ttl = d
	return o
}

// WithWorkshops lets the confirmation email name the workshop.
func (o *Orchestrator) WithWorkshops(w repo.WorkshopRepository) *Orchestrator {
	o.workshops = w
	return o
}

func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

func (o *Orchestrator) WithTokenSource(fn func() (string, error)) *Orchestrator {
	o.token = fn
	return o
}

func (o *Orchestrator) WithLogger(l *slog.Logger) *Orchestrator {
	o.logger = l
	return o
}

func (o *Orchestrator) WithMetrics(m *metrics.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	email := store.NormalizeEmail(req.Email)
	if len(email) > maxEmailLen {
		return StartResult{}, &ValidationError{Field: "email", Reason: "too long"}
	}
	if !emailPattern.MatchString(email) {
		return StartResult{}, &ValidationError{Field: "email", Reason: "not an email address"}
	}
	audienceID := strings.TrimSpace(req.AudienceID)
	if audienceID == "" {
		return StartResult{}, &ValidationError{Field: "audienceId", Reason: "required"}
	}

	token, err := o.token()
	if err != nil {
		return StartResult{}, err
	}

	now := o.now().UTC()
	rec := model.OptInRecord{
		Token:        token,
		Email:        email,
		FirstName:    SanitizeFirstName(req.FirstName),
		WorkshopSlug: strings.TrimSpace(req.WorkshopSlug),
		AudienceID:   audienceID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(o.ttl),
	}

	link := o.confirmURL + "?token=" + url.QueryEscape(token)
	title := o.workshopTitle(ctx, rec.WorkshopSlug)

	html, err := o.renderer.Confirmation(render.Confirmation{
		FirstName:     rec.FirstName,
		WorkshopTitle: title,
		ConfirmURL:    link,
	})
	if err != nil {
		return StartResult{}, err
	}

	if err := o.optins.Put(ctx, rec, o.ttl); err != nil {
		return StartResult{}, err
	}

	if _, err := o.mailer.Send(ctx, email, render.ConfirmSubject(title), html); err != nil {
		if derr := o.optins.Delete(ctx, token); derr != nil {
			o.logger.Error("optin cleanup failed", "error", derr)
		}
		return StartResult{}, &EmailDeliveryError{Err: err}
	}

	if o.metrics != nil {
		o.metrics.OptInsStarted.Inc()
	}
	o.logger.Info("optin started", "workshop", rec.WorkshopSlug, "expires_at", rec.ExpiresAt)
	return StartResult{Token: token, ConfirmURL: link}, nil
}

func (o *Orchestrator) Confirm(ctx context.Context, token string) model.ConfirmResult {
	res := o.confirm(ctx, strings.TrimSpace(token))
	if o.metrics != nil {
		o.metrics.OptInsConfirmed.WithLabelValues(string(res.Status)).Inc()
	}
	return res
}

func (o *Orchestrator) confirm(ctx context.Context, token string) model.ConfirmResult {
	if token == "" {
		return model.ConfirmResult{Status: model.ConfirmInvalid}
	}

	rec, err := o.optins.Get(ctx, token)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		o.logger.Error("load optin failed", "error", err)
		return model.ConfirmResult{Status: model.ConfirmError, Message: "temporarily unavailable"}
	}
	if errors.Is(err, store.ErrNotFound) || rec.Expired(o.now()) {
		if derr := o.optins.Delete(ctx, token); derr != nil {
			o.logger.Warn("stale optin cleanup failed", "error", derr)
		}
		return model.ConfirmResult{Status: model.ConfirmInvalid}
	}

	err = o.lists.AddContact(ctx, rec.AudienceID, rec.Email, rec.FirstName)
	switch {
	case errors.Is(err, client.ErrAlreadySubscribed):
		o.logger.Info("contact already subscribed", "workshop", rec.WorkshopSlug)
	case err != nil:
		o.logger.Error("list subscription failed", "workshop", rec.WorkshopSlug, "error", err)
		return model.ConfirmResult{Status: model.ConfirmError, Message: err.Error()}
	}

	o.enroll(ctx, rec)

	if err := o.optins.Delete(ctx, token); err != nil {
		o.logger.Error("delete optin failed", "error", err)
	}
	return model.ConfirmResult{Status: model.ConfirmSuccess}
}

// enroll never fails the confirmation. Errors go to the log and the failure
// list for an operator to re-run.
func (o *Orchestrator) enroll(ctx context.Context, rec model.OptInRecord) {
	res, err := o.enroller.Enroll(ctx, EnrollRequest{
		Email:        rec.Email,
		FirstName:    rec.FirstName,
		WorkshopSlug: rec.WorkshopSlug,
	})
	if err == nil {
		o.logger.Info("confirm enrollment", "workshop", rec.WorkshopSlug, "status", res.Status, "reason", res.Reason, "count", res.Count)
		return
	}

	o.logger.Error("drip enrollment failed", "workshop", rec.WorkshopSlug, "error", err)
	if o.failures == nil {
		return
	}
	ferr := o.failures.Record(ctx, model.EnrollmentFailure{
		ID:           uuid.NewString(),
		Email:        rec.Email,
		FirstName:    rec.FirstName,
		WorkshopSlug: rec.WorkshopSlug,
		Error:        err.Error(),
		At:           o.now().UTC(),
	})
	if ferr != nil {
		o.logger.Error("record enrollment failure failed", "error", ferr)
	}
}

func (o *Orchestrator) workshopTitle(ctx context.Context, slug string) string {
	if o.workshops == nil || slug == "" {
		return ""
	}
	w, err := o.workshops.GetWorkshop(ctx, slug)
	if err != nil {
		return ""
	}
	return w.Title
}

// SanitizeFirstName keeps letters, digits, spaces, apostrophes and hyphens,
// capped at 80 characters.
func SanitizeFirstName(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n >= maxFirstNameLen {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '\'' || r == '-' {
			b.WriteRune(r)
			n++
		}
	}
	return strings.TrimSpace(b.String())
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
