package model

import "time"

// OptInRecord is a pending double opt-in confirmation.
type OptInRecord struct {
	Token        string    `json:"token"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName,omitempty"`
	WorkshopSlug string    `json:"workshopSlug"`
	AudienceID   string    `json:"audienceId"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (r OptInRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

type ConfirmStatus string

const (
	ConfirmInvalid ConfirmStatus = "invalid"
	ConfirmError   ConfirmStatus = "error"
	ConfirmSuccess ConfirmStatus = "success"
)

type ConfirmResult struct {
	Status  ConfirmStatus `json:"status"`
	Message string        `json:"message,omitempty"`
}
