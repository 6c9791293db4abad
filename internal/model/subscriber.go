package model

import "time"

type Subscriber struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName,omitempty"`
	WorkshopSlug string    `json:"workshopSlug"`
	EnrolledAt   time.Time `json:"enrolledAt"`
}

type EnrollStatus string

const (
	EnrollQueued  EnrollStatus = "queued"
	EnrollExists  EnrollStatus = "exists"
	EnrollSkipped EnrollStatus = "skipped"
)

const (
	SkipMissingWorkshopSlug = "missing-workshop-slug"
	SkipNoSequence          = "no-sequence"
	SkipEmptySequence       = "empty-sequence"
)

type EnrollResult struct {
	Status EnrollStatus `json:"status"`
	Count  int          `json:"count,omitempty"`
	IsTest bool         `json:"isTest,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

// EnrollmentFailure records an enrollment that failed after the list
// subscription already succeeded, so an operator can re-run it.
type EnrollmentFailure struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName,omitempty"`
	WorkshopSlug string    `json:"workshopSlug"`
	Error        string    `json:"error"`
	At           time.Time `json:"at"`
}
