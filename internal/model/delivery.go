package model

import "time"

type DeliveryState string

const (
	Pending DeliveryState = "pending"
	Sending DeliveryState = "sending"
	Sent    DeliveryState = "sent"
	Failed  DeliveryState = "failed"
)

// Delivery is one rendered lesson scheduled for one subscriber. The queue only
// holds its key; this record is the source of truth for content and state.
type Delivery struct {
	Key           string
	EnrollmentID  string
	Email         string
	FirstName     string
	WorkshopSlug  string
	WorkshopTitle string
	LessonKey     string
	LessonIndex   int
	Subject       string
	Preheader     string
	HTML          string
	SendAt        time.Time
	State         DeliveryState
	Attempts      int
	LastError     string
	ClaimedAt     *time.Time
	SentAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// QueueEntry is a read-only view of one queue member, used by inspection.
type QueueEntry struct {
	DeliveryKey string        `json:"deliveryKey"`
	SendAt      time.Time     `json:"sendAt"`
	Due         bool          `json:"due"`
	Delay       time.Duration `json:"-"`
	DelayMillis int64         `json:"delayMs"`
	State       DeliveryState `json:"state,omitempty"`
	Email       string        `json:"email,omitempty"`
	Subject     string        `json:"subject,omitempty"`
	Attempts    int           `json:"attempts"`
	Missing     bool          `json:"missing,omitempty"`
}

type ProcessResult struct {
	Sent      int   `json:"sent"`
	Failed    int   `json:"failed"`
	Remaining int64 `json:"remaining"`
}
