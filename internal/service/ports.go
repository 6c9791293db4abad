package service

import (
	"context"

	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/LeventeLantos/workshop-drip/internal/render"
)

// Mailer sends one transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) (messageID string, err error)
}

// ListProvider registers a confirmed address with the mailing list. An
// already subscribed address must be reported as client.ErrAlreadySubscribed.
type ListProvider interface {
	AddContact(ctx context.Context, audienceID, email, firstName string) error
}

type SequenceResolver interface {
	Resolve(ctx context.Context, workshopSlug string) (*model.Sequence, error)
}

type LessonRenderer interface {
	Lesson(l render.Lesson) (string, error)
}

type ConfirmationRenderer interface {
	Confirmation(c render.Confirmation) (string, error)
}

type SubscriberEnroller interface {
	Enroll(ctx context.Context, req EnrollRequest) (model.EnrollResult, error)
}
