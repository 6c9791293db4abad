package repo

import (
	"context"
	"errors"

	"github.com/LeventeLantos/workshop-drip/internal/model"
)

var ErrWorkshopNotFound = errors.New("workshop not found")

// WorkshopRepository is the content source for drip sequences. Lessons come
// back in authored order.
type WorkshopRepository interface {
	GetWorkshop(ctx context.Context, slug string) (model.Workshop, error)
}
