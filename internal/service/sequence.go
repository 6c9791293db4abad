package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/LeventeLantos/workshop-drip/internal/repo"
)

type Resolver struct {
	workshops repo.WorkshopRepository
}

func NewResolver(workshops repo.WorkshopRepository) *Resolver {
	return &Resolver{workshops: workshops}
}

// Resolve returns nil when the workshop is unknown or has no lesson with a
// body. Lessons without a body are dropped; an unset offset becomes the
// lesson's 1-based position among the kept lessons.
func (r *Resolver) Resolve(ctx context.Context, workshopSlug string) (*model.Sequence, error) {
	w, err := r.workshops.GetWorkshop(ctx, workshopSlug)
	if errors.Is(err, repo.ErrWorkshopNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", workshopSlug, err)
	}

	var lessons []model.ResolvedLesson
	for _, l := range w.Lessons {
		if len(l.Content) == 0 {
			continue
		}
		offset := len(lessons) + 1
		if l.SendOffsetDays != nil && *l.SendOffsetDays >= 0 {
			offset = *l.SendOffsetDays
		}
		lessons = append(lessons, model.ResolvedLesson{
			Key:            l.Key,
			Subject:        l.Subject,
			Preheader:      l.Preheader,
			SendOffsetDays: offset,
			Content:        l.Content,
			Summary:        l.Summary,
			PostSlug:       l.PostSlug,
		})
	}
	if len(lessons) == 0 {
		return nil, nil
	}

	slug := w.Slug
	if slug == "" {
		slug = workshopSlug
	}
	return &model.Sequence{
		WorkshopSlug:  slug,
		WorkshopTitle: w.Title,
		WorkshopImage: w.Image,
		IsTest:        w.IsTest,
		Lessons:       lessons,
	}, nil
}
