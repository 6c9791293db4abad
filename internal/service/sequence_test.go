package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/LeventeLantos/workshop-drip/internal/service"
)

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	body := []model.Block{{Type: model.BlockParagraph, Text: "x"}}
	ws := &fakeWorkshops{}
	ws.put(model.Workshop{
		Slug:   "mixed",
		Title:  "Mixed",
		Image:  "img.png",
		IsTest: true,
		Lessons: []model.AuthoredLesson{
			{Key: "a", Content: body},
			{Key: "gone"},
			{Key: "blank", Content: []model.Block{}},
			{Key: "b", SendOffsetDays: intp(0), Content: body},
			{Key: "c", SendOffsetDays: intp(-4), Content: body},
			{Key: "d", SendOffsetDays: intp(10), Content: body},
		},
	})
	ws.put(model.Workshop{Slug: "hollow", Lessons: []model.AuthoredLesson{{Key: "a"}, {Key: "b", Content: []model.Block{}}}})
	ws.put(model.Workshop{Slug: "empty"})

	r := service.NewResolver(ws)
	ctx := context.Background()

	seq, err := r.Resolve(ctx, "mixed")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if seq == nil || !seq.IsTest || seq.WorkshopTitle != "Mixed" || seq.WorkshopImage != "img.png" {
		t.Fatalf("unexpected sequence: %+v", seq)
	}

	wantKeys := []string{"a", "b", "c", "d"}
	wantOffsets := []int{1, 0, 3, 10}
	if len(seq.Lessons) != len(wantKeys) {
		t.Fatalf("expected %d lessons, got %+v", len(wantKeys), seq.Lessons)
	}
	for i, l := range seq.Lessons {
		if l.Key != wantKeys[i] || l.SendOffsetDays != wantOffsets[i] {
			t.Fatalf("lesson %d: got key=%s offset=%d", i, l.Key, l.SendOffsetDays)
		}
	}

	again, _ := r.Resolve(ctx, "mixed")
	for i := range again.Lessons {
		if again.Lessons[i].Key != seq.Lessons[i].Key || again.Lessons[i].SendOffsetDays != seq.Lessons[i].SendOffsetDays {
			t.Fatalf("expected deterministic resolution")
		}
	}

	for _, slug := range []string{"hollow", "empty", "unknown"} {
		seq, err := r.Resolve(ctx, slug)
		if err != nil || seq != nil {
			t.Fatalf("Resolve(%s) = %+v, %v; want nil, nil", slug, seq, err)
		}
	}
}

func TestResolver_PropagatesRepositoryErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	r := service.NewResolver(&fakeWorkshops{err: boom})

	if _, err := r.Resolve(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
}
