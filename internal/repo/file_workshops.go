package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/LeventeLantos/workshop-drip/internal/model"
)

// FileWorkshopRepo reads workshops from a JSON document on every call, so
// edits show up without a restart.
type FileWorkshopRepo struct {
	path string
}

func NewFileWorkshopRepo(path string) *FileWorkshopRepo {
	return &FileWorkshopRepo{path: path}
}

type workshopFile struct {
	Workshops []model.Workshop `json:"workshops"`
}

func (r *FileWorkshopRepo) GetWorkshop(ctx context.Context, slug string) (model.Workshop, error) {
	if err := ctx.Err(); err != nil {
		return model.Workshop{}, err
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return model.Workshop{}, fmt.Errorf("read content file: %w", err)
	}

	var doc workshopFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Workshop{}, fmt.Errorf("decode content file: %w", err)
	}

	for _, w := range doc.Workshops {
		if w.Slug == slug {
			return w, nil
		}
	}
	return model.Workshop{}, ErrWorkshopNotFound
}
