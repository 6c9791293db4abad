package repo

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LeventeLantos/workshop-drip/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

type PostgresWorkshopRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresWorkshopRepo(pool *pgxpool.Pool) *PostgresWorkshopRepo {
	return &PostgresWorkshopRepo{pool: pool}
}

// NewPool parses dsn, connects and verifies a connection can be acquired.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the content tables when they do not exist.
func (r *PostgresWorkshopRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schemaSQL)
	return err
}

func (r *PostgresWorkshopRepo) GetWorkshop(ctx context.Context, slug string) (model.Workshop, error) {
	var w model.Workshop
	err := r.pool.QueryRow(ctx, `
		SELECT slug, title, image, is_test
		FROM workshops
		WHERE slug = $1
	`, slug).Scan(&w.Slug, &w.Title, &w.Image, &w.IsTest)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Workshop{}, ErrWorkshopNotFound
	}
	if err != nil {
		return model.Workshop{}, fmt.Errorf("get workshop: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT lesson_key, subject, preheader, send_offset_days, content, summary, post_slug
		FROM workshop_lessons
		WHERE workshop_slug = $1
		ORDER BY position ASC, lesson_key ASC
	`, slug)
	if err != nil {
		return model.Workshop{}, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l       model.AuthoredLesson
			offset  *int32
			content []byte
		)
		if err := rows.Scan(&l.Key, &l.Subject, &l.Preheader, &offset, &content, &l.Summary, &l.PostSlug); err != nil {
			return model.Workshop{}, err
		}
		if offset != nil {
			v := int(*offset)
			l.SendOffsetDays = &v
		}
		// A lesson whose body does not decode is treated as unresolved.
		if len(content) > 0 {
			var blocks []model.Block
			if err := json.Unmarshal(content, &blocks); err == nil {
				l.Content = blocks
			}
		}
		w.Lessons = append(w.Lessons, l)
	}
	if err := rows.Err(); err != nil {
		return model.Workshop{}, err
	}
	return w, nil
}

// UpsertWorkshop replaces a workshop and its full lesson list in one
// transaction. Used by seeding and tests.
func (r *PostgresWorkshopRepo) UpsertWorkshop(ctx context.Context, w model.Workshop) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO workshops (slug, title, image, is_test)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE
		SET title = EXCLUDED.title,
		    image = EXCLUDED.image,
		    is_test = EXCLUDED.is_test,
		    updated_at = now()
	`, w.Slug, w.Title, w.Image, w.IsTest); err != nil {
		return fmt.Errorf("upsert workshop: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM workshop_lessons WHERE workshop_slug = $1`, w.Slug); err != nil {
		return fmt.Errorf("clear lessons: %w", err)
	}

	for i, l := range w.Lessons {
		var content []byte
		if l.Content != nil {
			if content, err = json.Marshal(l.Content); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO workshop_lessons
			    (workshop_slug, position, lesson_key, subject, preheader, send_offset_days, content, summary, post_slug)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, w.Slug, i, l.Key, l.Subject, l.Preheader, l.SendOffsetDays, content, l.Summary, l.PostSlug); err != nil {
			return fmt.Errorf("insert lesson %s: %w", l.Key, err)
		}
	}

	return tx.Commit(ctx)
}
