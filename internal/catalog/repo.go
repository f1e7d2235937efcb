package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitsession/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var ErrExerciseNotFound = errors.New("exercise not found")

const (
	cacheSizeBytes = 2 * 1024 * 1024
	cacheTTL       = 10 * time.Minute
)

// Repo reads the exercise catalog. Catalog rows change rarely, so reads
// go through a small in-process cache.
type Repo struct {
	db    *pgxpool.Pool
	cache *freecache.Cache
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db:    db,
		cache: freecache.NewCache(cacheSizeBytes),
	}
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (_ *Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.catalog.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise.id", id.String()))

	cacheKey := []byte("exercise::" + id.String())
	if cached, err := r.cache.Get(cacheKey); err == nil {
		var exercise Exercise
		if err := json.Unmarshal(cached, &exercise); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &exercise, nil
		}
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, category, difficulty_tier, muscle_groups
			FROM exercise_catalog
			WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exercises, err := r.rows2exercises(rows)
	if err != nil {
		return nil, err
	}
	if len(exercises) != 1 {
		return nil, ErrExerciseNotFound
	}

	r.cacheSet(cacheKey, exercises[0])
	return &exercises[0], nil
}

// ListByCategory returns all catalog exercises in the given category.
func (r *Repo) ListByCategory(ctx context.Context, category string) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.catalog.listbycategory")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("category", category))

	cacheKey := []byte("category::" + category)
	if cached, err := r.cache.Get(cacheKey); err == nil {
		var exercises []Exercise
		if err := json.Unmarshal(cached, &exercises); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return exercises, nil
		}
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, category, difficulty_tier, muscle_groups
			FROM exercise_catalog
			WHERE category = $1
			ORDER BY difficulty_tier, name;`,
		category,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exercises, err := r.rows2exercises(rows)
	if err != nil {
		return nil, err
	}

	r.cacheSet(cacheKey, exercises)
	return exercises, nil
}

func (r *Repo) cacheSet(key []byte, value any) {
	valueJson, err := json.Marshal(value)
	if err != nil {
		log.Warnf("catalog cache: marshal value for key [%s]: %s", key, err)
		return
	}
	if err := r.cache.Set(key, valueJson, int(cacheTTL.Seconds())); err != nil {
		log.Warnf("catalog cache: set key [%s]: %s", key, err)
	}
}

func (r *Repo) rows2exercises(rows pgx.Rows) ([]Exercise, error) {
	var exercises []Exercise
	for rows.Next() {
		var e Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.DifficultyTier, &e.MuscleGroups); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		exercises = append(exercises, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if exercises == nil {
		exercises = make([]Exercise, 0)
	}
	return exercises, nil
}
