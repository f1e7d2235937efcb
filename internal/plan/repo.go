package plan

import (
	"context"
	"errors"

	"github.com/2beens/fitsession/internal/telemetry/tracing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrPlanNotFound = errors.New("workout plan not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Get(ctx context.Context, workoutID uuid.UUID) (_ *Plan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", workoutID.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, goal, warmup_seconds, cooldown_seconds, estimated_duration_seconds
			FROM workout_plan
			WHERE id = $1;`,
		workoutID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrPlanNotFound
	}

	var p Plan
	if err := rows.Scan(
		&p.WorkoutID, &p.Name, &p.Goal,
		&p.WarmupSeconds, &p.CooldownSeconds, &p.EstimatedDurationSeconds,
	); err != nil {
		return nil, err
	}
	rows.Close()

	exRows, err := r.db.Query(
		ctx,
		`SELECT exercise_id, position, sets, reps, duration_seconds, rest_seconds
			FROM workout_plan_exercise
			WHERE workout_plan_id = $1
			ORDER BY position;`,
		workoutID,
	)
	if err != nil {
		return nil, err
	}
	defer exRows.Close()

	for exRows.Next() {
		var ex PlannedExercise
		if err := exRows.Scan(
			&ex.ExerciseID, &ex.Position, &ex.Sets, &ex.Reps,
			&ex.DurationSeconds, &ex.RestSeconds,
		); err != nil {
			return nil, err
		}
		p.Exercises = append(p.Exercises, ex)
	}
	if err := exRows.Err(); err != nil {
		return nil, err
	}

	return &p, nil
}
