package adaptive

import (
	"context"
	"time"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/telemetry/tracing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Get(ctx context.Context, userID, exerciseID uuid.UUID) (_ *UserMetric, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.adaptive.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID.String()))
	span.SetAttributes(attribute.String("exercise.id", exerciseID.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT
			user_id, exercise_id, preferred_rest_seconds, rest_variance,
			preferred_reps_min, preferred_reps_max,
			estimated_one_rep_max, progression_rate,
			lifetime_sessions, lifetime_sets, lifetime_reps, lifetime_volume,
			avg_effort, avg_form, consistency_score, skip_rate,
			confidence, model_version, last_calculated_at
		FROM adaptive_user_metric
		WHERE user_id = $1 AND exercise_id = $2;`,
		userID, exerciseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrMetricNotFound
	}

	var m UserMetric
	if err := rows.Scan(
		&m.UserID, &m.ExerciseID, &m.PreferredRestSeconds, &m.RestVariance,
		&m.PreferredRepsMin, &m.PreferredRepsMax,
		&m.EstimatedOneRepMax, &m.ProgressionRate,
		&m.LifetimeSessions, &m.LifetimeSets, &m.LifetimeReps, &m.LifetimeVolume,
		&m.AvgEffort, &m.AvgForm, &m.ConsistencyScore, &m.SkipRate,
		&m.Confidence, &m.ModelVersion, &m.LastCalculatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) Upsert(ctx context.Context, metric *UserMetric) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.adaptive.upsert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", metric.UserID.String()))
	span.SetAttributes(attribute.String("exercise.id", metric.ExerciseID.String()))

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO adaptive_user_metric (
			user_id, exercise_id, preferred_rest_seconds, rest_variance,
			preferred_reps_min, preferred_reps_max,
			estimated_one_rep_max, progression_rate,
			lifetime_sessions, lifetime_sets, lifetime_reps, lifetime_volume,
			avg_effort, avg_form, consistency_score, skip_rate,
			confidence, model_version, last_calculated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		ON CONFLICT (user_id, exercise_id) DO UPDATE SET
			preferred_rest_seconds = EXCLUDED.preferred_rest_seconds,
			rest_variance = EXCLUDED.rest_variance,
			preferred_reps_min = EXCLUDED.preferred_reps_min,
			preferred_reps_max = EXCLUDED.preferred_reps_max,
			estimated_one_rep_max = EXCLUDED.estimated_one_rep_max,
			progression_rate = EXCLUDED.progression_rate,
			lifetime_sessions = EXCLUDED.lifetime_sessions,
			lifetime_sets = EXCLUDED.lifetime_sets,
			lifetime_reps = EXCLUDED.lifetime_reps,
			lifetime_volume = EXCLUDED.lifetime_volume,
			avg_effort = EXCLUDED.avg_effort,
			avg_form = EXCLUDED.avg_form,
			consistency_score = EXCLUDED.consistency_score,
			skip_rate = EXCLUDED.skip_rate,
			confidence = EXCLUDED.confidence,
			model_version = EXCLUDED.model_version,
			last_calculated_at = EXCLUDED.last_calculated_at;`,
		metric.UserID, metric.ExerciseID, metric.PreferredRestSeconds, metric.RestVariance,
		metric.PreferredRepsMin, metric.PreferredRepsMax,
		metric.EstimatedOneRepMax, metric.ProgressionRate,
		metric.LifetimeSessions, metric.LifetimeSets, metric.LifetimeReps, metric.LifetimeVolume,
		metric.AvgEffort, metric.AvgForm, metric.ConsistencyScore, metric.SkipRate,
		metric.Confidence, metric.ModelVersion, metric.LastCalculatedAt,
	)
	return err
}

// RecentSets returns the user's latest completed sets for an exercise,
// across all sessions, newest first.
func (r *Repo) RecentSets(ctx context.Context, userID, exerciseID uuid.UUID, limit int) (_ []session.SetLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.adaptive.recentsets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID.String()))
	span.SetAttributes(attribute.String("exercise.id", exerciseID.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT
			sl.id, sl.exercise_log_id, sl.set_number, sl.set_type,
			sl.reps_target, sl.reps_completed, sl.weight_kilos,
			sl.duration_target_seconds, sl.duration_seconds,
			sl.rest_target_seconds, sl.rest_seconds, sl.rest_quality,
			sl.effort_rating, sl.form_quality, sl.reached_failure,
			sl.tempo, sl.time_under_tension_seconds, sl.notes, sl.completed_at
		FROM session_set_log sl
		JOIN session_exercise_log el ON el.id = sl.exercise_log_id
		JOIN workout_session ws ON ws.id = el.session_id
		WHERE ws.user_id = $1 AND el.exercise_id = $2
		ORDER BY sl.completed_at DESC
		LIMIT $3;`,
		userID, exerciseID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var setLogs []session.SetLog
	for rows.Next() {
		var sl session.SetLog
		if err := rows.Scan(
			&sl.ID, &sl.ExerciseLogID, &sl.SetNumber, &sl.SetType,
			&sl.RepsTarget, &sl.RepsCompleted, &sl.WeightKilos,
			&sl.DurationTargetSeconds, &sl.DurationSeconds,
			&sl.RestTargetSeconds, &sl.RestSeconds, &sl.RestQuality,
			&sl.EffortRating, &sl.FormQuality, &sl.ReachedFailure,
			&sl.Tempo, &sl.TimeUnderTensionSeconds, &sl.Notes, &sl.CompletedAt,
		); err != nil {
			return nil, err
		}
		setLogs = append(setLogs, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return setLogs, nil
}

func (r *Repo) LifetimeVolume(ctx context.Context, userID uuid.UUID) (_ float64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.adaptive.lifetimevolume")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	var volume float64
	if err := r.db.QueryRow(
		ctx,
		`SELECT COALESCE(SUM(lifetime_volume), 0) FROM adaptive_user_metric WHERE user_id = $1;`,
		userID,
	).Scan(&volume); err != nil {
		return 0, err
	}
	return volume, nil
}

// RecommendationsRepo persists issued suggestions and their one-shot
// user response.
type RecommendationsRepo struct {
	db *pgxpool.Pool
}

func NewRecommendationsRepo(db *pgxpool.Pool) *RecommendationsRepo {
	return &RecommendationsRepo{
		db: db,
	}
}

func (r *RecommendationsRepo) Save(ctx context.Context, recommendations []Recommendation) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.recommendations.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	for i := range recommendations {
		rec := &recommendations[i]
		if _, err := r.db.Exec(
			ctx,
			`INSERT INTO recommendation (
				id, user_id, original_exercise_id, suggested_exercise_id,
				kind, trigger, confidence, reason, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
			rec.ID, rec.UserID, rec.OriginalExerciseID, rec.SuggestedExerciseID,
			rec.Kind, rec.Trigger, rec.Confidence, rec.Reason, rec.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *RecommendationsRepo) Get(ctx context.Context, id uuid.UUID) (_ *Recommendation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.recommendations.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("recommendation.id", id.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT
			id, user_id, original_exercise_id, suggested_exercise_id,
			kind, trigger, confidence, reason, created_at, accepted, responded_at
		FROM recommendation
		WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrRecommendationNotFound
	}

	var rec Recommendation
	if err := rows.Scan(
		&rec.ID, &rec.UserID, &rec.OriginalExerciseID, &rec.SuggestedExerciseID,
		&rec.Kind, &rec.Trigger, &rec.Confidence, &rec.Reason, &rec.CreatedAt,
		&rec.Accepted, &rec.RespondedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecommendationsRepo) SetResponse(ctx context.Context, id uuid.UUID, accepted bool, respondedAt time.Time) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.recommendations.setresponse")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("recommendation.id", id.String()))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE recommendation SET accepted = $2, responded_at = $3
		WHERE id = $1 AND responded_at IS NULL;`,
		id, accepted, respondedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyResponded
	}
	return nil
}
