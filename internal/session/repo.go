package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2beens/fitsession/internal/telemetry/tracing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

// CreateSession inserts the session together with its exercise logs in
// one transaction, so a session can never exist without its plan rows.
func (r *Repo) CreateSession(ctx context.Context, s *Session, logs []ExerciseLog) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.session.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", s.ID.String()))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	pauseIntervals, snapshot, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}

	if _, err = tx.Exec(
		ctx,
		`INSERT INTO workout_session (
			id, user_id, workout_id, state, current_phase, resume_state,
			current_exercise_index, current_set_index,
			scheduled_at, started_at, completed_at, cancelled_at,
			paused_at, resumed_at, total_paused_seconds, pause_intervals,
			total_duration_seconds, active_duration_seconds, warmup_seconds, cooldown_seconds,
			total_exercises, total_sets, estimated_duration_seconds, goal,
			exercises_completed, sets_completed, total_volume, total_reps, calories_burned,
			rest_started_at, rest_target_seconds, rest_periods_skipped, rest_shortfall_seconds,
			snapshot, difficulty_rating, energy_rating, mood_rating, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37, $38
		);`,
		s.ID, s.UserID, s.WorkoutID, s.State, s.CurrentPhase, s.ResumeState,
		s.CurrentExerciseIndex, s.CurrentSetIndex,
		s.ScheduledAt, s.StartedAt, s.CompletedAt, s.CancelledAt,
		s.PausedAt, s.ResumedAt, s.TotalPausedSeconds, pauseIntervals,
		s.TotalDurationSeconds, s.ActiveDurationSeconds, s.WarmupSeconds, s.CooldownSeconds,
		s.TotalExercises, s.TotalSets, s.EstimatedDurationSeconds, s.Goal,
		s.ExercisesCompleted, s.SetsCompleted, s.TotalVolume, s.TotalReps, s.CaloriesBurned,
		s.RestStartedAt, s.RestTargetSeconds, s.RestPeriodsSkipped, s.RestShortfallSeconds,
		snapshot, s.DifficultyRating, s.EnergyRating, s.MoodRating, s.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i := range logs {
		if err = insertExerciseLog(ctx, tx, &logs[i]); err != nil {
			return fmt.Errorf("insert exercise log %d: %w", logs[i].Position, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repo) GetSession(ctx context.Context, id uuid.UUID) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.session.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", id.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT
			id, user_id, workout_id, state, current_phase, resume_state,
			current_exercise_index, current_set_index,
			scheduled_at, started_at, completed_at, cancelled_at,
			paused_at, resumed_at, total_paused_seconds, pause_intervals,
			total_duration_seconds, active_duration_seconds, warmup_seconds, cooldown_seconds,
			total_exercises, total_sets, estimated_duration_seconds, goal,
			exercises_completed, sets_completed, total_volume, total_reps, calories_burned,
			rest_started_at, rest_target_seconds, rest_periods_skipped, rest_shortfall_seconds,
			snapshot, difficulty_rating, energy_rating, mood_rating, created_at
		FROM workout_session
		WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrSessionNotFound
	}
	return row2session(rows)
}

func (r *Repo) UpdateSession(ctx context.Context, s *Session) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.session.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", s.ID.String()))

	pauseIntervals, snapshot, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE workout_session SET
			state = $2, current_phase = $3, resume_state = $4,
			current_exercise_index = $5, current_set_index = $6,
			started_at = $7, completed_at = $8, cancelled_at = $9,
			paused_at = $10, resumed_at = $11, total_paused_seconds = $12, pause_intervals = $13,
			total_duration_seconds = $14, active_duration_seconds = $15, warmup_seconds = $16,
			exercises_completed = $17, sets_completed = $18,
			total_volume = $19, total_reps = $20, calories_burned = $21,
			rest_started_at = $22, rest_target_seconds = $23,
			rest_periods_skipped = $24, rest_shortfall_seconds = $25,
			snapshot = $26, difficulty_rating = $27, energy_rating = $28, mood_rating = $29
		WHERE id = $1;`,
		s.ID, s.State, s.CurrentPhase, s.ResumeState,
		s.CurrentExerciseIndex, s.CurrentSetIndex,
		s.StartedAt, s.CompletedAt, s.CancelledAt,
		s.PausedAt, s.ResumedAt, s.TotalPausedSeconds, pauseIntervals,
		s.TotalDurationSeconds, s.ActiveDurationSeconds, s.WarmupSeconds,
		s.ExercisesCompleted, s.SetsCompleted,
		s.TotalVolume, s.TotalReps, s.CaloriesBurned,
		s.RestStartedAt, s.RestTargetSeconds,
		s.RestPeriodsSkipped, s.RestShortfallSeconds,
		snapshot, s.DifficultyRating, s.EnergyRating, s.MoodRating,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListForUser returns the user's sessions, newest first, optionally
// filtered by state.
func (r *Repo) ListForUser(ctx context.Context, userID uuid.UUID, state State, limit int) (_ []Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.session.listforuser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	query := `SELECT
			id, user_id, workout_id, state, current_phase, resume_state,
			current_exercise_index, current_set_index,
			scheduled_at, started_at, completed_at, cancelled_at,
			paused_at, resumed_at, total_paused_seconds, pause_intervals,
			total_duration_seconds, active_duration_seconds, warmup_seconds, cooldown_seconds,
			total_exercises, total_sets, estimated_duration_seconds, goal,
			exercises_completed, sets_completed, total_volume, total_reps, calories_burned,
			rest_started_at, rest_target_seconds, rest_periods_skipped, rest_shortfall_seconds,
			snapshot, difficulty_rating, energy_rating, mood_rating, created_at
		FROM workout_session
		WHERE user_id = $1`
	args := []any{userID}
	if state != "" {
		query += ` AND state = $2`
		args = append(args, state)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d;`, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rows2sessions(rows)
}

// PreviousCompleted finds the latest completed session of the same user
// and workout that finished before the given session was created. Used
// for the summary deltas.
func (r *Repo) PreviousCompleted(ctx context.Context, s *Session) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.session.previouscompleted")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", s.ID.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT
			id, user_id, workout_id, state, current_phase, resume_state,
			current_exercise_index, current_set_index,
			scheduled_at, started_at, completed_at, cancelled_at,
			paused_at, resumed_at, total_paused_seconds, pause_intervals,
			total_duration_seconds, active_duration_seconds, warmup_seconds, cooldown_seconds,
			total_exercises, total_sets, estimated_duration_seconds, goal,
			exercises_completed, sets_completed, total_volume, total_reps, calories_burned,
			rest_started_at, rest_target_seconds, rest_periods_skipped, rest_shortfall_seconds,
			snapshot, difficulty_rating, energy_rating, mood_rating, created_at
		FROM workout_session
		WHERE user_id = $1 AND workout_id = $2 AND state = 'completed'
			AND id != $3 AND completed_at < $4
		ORDER BY completed_at DESC
		LIMIT 1;`,
		s.UserID, s.WorkoutID, s.ID, s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrSessionNotFound
	}
	return row2session(rows)
}

func (r *Repo) ListExerciseLogs(ctx context.Context, sessionID uuid.UUID) (_ []ExerciseLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.session.listexerciselogs")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	rows, err := r.db.Query(
		ctx,
		exerciseLogColumns+`
		FROM session_exercise_log
		WHERE session_id = $1
		ORDER BY position;`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rows2exerciseLogs(rows)
}

func (r *Repo) GetExerciseLogAt(ctx context.Context, sessionID uuid.UUID, position int) (_ *ExerciseLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.session.getexerciselogat")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))
	span.SetAttributes(attribute.Int("position", position))

	rows, err := r.db.Query(
		ctx,
		exerciseLogColumns+`
		FROM session_exercise_log
		WHERE session_id = $1 AND position = $2;`,
		sessionID, position,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrExerciseLogNotFound
	}
	return row2exerciseLog(rows)
}

func (r *Repo) UpdateExerciseLog(ctx context.Context, exLog *ExerciseLog) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.session.updateexerciselog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exerciselog.id", exLog.ID.String()))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE session_exercise_log SET
			status = $2, sets_completed = $3, total_volume = $4, total_reps = $5,
			avg_effort = $6, peak_effort = $7, rated_sets = $8,
			skip_reason = $9, skip_notes = $10,
			substitute_id = $11, substitute_completed = $12,
			started_at = $13, completed_at = $14
		WHERE id = $1;`,
		exLog.ID, exLog.Status, exLog.SetsCompleted, exLog.TotalVolume, exLog.TotalReps,
		exLog.AvgEffort, exLog.PeakEffort, exLog.RatedSets,
		exLog.SkipReason, exLog.SkipNotes,
		exLog.SubstituteID, exLog.SubstituteCompleted,
		exLog.StartedAt, exLog.CompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExerciseLogNotFound
	}
	return nil
}

func (r *Repo) AddSetLog(ctx context.Context, setLog SetLog) (_ *SetLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.session.addsetlog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exerciselog.id", setLog.ExerciseLogID.String()))

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO session_set_log (
			id, exercise_log_id, set_number, set_type,
			reps_target, reps_completed, weight_kilos,
			duration_target_seconds, duration_seconds,
			rest_target_seconds, rest_seconds, rest_quality,
			effort_rating, form_quality, reached_failure,
			tempo, time_under_tension_seconds, notes, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		) RETURNING id;`,
		setLog.ID, setLog.ExerciseLogID, setLog.SetNumber, setLog.SetType,
		setLog.RepsTarget, setLog.RepsCompleted, setLog.WeightKilos,
		setLog.DurationTargetSeconds, setLog.DurationSeconds,
		setLog.RestTargetSeconds, setLog.RestSeconds, setLog.RestQuality,
		setLog.EffortRating, setLog.FormQuality, setLog.ReachedFailure,
		setLog.Tempo, setLog.TimeUnderTensionSeconds, setLog.Notes, setLog.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("insert set log: no rows returned")
	}
	if err := rows.Scan(&setLog.ID); err != nil {
		return nil, err
	}
	return &setLog, nil
}

// ListSetLogs returns all set logs of the session, in the order they
// were completed.
func (r *Repo) ListSetLogs(ctx context.Context, sessionID uuid.UUID) (_ []SetLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.session.listsetlogs")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

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
		WHERE el.session_id = $1
		ORDER BY sl.completed_at;`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rows2setLogs(rows)
}

const exerciseLogColumns = `SELECT
			id, session_id, exercise_id, position, status,
			target_sets, target_reps, target_duration_seconds, target_rest_seconds,
			sets_completed, total_volume, total_reps, avg_effort, peak_effort, rated_sets,
			skip_reason, skip_notes, substitute_id, substitute_completed,
			started_at, completed_at`

func insertExerciseLog(ctx context.Context, tx pgx.Tx, exLog *ExerciseLog) error {
	_, err := tx.Exec(
		ctx,
		`INSERT INTO session_exercise_log (
			id, session_id, exercise_id, position, status,
			target_sets, target_reps, target_duration_seconds, target_rest_seconds,
			sets_completed, total_volume, total_reps, avg_effort, peak_effort, rated_sets,
			skip_reason, skip_notes, substitute_id, substitute_completed,
			started_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		);`,
		exLog.ID, exLog.SessionID, exLog.ExerciseID, exLog.Position, exLog.Status,
		exLog.TargetSets, exLog.TargetReps, exLog.TargetDurationSeconds, exLog.TargetRestSeconds,
		exLog.SetsCompleted, exLog.TotalVolume, exLog.TotalReps,
		exLog.AvgEffort, exLog.PeakEffort, exLog.RatedSets,
		exLog.SkipReason, exLog.SkipNotes, exLog.SubstituteID, exLog.SubstituteCompleted,
		exLog.StartedAt, exLog.CompletedAt,
	)
	return err
}

func marshalSessionJSON(s *Session) (pauseIntervals, snapshot []byte, err error) {
	pauseIntervals, err = json.Marshal(s.PauseIntervals)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal pause intervals: %w", err)
	}
	snapshot, err = json.Marshal(s.Snapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return pauseIntervals, snapshot, nil
}

func row2session(rows pgx.Rows) (*Session, error) {
	var s Session
	var pauseIntervals, snapshot []byte
	if err := rows.Scan(
		&s.ID, &s.UserID, &s.WorkoutID, &s.State, &s.CurrentPhase, &s.ResumeState,
		&s.CurrentExerciseIndex, &s.CurrentSetIndex,
		&s.ScheduledAt, &s.StartedAt, &s.CompletedAt, &s.CancelledAt,
		&s.PausedAt, &s.ResumedAt, &s.TotalPausedSeconds, &pauseIntervals,
		&s.TotalDurationSeconds, &s.ActiveDurationSeconds, &s.WarmupSeconds, &s.CooldownSeconds,
		&s.TotalExercises, &s.TotalSets, &s.EstimatedDurationSeconds, &s.Goal,
		&s.ExercisesCompleted, &s.SetsCompleted, &s.TotalVolume, &s.TotalReps, &s.CaloriesBurned,
		&s.RestStartedAt, &s.RestTargetSeconds, &s.RestPeriodsSkipped, &s.RestShortfallSeconds,
		&snapshot, &s.DifficultyRating, &s.EnergyRating, &s.MoodRating, &s.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(pauseIntervals) > 0 {
		if err := json.Unmarshal(pauseIntervals, &s.PauseIntervals); err != nil {
			return nil, fmt.Errorf("unmarshal pause intervals: %w", err)
		}
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &s.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
	}
	return &s, nil
}

func rows2sessions(rows pgx.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		s, err := row2session(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func row2exerciseLog(rows pgx.Rows) (*ExerciseLog, error) {
	var exLog ExerciseLog
	if err := rows.Scan(
		&exLog.ID, &exLog.SessionID, &exLog.ExerciseID, &exLog.Position, &exLog.Status,
		&exLog.TargetSets, &exLog.TargetReps, &exLog.TargetDurationSeconds, &exLog.TargetRestSeconds,
		&exLog.SetsCompleted, &exLog.TotalVolume, &exLog.TotalReps,
		&exLog.AvgEffort, &exLog.PeakEffort, &exLog.RatedSets,
		&exLog.SkipReason, &exLog.SkipNotes, &exLog.SubstituteID, &exLog.SubstituteCompleted,
		&exLog.StartedAt, &exLog.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &exLog, nil
}

func rows2exerciseLogs(rows pgx.Rows) ([]ExerciseLog, error) {
	var logs []ExerciseLog
	for rows.Next() {
		exLog, err := row2exerciseLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *exLog)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func rows2setLogs(rows pgx.Rows) ([]SetLog, error) {
	var logs []SetLog
	for rows.Next() {
		var sl SetLog
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
		logs = append(logs, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
