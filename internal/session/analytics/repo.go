package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/fitsession/internal/telemetry/tracing"
	"github.com/2beens/fitsession/pkg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrSummaryNotFound = errors.New("session summary not found")
	// ErrSummaryExists signals the insert-once rule: a completed
	// session gets exactly one analytics snapshot.
	ErrSummaryExists = errors.New("session summary already exists")
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Save inserts the summary. A second insert for the same session hits
// the primary key and comes back as ErrSummaryExists.
func (r *Repo) Save(ctx context.Context, summary *Summary) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.analytics.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", summary.SessionID.String()))

	summaryJson, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO session_analytics_snapshot (
			session_id, user_id, workout_id,
			performance_score, total_volume, total_reps, avg_effort,
			calories_burned, recovery_hours, summary, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`,
		summary.SessionID, summary.UserID, summary.WorkoutID,
		summary.Stats.PerformanceScore, summary.Stats.TotalVolume,
		summary.Stats.TotalReps, summary.Stats.AvgEffort,
		summary.Stats.CaloriesBurned, summary.RecoveryHours,
		summaryJson, summary.CreatedAt,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrSummaryExists
		}
		return err
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, sessionID uuid.UUID) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.analytics.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT summary FROM session_analytics_snapshot WHERE session_id = $1;`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrSummaryNotFound
	}

	var summaryJson []byte
	if err := rows.Scan(&summaryJson); err != nil {
		return nil, err
	}

	var summary Summary
	if err := json.Unmarshal(summaryJson, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &summary, nil
}

// GetScore returns just the persisted performance score, used for the
// score delta against the previous session.
func (r *Repo) GetScore(ctx context.Context, sessionID uuid.UUID) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.analytics.getscore")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT performance_score FROM session_analytics_snapshot WHERE session_id = $1;`,
		sessionID,
	)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, ErrSummaryNotFound
	}

	var score int
	if err := rows.Scan(&score); err != nil {
		return 0, err
	}
	return score, nil
}
