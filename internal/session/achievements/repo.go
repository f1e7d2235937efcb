package achievements

import (
	"context"
	"time"

	"github.com/2beens/fitsession/internal/telemetry/tracing"
	"github.com/2beens/fitsession/pkg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

// Unlock is one append-only (user, achievement) record.
type Unlock struct {
	UserID        uuid.UUID `json:"userId"`
	AchievementID string    `json:"achievementId"`
	SessionID     uuid.UUID `json:"sessionId"`
	Points        int       `json:"points"`
	UnlockedAt    time.Time `json:"unlockedAt"`
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Insert writes the unlock if absent. A duplicate hits the primary key
// on (user_id, achievement_id) and reports inserted=false with no
// error, which keeps re-evaluation of the same session idempotent.
func (r *Repo) Insert(ctx context.Context, unlock Unlock) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.achievements.insert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", unlock.UserID.String()))
	span.SetAttributes(attribute.String("achievement.id", unlock.AchievementID))

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO achievement_unlock (
			user_id, achievement_id, session_id, points, unlocked_at
		) VALUES ($1, $2, $3, $4, $5);`,
		unlock.UserID, unlock.AchievementID, unlock.SessionID, unlock.Points, unlock.UnlockedAt,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repo) ListForUser(ctx context.Context, userID uuid.UUID) (_ []Unlock, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.achievements.listforuser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT user_id, achievement_id, session_id, points, unlocked_at
		FROM achievement_unlock
		WHERE user_id = $1
		ORDER BY unlocked_at;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var unlocks []Unlock
	for rows.Next() {
		var unlock Unlock
		if err := rows.Scan(
			&unlock.UserID, &unlock.AchievementID, &unlock.SessionID,
			&unlock.Points, &unlock.UnlockedAt,
		); err != nil {
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return unlocks, nil
}

// LifetimeStats are the per-user counters the milestone, streak and
// volume rules read.
type LifetimeStats struct {
	WorkoutCount int     `json:"workoutCount"`
	StreakDays   int     `json:"streakDays"`
	Volume       float64 `json:"volume"`
	Reps         int     `json:"reps"`
}

// StatsRepo aggregates lifetime user stats from the session and
// adaptive metric tables.
type StatsRepo struct {
	db *pgxpool.Pool
}

func NewStatsRepo(db *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{
		db: db,
	}
}

func (r *StatsRepo) LifetimeStats(ctx context.Context, userID uuid.UUID) (_ *LifetimeStats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.achievements.lifetimestats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	stats := &LifetimeStats{}
	if err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM workout_session WHERE user_id = $1 AND state = 'completed';`,
		userID,
	).Scan(&stats.WorkoutCount); err != nil {
		return nil, err
	}

	if err := r.db.QueryRow(
		ctx,
		`SELECT COALESCE(SUM(lifetime_volume), 0), COALESCE(SUM(lifetime_reps), 0)
		FROM adaptive_user_metric WHERE user_id = $1;`,
		userID,
	).Scan(&stats.Volume, &stats.Reps); err != nil {
		return nil, err
	}

	days, err := r.completedDays(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.StreakDays = streakDays(days)

	return stats, nil
}

func (r *StatsRepo) completedDays(ctx context.Context, userID uuid.UUID) ([]time.Time, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT DISTINCT DATE(completed_at)
		FROM workout_session
		WHERE user_id = $1 AND state = 'completed'
		ORDER BY 1 DESC
		LIMIT 366;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return days, nil
}

// streakDays counts the consecutive training days ending with the most
// recent one. The input must be distinct days, newest first.
func streakDays(days []time.Time) int {
	if len(days) == 0 {
		return 0
	}
	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i-1].Sub(days[i]) > 24*time.Hour {
			break
		}
		streak++
	}
	return streak
}
