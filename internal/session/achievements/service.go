package achievements

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/session/analytics"
	"github.com/2beens/fitsession/internal/telemetry/metrics"
	"github.com/2beens/fitsession/internal/telemetry/tracing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type unlockRepo interface {
	Insert(ctx context.Context, unlock Unlock) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Unlock, error)
}

type statsProvider interface {
	LifetimeStats(ctx context.Context, userID uuid.UUID) (*LifetimeStats, error)
}

type sessionGetter interface {
	GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error)
}

// UnlockedAchievement pairs a fresh unlock with its definition, for the
// client to render straight from the evaluation response.
type UnlockedAchievement struct {
	Definition Definition `json:"definition"`
	UnlockedAt time.Time  `json:"unlockedAt"`
}

// Service evaluates the rule table against a completed session and
// persists the unlocks. It runs as an analytics completion hook and
// behind the evaluation endpoint; both paths are idempotent because
// the unlock repo refuses duplicates.
type Service struct {
	evaluator *Evaluator
	unlocks   unlockRepo
	stats     statsProvider
	sessions  sessionGetter
	metrics   *metrics.Manager
	now       func() time.Time
}

func NewService(
	evaluator *Evaluator,
	unlocks unlockRepo,
	stats statsProvider,
	sessions sessionGetter,
	metricsManager *metrics.Manager,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		evaluator: evaluator,
		unlocks:   unlocks,
		stats:     stats,
		sessions:  sessions,
		metrics:   metricsManager,
		now:       now,
	}
}

// EvaluateSummary runs the rules for a freshly completed session and
// returns only the achievements unlocked right now. Already-unlocked
// achievements are silently skipped.
func (s *Service) EvaluateSummary(ctx context.Context, summary *analytics.Summary) (_ []UnlockedAchievement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.achievements.evaluate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	facts, err := s.buildFacts(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("build facts: %w", err)
	}

	var unlocked []UnlockedAchievement
	for _, definition := range s.evaluator.Evaluate(*facts) {
		inserted, err := s.unlocks.Insert(ctx, Unlock{
			UserID:        summary.UserID,
			AchievementID: definition.ID,
			SessionID:     summary.SessionID,
			Points:        definition.Points,
			UnlockedAt:    s.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("insert unlock %s: %w", definition.ID, err)
		}
		if !inserted {
			continue
		}
		unlocked = append(unlocked, UnlockedAchievement{
			Definition: definition,
			UnlockedAt: s.now(),
		})
		if s.metrics != nil {
			s.metrics.CounterAchievementUnlocks.Inc()
		}
		log.Debugf("achievements: user %s unlocked %s", summary.UserID, definition.ID)
	}
	return unlocked, nil
}

// ListUnlocked returns the user's unlock history, oldest first.
func (s *Service) ListUnlocked(ctx context.Context, userID uuid.UUID) (_ []Unlock, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.achievements.listunlocked")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	return s.unlocks.ListForUser(ctx, userID)
}

// buildFacts flattens the summary, the session row and the lifetime
// counters into the flat view the rule table reads.
func (s *Service) buildFacts(ctx context.Context, summary *analytics.Summary) (*SessionFacts, error) {
	sess, err := s.sessions.GetSession(ctx, summary.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	lifetime, err := s.stats.LifetimeStats(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("lifetime stats: %w", err)
	}

	facts := &SessionFacts{
		SetsCompleted:      sess.SetsCompleted,
		SetsSkipped:        summary.SetsSkipped,
		AverageEffort:      summary.Stats.AvgEffort,
		RestPeriodsSkipped: sess.RestPeriodsSkipped,
		AllSetsGoodForm:    allSetsGoodForm(summary),

		DurationSeconds:          sess.TotalDurationSeconds,
		EstimatedDurationSeconds: sess.EstimatedDurationSeconds,

		LifetimeWorkoutCount: lifetime.WorkoutCount,
		CurrentStreakDays:    lifetime.StreakDays,
		LifetimeVolume:       lifetime.Volume,
		LifetimeReps:         lifetime.Reps,
	}
	if sess.StartedAt != nil {
		facts.StartTime = *sess.StartedAt
	}
	return facts, nil
}

// allSetsGoodForm requires a form rating of 4+ on every completed set;
// a single unrated set disqualifies.
func allSetsGoodForm(summary *analytics.Summary) bool {
	rated := 0
	for i := range summary.Exercises {
		for _, setLog := range summary.Exercises[i].Sets {
			if setLog.FormQuality < 4 {
				return false
			}
			rated++
		}
	}
	return rated > 0
}
