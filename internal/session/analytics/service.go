package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/telemetry/tracing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type sessionSource interface {
	GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error)
	ListExerciseLogs(ctx context.Context, sessionID uuid.UUID) ([]session.ExerciseLog, error)
	ListSetLogs(ctx context.Context, sessionID uuid.UUID) ([]session.SetLog, error)
	PreviousCompleted(ctx context.Context, s *session.Session) (*session.Session, error)
}

type summaryRepo interface {
	Save(ctx context.Context, summary *Summary) error
	Get(ctx context.Context, sessionID uuid.UUID) (*Summary, error)
	GetScore(ctx context.Context, sessionID uuid.UUID) (int, error)
}

type lifetimeVolumeProvider interface {
	LifetimeVolume(ctx context.Context, userID uuid.UUID) (float64, error)
}

// CompletionHook runs after a summary is persisted for the first time.
// The adaptive metric learning and achievement evaluation are wired in
// here, keeping the state machine free of analytics concerns.
type CompletionHook func(ctx context.Context, summary *Summary) error

var ErrSessionNotCompleted = errors.New("session is not completed")

// Service serves live stats and builds the one-time completion summary.
type Service struct {
	analyzer  *Analyzer
	sessions  sessionSource
	summaries summaryRepo
	lifetime  lifetimeVolumeProvider
	cache     *StatsCache
	hooks     []CompletionHook
	now       func() time.Time
}

func NewService(
	analyzer *Analyzer,
	sessions sessionSource,
	summaries summaryRepo,
	lifetime lifetimeVolumeProvider,
	cache *StatsCache,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		analyzer:  analyzer,
		sessions:  sessions,
		summaries: summaries,
		lifetime:  lifetime,
		cache:     cache,
		now:       now,
	}
}

// OnCompletion registers a hook, called in registration order after the
// summary is first persisted. Hook failures are logged, not propagated:
// a failed downstream update must not lose the summary.
func (s *Service) OnCompletion(hook CompletionHook) {
	s.hooks = append(s.hooks, hook)
}

// GetLiveStats returns the advisory live view of a session, memoized
// for a few seconds.
func (s *Service) GetLiveStats(ctx context.Context, sessionID uuid.UUID) (_ *LiveStats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.analytics.livestats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if s.cache != nil {
		if stats, ok := s.cache.Get(sessionID); ok {
			return stats, nil
		}
	}

	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	setLogs, err := s.sessions.ListSetLogs(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list set logs: %w", err)
	}

	previous := s.previousSession(ctx, sess)
	stats := s.analyzer.LiveStatsAt(sess, setLogs, previous, s.now())

	if s.cache != nil {
		s.cache.Set(sessionID, stats)
	}
	return stats, nil
}

// GetSummary returns the persisted summary of a completed session,
// building and persisting it on first access.
func (s *Service) GetSummary(ctx context.Context, sessionID uuid.UUID) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.analytics.summary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	summary, err := s.summaries.Get(ctx, sessionID)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, ErrSummaryNotFound) {
		return nil, fmt.Errorf("get summary: %w", err)
	}

	return s.buildAndPersist(ctx, sessionID)
}

func (s *Service) buildAndPersist(ctx context.Context, sessionID uuid.UUID) (*Summary, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.State != session.StateCompleted {
		return nil, ErrSessionNotCompleted
	}

	exerciseLogs, err := s.sessions.ListExerciseLogs(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list exercise logs: %w", err)
	}
	setLogs, err := s.sessions.ListSetLogs(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list set logs: %w", err)
	}

	previous := s.previousSession(ctx, sess)
	var previousScore int
	if previous != nil {
		score, scoreErr := s.summaries.GetScore(ctx, previous.ID)
		if scoreErr != nil && !errors.Is(scoreErr, ErrSummaryNotFound) {
			log.Warnf("analytics: get previous score for session %s: %s", previous.ID, scoreErr)
		}
		previousScore = score
	}

	var lifetimeVolume float64
	if s.lifetime != nil {
		volume, volumeErr := s.lifetime.LifetimeVolume(ctx, sess.UserID)
		if volumeErr != nil {
			log.Warnf("analytics: lifetime volume for user %s: %s", sess.UserID, volumeErr)
		} else {
			lifetimeVolume = volume
		}
	}

	summary := s.analyzer.BuildSummary(
		sess, exerciseLogs, setLogs,
		previous, previousScore, lifetimeVolume, s.now(),
	)

	if err := s.summaries.Save(ctx, summary); err != nil {
		if errors.Is(err, ErrSummaryExists) {
			// a concurrent call got there first, serve its result
			return s.summaries.Get(ctx, sessionID)
		}
		return nil, fmt.Errorf("save summary: %w", err)
	}

	for _, hook := range s.hooks {
		if hookErr := hook(ctx, summary); hookErr != nil {
			log.Errorf("analytics: completion hook for session %s: %s", sessionID, hookErr)
		}
	}

	return summary, nil
}

// previousSession is a best-effort history lookup; missing history
// degrades the dependent scores to their neutral defaults.
func (s *Service) previousSession(ctx context.Context, sess *session.Session) *session.Session {
	previous, err := s.sessions.PreviousCompleted(ctx, sess)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			log.Warnf("analytics: previous session for %s: %s", sess.ID, err)
		}
		return nil
	}
	return previous
}
