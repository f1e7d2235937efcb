package adaptive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/session/analytics"
	"github.com/2beens/fitsession/internal/telemetry/tracing"
	"github.com/2beens/fitsession/pkg"

	"go.opentelemetry.io/otel/attribute"
)

// LearnFromSummary updates the per (user, exercise) metrics after a
// completed session: lifetime counters grow, the soft preferences are
// exponentially smoothed (80% old, 20% new observation). First contact
// with an exercise seeds a fresh metric row from this one session.
func (e *Engine) LearnFromSummary(ctx context.Context, summary *analytics.Summary) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "engine.adaptive.learn")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", summary.SessionID.String()))

	now := e.now()
	for i := range summary.Exercises {
		breakdown := &summary.Exercises[i]
		if breakdown.Status == session.ExerciseStatusPending ||
			breakdown.Status == session.ExerciseStatusInProgress {
			continue
		}
		if err := e.learnExercise(ctx, summary, breakdown, now); err != nil {
			return fmt.Errorf("learn exercise %s: %w", breakdown.ExerciseID, err)
		}
	}
	return nil
}

func (e *Engine) learnExercise(
	ctx context.Context,
	summary *analytics.Summary,
	breakdown *analytics.ExerciseBreakdown,
	now time.Time,
) error {
	metric, err := e.metrics.Get(ctx, summary.UserID, breakdown.ExerciseID)
	if err != nil {
		if !errors.Is(err, ErrMetricNotFound) {
			return fmt.Errorf("get metric: %w", err)
		}
		metric = &UserMetric{
			UserID:     summary.UserID,
			ExerciseID: breakdown.ExerciseID,
		}
	}

	seeding := metric.LifetimeSessions == 0

	metric.LifetimeSessions++
	metric.LifetimeSets += breakdown.SetsCompleted
	metric.LifetimeReps += breakdown.Reps
	metric.LifetimeVolume += breakdown.Volume

	skipped := 0.0
	if breakdown.Status == session.ExerciseStatusSkipped {
		skipped = 1
	}

	if seeding {
		e.seedMetric(metric, breakdown, skipped)
	} else {
		e.smoothMetric(metric, breakdown, skipped)
	}

	if estimate := e.estimateFromSets(breakdown.Sets); estimate.Kilos > 0 {
		if metric.EstimatedOneRepMax > 0 {
			change := (estimate.Kilos - metric.EstimatedOneRepMax) / metric.EstimatedOneRepMax * 100
			metric.ProgressionRate = e.smooth(metric.ProgressionRate, change)
		}
		metric.EstimatedOneRepMax = estimate.Kilos
	}

	metric.Confidence = metricConfidence(metric)
	metric.ModelVersion = modelVersion
	metric.LastCalculatedAt = now

	if err := e.metrics.Upsert(ctx, metric); err != nil {
		return fmt.Errorf("upsert metric: %w", err)
	}
	return nil
}

func (e *Engine) seedMetric(metric *UserMetric, breakdown *analytics.ExerciseBreakdown, skipped float64) {
	if rest, ok := observedRest(breakdown.Sets); ok {
		metric.PreferredRestSeconds = rest
	}
	metric.AvgEffort = breakdown.AvgEffort
	metric.AvgForm = breakdown.AvgForm
	metric.ConsistencyScore = breakdown.CompletionRatio * 100
	metric.SkipRate = skipped
	if min, max, ok := observedRepRange(breakdown.Sets); ok {
		metric.PreferredRepsMin = min
		metric.PreferredRepsMax = max
	}
}

func (e *Engine) smoothMetric(metric *UserMetric, breakdown *analytics.ExerciseBreakdown, skipped float64) {
	if rest, ok := observedRest(breakdown.Sets); ok {
		deviation := rest - metric.PreferredRestSeconds
		metric.PreferredRestSeconds = e.smooth(metric.PreferredRestSeconds, rest)
		metric.RestVariance = e.smooth(metric.RestVariance, deviation*deviation)
	}
	if breakdown.AvgEffort > 0 {
		metric.AvgEffort = e.smooth(metric.AvgEffort, breakdown.AvgEffort)
	}
	if breakdown.AvgForm > 0 {
		metric.AvgForm = e.smooth(metric.AvgForm, breakdown.AvgForm)
	}
	metric.ConsistencyScore = pkg.Clamp(e.smooth(metric.ConsistencyScore, breakdown.CompletionRatio*100), 0, 100)
	metric.SkipRate = e.smooth(metric.SkipRate, skipped)
	if min, max, ok := observedRepRange(breakdown.Sets); ok {
		metric.PreferredRepsMin = int(e.smooth(float64(metric.PreferredRepsMin), float64(min)))
		metric.PreferredRepsMax = int(e.smooth(float64(metric.PreferredRepsMax), float64(max)))
	}
}

// smooth keeps most of the old estimate and folds in the new
// observation, per the configured 80/20 split.
func (e *Engine) smooth(old, observation float64) float64 {
	return e.config.SmoothingKeep*old + (1-e.config.SmoothingKeep)*observation
}

func observedRest(sets []session.SetLog) (float64, bool) {
	var sum float64
	var count int
	for i := range sets {
		if sets[i].RestSeconds > 0 {
			sum += float64(sets[i].RestSeconds)
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func observedRepRange(sets []session.SetLog) (min, max int, ok bool) {
	for i := range sets {
		reps := sets[i].RepsCompleted
		if reps <= 0 {
			continue
		}
		if !ok || reps < min {
			min = reps
		}
		if reps > max {
			max = reps
		}
		ok = true
	}
	return min, max, ok
}
