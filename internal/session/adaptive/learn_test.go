package adaptive_test

import (
	"context"
	"testing"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/session/analytics"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedSummary(userID, exerciseID uuid.UUID, volume float64, reps int, restSeconds int) *analytics.Summary {
	return &analytics.Summary{
		SessionID: uuid.New(),
		UserID:    userID,
		WorkoutID: uuid.New(),
		Exercises: []analytics.ExerciseBreakdown{
			{
				ExerciseID:      exerciseID,
				Status:          session.ExerciseStatusCompleted,
				TargetSets:      2,
				SetsCompleted:   2,
				CompletionRatio: 1,
				Volume:          volume,
				Reps:            reps,
				AvgEffort:       7,
				AvgForm:         4,
				Sets: []session.SetLog{
					{SetType: session.SetTypeWorking, WeightKilos: 80, RepsCompleted: reps / 2,
						RestSeconds: restSeconds, EffortRating: 7, FormQuality: 4},
					{SetType: session.SetTypeWorking, WeightKilos: 80, RepsCompleted: reps - reps/2,
						RestSeconds: restSeconds, EffortRating: 7, FormQuality: 4},
				},
			},
		},
	}
}

func TestEngine_LearnFromSummary_Seed(t *testing.T) {
	engine, metricsRepo, _, _ := newTestEngine()
	ctx := context.Background()
	userID, exerciseID := uuid.New(), uuid.New()

	summary := completedSummary(userID, exerciseID, 1600, 20, 60)
	require.NoError(t, engine.LearnFromSummary(ctx, summary))

	metric, err := metricsRepo.Get(ctx, userID, exerciseID)
	require.NoError(t, err)
	assert.Equal(t, 1, metric.LifetimeSessions)
	assert.Equal(t, 2, metric.LifetimeSets)
	assert.Equal(t, 20, metric.LifetimeReps)
	assert.Equal(t, float64(1600), metric.LifetimeVolume)
	// seeded straight from the single observation
	assert.Equal(t, float64(60), metric.PreferredRestSeconds)
	assert.Equal(t, 7.0, metric.AvgEffort)
	assert.Equal(t, 4.0, metric.AvgForm)
	assert.Equal(t, float64(100), metric.ConsistencyScore)
	assert.Zero(t, metric.SkipRate)
	assert.Equal(t, testNow, metric.LastCalculatedAt)
	// 2 sets of 80kg, reps 10 each: Epley 80×(1+10/30) ≈ 106.7
	assert.InDelta(t, 106.67, metric.EstimatedOneRepMax, 0.01)
}

func TestEngine_LearnFromSummary_Smoothing(t *testing.T) {
	engine, metricsRepo, _, _ := newTestEngine()
	ctx := context.Background()
	userID, exerciseID := uuid.New(), uuid.New()

	require.NoError(t, engine.LearnFromSummary(ctx, completedSummary(userID, exerciseID, 1600, 20, 60)))
	// second session rests much longer
	require.NoError(t, engine.LearnFromSummary(ctx, completedSummary(userID, exerciseID, 1700, 20, 120)))

	metric, err := metricsRepo.Get(ctx, userID, exerciseID)
	require.NoError(t, err)
	assert.Equal(t, 2, metric.LifetimeSessions)
	assert.Equal(t, float64(3300), metric.LifetimeVolume)
	// 0.8×60 + 0.2×120
	assert.InDelta(t, 72, metric.PreferredRestSeconds, 0.001)
	// variance picked up the 60s deviation: 0.2×60²
	assert.InDelta(t, 720, metric.RestVariance, 0.001)
	assert.Greater(t, metric.Confidence, 0.0)
}

func TestEngine_LearnFromSummary_Skip(t *testing.T) {
	engine, metricsRepo, _, _ := newTestEngine()
	ctx := context.Background()
	userID, exerciseID := uuid.New(), uuid.New()

	summary := &analytics.Summary{
		SessionID: uuid.New(),
		UserID:    userID,
		Exercises: []analytics.ExerciseBreakdown{
			{
				ExerciseID: exerciseID,
				Status:     session.ExerciseStatusSkipped,
				TargetSets: 3,
			},
			// untouched exercises do not create metric rows
			{
				ExerciseID: uuid.New(),
				Status:     session.ExerciseStatusPending,
				TargetSets: 3,
			},
		},
	}
	require.NoError(t, engine.LearnFromSummary(ctx, summary))

	metric, err := metricsRepo.Get(ctx, userID, exerciseID)
	require.NoError(t, err)
	assert.Equal(t, float64(1), metric.SkipRate)
	assert.Zero(t, metric.ConsistencyScore)
	assert.Len(t, metricsRepo.metrics, 1)
}

func TestEngine_LifetimeVolume(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	ctx := context.Background()
	userID := uuid.New()

	volume, err := engine.LifetimeVolume(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, volume)

	require.NoError(t, engine.LearnFromSummary(ctx, completedSummary(userID, uuid.New(), 1000, 20, 60)))
	require.NoError(t, engine.LearnFromSummary(ctx, completedSummary(userID, uuid.New(), 500, 10, 60)))

	volume, err = engine.LifetimeVolume(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, float64(1500), volume)
}
