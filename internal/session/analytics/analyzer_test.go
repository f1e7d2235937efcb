package analytics_test

import (
	"testing"
	"time"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/session/analytics"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testStart = time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)

func runningSession(setsCompleted, totalSets int, volume float64, reps int) *session.Session {
	startedAt := testStart
	return &session.Session{
		ID:                       uuid.New(),
		UserID:                   uuid.New(),
		WorkoutID:                uuid.New(),
		State:                    session.StateExercise,
		CurrentPhase:             session.PhaseExercise,
		StartedAt:                &startedAt,
		TotalExercises:           3,
		TotalSets:                totalSets,
		EstimatedDurationSeconds: 3600,
		SetsCompleted:            setsCompleted,
		TotalVolume:              volume,
		TotalReps:                reps,
		CreatedAt:                testStart,
	}
}

func ratedSets(efforts ...int) []session.SetLog {
	sets := make([]session.SetLog, 0, len(efforts))
	for i, effort := range efforts {
		sets = append(sets, session.SetLog{
			SetNumber:     i + 1,
			SetType:       session.SetTypeWorking,
			RepsTarget:    10,
			RepsCompleted: 10,
			WeightKilos:   80,
			EffortRating:  effort,
		})
	}
	return sets
}

func TestAnalyzer_Intensity(t *testing.T) {
	analyzer := analytics.NewAnalyzer(analytics.DefaultConfig())
	now := testStart.Add(20 * time.Minute)

	// with effort ratings: avg/10
	sess := runningSession(3, 9, 2400, 30)
	stats := analyzer.LiveStatsAt(sess, ratedSets(6, 8, 7), nil, now)
	assert.InDelta(t, 0.7, stats.Intensity, 0.001)
	assert.InDelta(t, 7.0, stats.AvgEffort, 0.001)

	// no ratings: reps-vs-target fallback, capped at 120% per set
	fallbackSets := []session.SetLog{
		{SetType: session.SetTypeWorking, RepsTarget: 10, RepsCompleted: 8},
		{SetType: session.SetTypeWorking, RepsTarget: 10, RepsCompleted: 15},
	}
	stats = analyzer.LiveStatsAt(sess, fallbackSets, nil, now)
	// (0.8 + 1.2) / 2 = 1.0
	assert.InDelta(t, 1.0, stats.Intensity, 0.001)
	assert.Zero(t, stats.AvgEffort)

	// no sets at all
	stats = analyzer.LiveStatsAt(sess, nil, nil, now)
	assert.Zero(t, stats.Intensity)
}

func TestAnalyzer_Durations(t *testing.T) {
	analyzer := analytics.NewAnalyzer(analytics.DefaultConfig())

	sess := runningSession(3, 9, 2400, 30)
	sess.TotalPausedSeconds = 120
	now := testStart.Add(20 * time.Minute)

	stats := analyzer.LiveStatsAt(sess, nil, nil, now)
	assert.Equal(t, 1200, stats.ElapsedSeconds)
	assert.Equal(t, 120, stats.PausedSeconds)
	assert.Equal(t, 1080, stats.ActiveSeconds)
}

func TestAnalyzer_EstimatedTimeRemaining(t *testing.T) {
	analyzer := analytics.NewAnalyzer(analytics.DefaultConfig())

	// a third done after 20 minutes, linear projection: 40 more
	sess := runningSession(3, 9, 2400, 30)
	now := testStart.Add(20 * time.Minute)
	stats := analyzer.LiveStatsAt(sess, nil, nil, now)
	assert.InDelta(t, 33.33, stats.CompletionPercent, 0.01)
	assert.Equal(t, 2400, stats.EstimatedSecondsRemaining)

	// no progress yet: plan estimate minus elapsed
	sess = runningSession(0, 9, 0, 0)
	stats = analyzer.LiveStatsAt(sess, nil, nil, testStart.Add(10*time.Minute))
	assert.Equal(t, 3000, stats.EstimatedSecondsRemaining)

	// terminal sessions have nothing remaining
	sess = runningSession(9, 9, 7200, 90)
	completedAt := testStart.Add(50 * time.Minute)
	sess.State = session.StateCompleted
	sess.CompletedAt = &completedAt
	stats = analyzer.LiveStatsAt(sess, nil, nil, completedAt)
	assert.Zero(t, stats.EstimatedSecondsRemaining)
}

func TestAnalyzer_Calories(t *testing.T) {
	analyzer := analytics.NewAnalyzer(analytics.DefaultConfig())

	// avg effort 7 -> intensity 0.7 -> MET tier 6.0;
	// 45 active minutes, 30 reps:
	// 0.7×(6 × 75 × 0.75) + 0.3×(30 × 0.35) = 236.25 + 3.15
	sess := runningSession(3, 9, 2400, 30)
	now := testStart.Add(45 * time.Minute)
	stats := analyzer.LiveStatsAt(sess, ratedSets(7, 7, 7), nil, now)
	assert.InDelta(t, 239.4, stats.CaloriesBurned, 0.01)
}

func TestAnalyzer_PerformanceScoreRange(t *testing.T) {
	analyzer := analytics.NewAnalyzer(analytics.DefaultConfig())

	cases := []struct {
		name     string
		sess     *session.Session
		setLogs  []session.SetLog
		previous *session.Session
		elapsed  time.Duration
	}{
		{name: "empty session", sess: runningSession(0, 9, 0, 0), elapsed: time.Minute},
		{name: "all done", sess: runningSession(9, 9, 7200, 90), setLogs: ratedSets(8, 8, 8), elapsed: 45 * time.Minute},
		{name: "huge volume jump", sess: runningSession(9, 9, 50000, 90),
			previous: runningSession(9, 9, 100, 90), elapsed: 45 * time.Minute},
		{name: "volume collapse", sess: runningSession(9, 9, 10, 90),
			previous: runningSession(9, 9, 50000, 90), elapsed: 45 * time.Minute},
		{name: "marathon session", sess: runningSession(9, 9, 7200, 90), elapsed: 5 * time.Hour},
		{name: "rushed and unfinished", sess: runningSession(1, 9, 100, 10), elapsed: 3 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stats := analyzer.LiveStatsAt(tc.sess, tc.setLogs, tc.previous, testStart.Add(tc.elapsed))
			assert.GreaterOrEqual(t, stats.PerformanceScore, 0)
			assert.LessOrEqual(t, stats.PerformanceScore, 100)
		})
	}
}

func TestAnalyzer_PerformanceScoreNeutralDefaults(t *testing.T) {
	analyzer := analytics.NewAnalyzer(analytics.DefaultConfig())

	// full completion, no history, no ratings, ideal duration:
	// completion 100, volume 50, intensity 100 (reps fallback all on
	// target), consistency 50, efficiency (100+100)/2=100, progression 50
	sess := runningSession(9, 9, 7200, 90)
	setLogs := make([]session.SetLog, 9)
	for i := range setLogs {
		setLogs[i] = session.SetLog{SetType: session.SetTypeWorking, RepsTarget: 10, RepsCompleted: 10}
	}
	stats := analyzer.LiveStatsAt(sess, setLogs, nil, testStart.Add(45*time.Minute))

	assert.Equal(t, float64(100), stats.SubScores.Completion)
	assert.Equal(t, float64(50), stats.SubScores.Volume)
	assert.Equal(t, float64(100), stats.SubScores.Intensity)
	assert.Equal(t, float64(50), stats.SubScores.Consistency)
	assert.Equal(t, float64(100), stats.SubScores.Efficiency)
	assert.Equal(t, float64(50), stats.SubScores.Progression)
	// 25 + 10 + 20 + 7.5 + 10 + 5
	assert.Equal(t, 78, stats.PerformanceScore)
}

func TestAnalyzer_VolumeProgress(t *testing.T) {
	analyzer := analytics.NewAnalyzer(analytics.DefaultConfig())
	now := testStart.Add(45 * time.Minute)

	current := runningSession(9, 9, 1100, 90)
	previous := runningSession(9, 9, 1000, 90)

	// +10% volume -> 50 + 5×10 = 100
	stats := analyzer.LiveStatsAt(current, nil, previous, now)
	assert.Equal(t, float64(100), stats.SubScores.Volume)

	// -4% -> 50 - 20 = 30
	current.TotalVolume = 960
	stats = analyzer.LiveStatsAt(current, nil, previous, now)
	assert.InDelta(t, 30, stats.SubScores.Volume, 0.001)
}

func TestAnalyzer_ConsistencyScore(t *testing.T) {
	analyzer := analytics.NewAnalyzer(analytics.DefaultConfig())
	now := testStart.Add(45 * time.Minute)
	sess := runningSession(3, 9, 2400, 30)

	// perfect form, identical efforts: 0.6×100 + 0.4×100
	perfect := []session.SetLog{
		{SetType: session.SetTypeWorking, RepsCompleted: 10, EffortRating: 7, FormQuality: 5},
		{SetType: session.SetTypeWorking, RepsCompleted: 10, EffortRating: 7, FormQuality: 5},
	}
	stats := analyzer.LiveStatsAt(sess, perfect, nil, now)
	assert.InDelta(t, 100, stats.SubScores.Consistency, 0.001)

	// bottom form maps to 0
	sloppy := []session.SetLog{
		{SetType: session.SetTypeWorking, RepsCompleted: 10, EffortRating: 7, FormQuality: 1},
	}
	stats = analyzer.LiveStatsAt(sess, sloppy, nil, now)
	assert.InDelta(t, 0.6*0+0.4*100, stats.SubScores.Consistency, 0.001)
}

func TestAnalyzer_Summary(t *testing.T) {
	analyzer := analytics.NewAnalyzer(analytics.DefaultConfig())

	completedAt := testStart.Add(40 * time.Minute)
	sess := runningSession(2, 3, 1600, 20)
	sess.State = session.StateCompleted
	sess.CompletedAt = &completedAt
	sess.TotalDurationSeconds = 2400
	sess.ActiveDurationSeconds = 2400
	sess.ExercisesCompleted = 1
	sess.Goal = "strength"

	exLogID := uuid.New()
	skippedID := uuid.New()
	exerciseLogs := []session.ExerciseLog{
		{
			ID: exLogID, SessionID: sess.ID, ExerciseID: uuid.New(), Position: 0,
			Status: session.ExerciseStatusCompleted, TargetSets: 2, SetsCompleted: 2,
			TotalVolume: 1600, TotalReps: 20, AvgEffort: 7.5,
		},
		{
			ID: skippedID, SessionID: sess.ID, ExerciseID: uuid.New(), Position: 1,
			Status: session.ExerciseStatusSkipped, TargetSets: 1,
			SkipReason: session.SkipReasonFatigue,
		},
	}
	setLogs := []session.SetLog{
		{ExerciseLogID: exLogID, SetNumber: 1, SetType: session.SetTypeWorking,
			RepsCompleted: 10, WeightKilos: 80, EffortRating: 7, FormQuality: 4,
			RestTargetSeconds: 60, RestSeconds: 50, TimeUnderTensionSeconds: 35},
		{ExerciseLogID: exLogID, SetNumber: 2, SetType: session.SetTypeWorking,
			RepsCompleted: 10, WeightKilos: 80, EffortRating: 8, FormQuality: 4,
			RestTargetSeconds: 60, RestSeconds: 70, TimeUnderTensionSeconds: 38},
	}

	summary := analyzer.BuildSummary(sess, exerciseLogs, setLogs, nil, 0, 0, completedAt)

	require.Len(t, summary.Exercises, 2)
	assert.Equal(t, float64(1), summary.Exercises[0].CompletionRatio)
	assert.Equal(t, 4.0, summary.Exercises[0].AvgForm)
	assert.Len(t, summary.Exercises[0].Sets, 2)
	assert.Equal(t, session.ExerciseStatusSkipped, summary.Exercises[1].Status)

	assert.Equal(t, 1, summary.ExercisesSkipped)
	assert.Equal(t, 1, summary.SetsSkipped)
	assert.Equal(t, 73, summary.TimeUnderTensionSeconds)
	assert.Equal(t, 120, summary.RestTargetSeconds)
	assert.Equal(t, 120, summary.RestActualSeconds)
	assert.InDelta(t, 100, summary.RestAdherencePercent, 0.001)

	// no history: delta zero-filled
	assert.Nil(t, summary.Delta.PreviousSessionID)
	assert.Zero(t, summary.Delta.VolumePercent)

	// avg effort 7.5 -> intensity 0.75 -> +12h recovery
	assert.Equal(t, 36, summary.RecoveryHours)
	assert.NotEmpty(t, summary.Insights)
}

func TestAnalyzer_SummaryDelta(t *testing.T) {
	analyzer := analytics.NewAnalyzer(analytics.DefaultConfig())

	completedAt := testStart.Add(30 * time.Minute)
	sess := runningSession(9, 9, 1200, 90)
	sess.State = session.StateCompleted
	sess.CompletedAt = &completedAt
	sess.TotalDurationSeconds = 1800

	previous := runningSession(9, 9, 1000, 90)
	previous.TotalDurationSeconds = 2000

	summary := analyzer.BuildSummary(sess, nil, nil, previous, 70, 0, completedAt)

	require.NotNil(t, summary.Delta.PreviousSessionID)
	assert.Equal(t, previous.ID, *summary.Delta.PreviousSessionID)
	assert.InDelta(t, 20, summary.Delta.VolumePercent, 0.001)
	assert.InDelta(t, -10, summary.Delta.DurationPercent, 0.001)
}

func TestAnalyzer_RecoveryHours(t *testing.T) {
	analyzer := analytics.NewAnalyzer(analytics.DefaultConfig())
	completedAt := testStart.Add(45 * time.Minute)

	// very intense plus big lifetime volume: 24 + 24 + 12
	sess := runningSession(9, 9, 7200, 90)
	sess.State = session.StateCompleted
	sess.CompletedAt = &completedAt
	summary := analyzer.BuildSummary(sess, nil, ratedSets(9, 9, 10), nil, 0, 20_000, completedAt)
	assert.Equal(t, 60, summary.RecoveryHours)

	// light session, fresh user: base only
	summary = analyzer.BuildSummary(sess, nil, ratedSets(5, 5, 5), nil, 0, 0, completedAt)
	assert.Equal(t, 24, summary.RecoveryHours)
}
