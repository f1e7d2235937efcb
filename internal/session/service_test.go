package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/2beens/fitsession/internal/plan"
	"github.com/2beens/fitsession/internal/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// redismock.NewClientMock keeps an internal "factory" redis client that
	// tests cannot close, so its pool reaper goroutine always outlives the run.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper"))
}

type planProviderStub struct {
	plan *plan.Plan
	err  error
}

func (p *planProviderStub) Get(_ context.Context, _ uuid.UUID) (*plan.Plan, error) {
	return p.plan, p.err
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func testPlan(workoutID uuid.UUID) *plan.Plan {
	ex0 := uuid.New()
	ex1 := uuid.New()
	return &plan.Plan{
		WorkoutID:                workoutID,
		Name:                     "Push Day A",
		Goal:                     "strength",
		WarmupSeconds:            120,
		EstimatedDurationSeconds: 2400,
		Exercises: []plan.PlannedExercise{
			{ExerciseID: ex0, Position: 0, Sets: 2, Reps: 10, RestSeconds: 60},
			{ExerciseID: ex1, Position: 1, Sets: 1, Reps: 8, RestSeconds: 90},
		},
	}
}

func newTestService(t *testing.T) (*session.Service, *session.RepoMock, *testClock) {
	t.Helper()
	repo := session.NewRepoMock()
	clock := &testClock{now: time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)}
	workoutPlan := testPlan(uuid.New())
	svc := session.NewService(
		repo,
		&planProviderStub{plan: workoutPlan},
		nil,
		session.WithClock(clock.Now),
	)
	return svc, repo, clock
}

func TestService_Create(t *testing.T) {
	svc, repo, clock := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	sess, err := svc.Create(ctx, userID, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, session.StateIdle, sess.State)
	assert.Equal(t, userID, sess.UserID)
	assert.Equal(t, 2, sess.TotalExercises)
	assert.Equal(t, 3, sess.TotalSets)
	assert.Equal(t, "strength", sess.Goal)
	assert.Equal(t, clock.Now(), sess.CreatedAt)
	assert.Equal(t, int64(1), sess.Snapshot.Version)

	logs, err := repo.ListExerciseLogs(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, session.ExerciseStatusPending, logs[0].Status)
	assert.Equal(t, 2, logs[0].TargetSets)
	assert.Equal(t, 60, logs[0].TargetRestSeconds)
	assert.Equal(t, session.ExerciseStatusPending, logs[1].Status)
}

func TestService_Start(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)

	started, err := svc.Start(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateWarmup, started.State)
	assert.NotNil(t, started.StartedAt)

	// starting twice is a state machine violation
	_, err = svc.Start(ctx, sess.ID)
	require.ErrorIs(t, err, session.ErrInvalidTransition)
}

func TestService_FullSession(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = svc.Start(ctx, sess.ID)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	current, err := svc.StartExercise(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, session.StateExercise, current.State)
	assert.Equal(t, 120, current.WarmupSeconds)
	assert.Equal(t, 0, current.CurrentExerciseIndex)

	// first set, ends in the rest phase
	clock.Advance(40 * time.Second)
	result, err := svc.CompleteSet(ctx, sess.ID, session.SetLog{
		SetType:       session.SetTypeWorking,
		RepsCompleted: 10,
		WeightKilos:   80,
		EffortRating:  7,
	})
	require.NoError(t, err)
	assert.False(t, result.ExerciseCompleted)
	assert.Equal(t, session.StateRest, result.Session.State)
	assert.Equal(t, 1, result.Session.SetsCompleted)
	assert.Equal(t, 1, result.Session.CurrentSetIndex)
	assert.Equal(t, float64(800), result.Session.TotalVolume)
	assert.Equal(t, 60, result.Session.RestTargetSeconds)
	assert.Equal(t, 1, result.SetLog.SetNumber)

	// second set straight out of rest finishes the exercise and
	// records the actual rest onto the set
	clock.Advance(55 * time.Second)
	result, err = svc.CompleteSet(ctx, sess.ID, session.SetLog{
		SetType:       session.SetTypeWorking,
		RepsCompleted: 8,
		WeightKilos:   80,
		EffortRating:  9,
	})
	require.NoError(t, err)
	assert.True(t, result.ExerciseCompleted)
	assert.False(t, result.SessionCompleted)
	assert.Equal(t, session.StateExercise, result.Session.State)
	assert.Equal(t, 1, result.Session.CurrentExerciseIndex)
	assert.Equal(t, 55, result.SetLog.RestSeconds)
	assert.Equal(t, 60, result.SetLog.RestTargetSeconds)
	assert.Equal(t, session.ExerciseStatusCompleted, result.ExerciseLog.Status)
	assert.Equal(t, 8.0, result.ExerciseLog.AvgEffort)
	assert.Equal(t, 9, result.ExerciseLog.PeakEffort)

	// last exercise, last set, completes the whole session
	_, err = svc.StartExercise(ctx, sess.ID, 1)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	result, err = svc.CompleteSet(ctx, sess.ID, session.SetLog{
		SetType:       session.SetTypeWorking,
		RepsCompleted: 8,
		WeightKilos:   60,
	})
	require.NoError(t, err)
	assert.True(t, result.SessionCompleted)
	assert.Equal(t, session.StateCompleted, result.Session.State)
	assert.Equal(t, session.PhaseCooldown, result.Session.CurrentPhase)
	assert.Equal(t, 3, result.Session.SetsCompleted)
	assert.Equal(t, 2, result.Session.ExercisesCompleted)
	assert.Equal(t, float64(800+640+480), result.Session.TotalVolume)
	assert.Equal(t, 26, result.Session.TotalReps)
	require.NotNil(t, result.Session.CompletedAt)
	assert.Equal(t, result.Session.TotalDurationSeconds, result.Session.ActiveDurationSeconds)
	assert.LessOrEqual(t, result.Session.SetsCompleted, result.Session.TotalSets)
}

func TestService_PauseResume(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	_, err = svc.Start(ctx, sess.ID)
	require.NoError(t, err)
	_, err = svc.StartExercise(ctx, sess.ID, 0)
	require.NoError(t, err)

	paused, err := svc.Pause(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatePaused, paused.State)
	assert.Equal(t, session.StateExercise, paused.ResumeState)
	require.Len(t, paused.PauseIntervals, 1)

	// completing a set while paused is not allowed
	_, err = svc.CompleteSet(ctx, sess.ID, session.SetLog{
		SetType: session.SetTypeWorking, RepsCompleted: 10, WeightKilos: 80,
	})
	require.ErrorIs(t, err, session.ErrInvalidTransition)

	clock.Advance(90 * time.Second)
	resumed, err := svc.Resume(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateExercise, resumed.State)
	assert.Equal(t, 90, resumed.TotalPausedSeconds)
	require.NotNil(t, resumed.PauseIntervals[0].ResumedAt)

	// second round trip accumulates
	_, err = svc.Pause(ctx, sess.ID)
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	resumed, err = svc.Resume(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, resumed.TotalPausedSeconds)
	assert.Len(t, resumed.PauseIntervals, 2)

	clock.Advance(5 * time.Minute)
	completed, err := svc.Complete(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t,
		completed.TotalDurationSeconds-completed.TotalPausedSeconds,
		completed.ActiveDurationSeconds,
	)
}

func TestService_CompleteWhilePaused(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	_, err = svc.Start(ctx, sess.ID)
	require.NoError(t, err)
	_, err = svc.Pause(ctx, sess.ID)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	completed, err := svc.Complete(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateCompleted, completed.State)
	// the open pause interval was closed on completion
	assert.Equal(t, 60, completed.TotalPausedSeconds)
	require.NotNil(t, completed.PauseIntervals[0].ResumedAt)
}

func TestService_SkipExercise(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	_, err = svc.Start(ctx, sess.ID)
	require.NoError(t, err)
	_, err = svc.StartExercise(ctx, sess.ID, 0)
	require.NoError(t, err)

	current, err := svc.SkipExercise(ctx, sess.ID, session.SkipReasonFatigue, "shoulder felt off")
	require.NoError(t, err)
	assert.Equal(t, 1, current.CurrentExerciseIndex)
	assert.Equal(t, session.StateExercise, current.State)

	skipped, err := repo.GetExerciseLogAt(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, session.ExerciseStatusSkipped, skipped.Status)
	assert.Equal(t, session.SkipReasonFatigue, skipped.SkipReason)
	assert.Equal(t, "shoulder felt off", skipped.SkipNotes)

	// skipping the last exercise ends the session
	current, err = svc.SkipExercise(ctx, sess.ID, session.SkipReasonTime, "")
	require.NoError(t, err)
	assert.Equal(t, session.StateCompleted, current.State)
	assert.Equal(t, 0, current.ExercisesCompleted)

	_, err = svc.SkipExercise(ctx, sess.ID, session.SkipReasonTime, "")
	require.ErrorIs(t, err, session.ErrInvalidTransition)
}

func TestService_SkipRest(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	_, err = svc.Start(ctx, sess.ID)
	require.NoError(t, err)
	_, err = svc.StartExercise(ctx, sess.ID, 0)
	require.NoError(t, err)

	result, err := svc.CompleteSet(ctx, sess.ID, session.SetLog{
		SetType: session.SetTypeWorking, RepsCompleted: 10, WeightKilos: 80,
	})
	require.NoError(t, err)
	require.Equal(t, session.StateRest, result.Session.State)

	// bail out of a 60s rest after 20s
	clock.Advance(20 * time.Second)
	current, err := svc.SkipRest(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateExercise, current.State)
	assert.Equal(t, 1, current.RestPeriodsSkipped)
	assert.Equal(t, 40, current.RestShortfallSeconds)

	_, err = svc.SkipRest(ctx, sess.ID)
	require.ErrorIs(t, err, session.ErrInvalidTransition)
}

func TestService_Cancel(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	_, err = svc.Start(ctx, sess.ID)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	cancelled, err := svc.Cancel(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateCancelled, cancelled.State)
	assert.Equal(t, 600, cancelled.TotalDurationSeconds)
	require.NotNil(t, cancelled.CancelledAt)

	// terminal states stay terminal
	_, err = svc.Cancel(ctx, sess.ID)
	require.ErrorIs(t, err, session.ErrInvalidTransition)
	_, err = svc.Start(ctx, sess.ID)
	require.ErrorIs(t, err, session.ErrInvalidTransition)
}

func TestService_SubmitFeedback(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	_, err = svc.Start(ctx, sess.ID)
	require.NoError(t, err)

	// feedback only makes sense after completion
	_, err = svc.SubmitFeedback(ctx, sess.ID, 4, 3, 5)
	require.ErrorIs(t, err, session.ErrInvalidTransition)

	_, err = svc.Complete(ctx, sess.ID)
	require.NoError(t, err)

	_, err = svc.SubmitFeedback(ctx, sess.ID, 4, 3, 6)
	require.ErrorIs(t, err, session.ErrValidation)

	rated, err := svc.SubmitFeedback(ctx, sess.ID, 4, 3, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, rated.DifficultyRating)
	assert.Equal(t, 3, rated.EnergyRating)
	assert.Equal(t, 5, rated.MoodRating)
}

func TestService_SetValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	_, err = svc.Start(ctx, sess.ID)
	require.NoError(t, err)
	_, err = svc.StartExercise(ctx, sess.ID, 0)
	require.NoError(t, err)

	for name, setLog := range map[string]session.SetLog{
		"effort out of range": {SetType: session.SetTypeWorking, RepsCompleted: 10, EffortRating: 11},
		"negative reps":       {SetType: session.SetTypeWorking, RepsCompleted: -1},
		"negative weight":     {SetType: session.SetTypeWorking, RepsCompleted: 5, WeightKilos: -10},
		"bad set type":        {SetType: "superset", RepsCompleted: 5},
		"form out of range":   {SetType: session.SetTypeWorking, RepsCompleted: 5, FormQuality: 6},
	} {
		_, err := svc.CompleteSet(ctx, sess.ID, setLog)
		require.ErrorIs(t, err, session.ErrValidation, "case: %s", name)
	}
}

func TestService_SnapshotVersionMonotonic(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	lastVersion := sess.Snapshot.Version

	for _, step := range []func() (*session.Session, error){
		func() (*session.Session, error) { return svc.Start(ctx, sess.ID) },
		func() (*session.Session, error) { return svc.StartExercise(ctx, sess.ID, 0) },
		func() (*session.Session, error) { return svc.Pause(ctx, sess.ID) },
		func() (*session.Session, error) { return svc.Resume(ctx, sess.ID) },
		func() (*session.Session, error) { return svc.Complete(ctx, sess.ID) },
	} {
		current, err := step()
		require.NoError(t, err)
		assert.Greater(t, current.Snapshot.Version, lastVersion)
		lastVersion = current.Snapshot.Version
	}
}

func TestService_UnknownSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, uuid.New())
	require.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = svc.Get(ctx, uuid.New())
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}
