package session

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/fitsession/internal/plan"
	"github.com/2beens/fitsession/internal/telemetry/tracing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type sessionRepo interface {
	CreateSession(ctx context.Context, s *Session, logs []ExerciseLog) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	UpdateSession(ctx context.Context, s *Session) error
	ListExerciseLogs(ctx context.Context, sessionID uuid.UUID) ([]ExerciseLog, error)
	GetExerciseLogAt(ctx context.Context, sessionID uuid.UUID, position int) (*ExerciseLog, error)
	UpdateExerciseLog(ctx context.Context, exLog *ExerciseLog) error
	AddSetLog(ctx context.Context, setLog SetLog) (*SetLog, error)
	ListSetLogs(ctx context.Context, sessionID uuid.UUID) ([]SetLog, error)
}

type planProvider interface {
	Get(ctx context.Context, workoutID uuid.UUID) (*plan.Plan, error)
}

type snapshotStore interface {
	Save(ctx context.Context, snapshot RealtimeSnapshot) error
}

// Service is the session state machine. It owns all session mutations:
// every transition validates the current state, applies the change and
// persists it. The service itself is stateless and safe for concurrent
// use across different sessions; per session, commands are expected to
// arrive in order from the single device owning the session.
//
// Analytics recomputation is deliberately not triggered here, that is
// the caller's concern.
type Service struct {
	repo      sessionRepo
	plans     planProvider
	snapshots snapshotStore
	now       func() time.Time
}

type ServiceOption func(*Service)

// WithClock replaces the time source, used in tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(
	repo sessionRepo,
	plans planProvider,
	snapshots snapshotStore,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		repo:      repo,
		plans:     plans,
		snapshots: snapshots,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create makes a new Session in idle state, with one ExerciseLog per
// planned exercise and zeroed counters.
func (s *Service) Create(ctx context.Context, userID, workoutID uuid.UUID) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID.String()))
	span.SetAttributes(attribute.String("workout.id", workoutID.String()))

	workoutPlan, err := s.plans.Get(ctx, workoutID)
	if err != nil {
		return nil, fmt.Errorf("get workout plan: %w", err)
	}

	now := s.now()
	sess := &Session{
		ID:                       uuid.New(),
		UserID:                   userID,
		WorkoutID:                workoutID,
		State:                    StateIdle,
		CurrentPhase:             PhaseWarmup,
		TotalExercises:           len(workoutPlan.Exercises),
		TotalSets:                workoutPlan.TotalSets(),
		EstimatedDurationSeconds: workoutPlan.EstimatedDurationSeconds,
		CooldownSeconds:          workoutPlan.CooldownSeconds,
		Goal:                     workoutPlan.Goal,
		CreatedAt:                now,
	}
	sess.refreshSnapshot(now)

	exerciseLogs := make([]ExerciseLog, 0, len(workoutPlan.Exercises))
	for _, planned := range workoutPlan.Exercises {
		exerciseLogs = append(exerciseLogs, ExerciseLog{
			ID:                    uuid.New(),
			SessionID:             sess.ID,
			ExerciseID:            planned.ExerciseID,
			Position:              planned.Position,
			Status:                ExerciseStatusPending,
			TargetSets:            planned.Sets,
			TargetReps:            planned.Reps,
			TargetDurationSeconds: planned.DurationSeconds,
			TargetRestSeconds:     planned.RestSeconds,
		})
	}

	if err := s.repo.CreateSession(ctx, sess, exerciseLogs); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.saveSnapshot(ctx, sess)
	return sess, nil
}

// Start moves an idle session into warmup, or straight into exercise
// when the plan has no warmup phase.
func (s *Service) Start(ctx context.Context, sessionID uuid.UUID) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.start")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if sess.State != StateIdle {
		return nil, newInvalidTransition(sess.State, "start")
	}

	workoutPlan, err := s.plans.Get(ctx, sess.WorkoutID)
	if err != nil {
		return nil, fmt.Errorf("get workout plan: %w", err)
	}

	now := s.now()
	sess.StartedAt = &now
	if workoutPlan.HasWarmup() {
		sess.State = StateWarmup
		sess.CurrentPhase = PhaseWarmup
	} else {
		sess.State = StateExercise
		sess.CurrentPhase = PhaseExercise
	}

	return s.persist(ctx, sess, now)
}

// Pause is reachable from warmup, exercise and rest. It opens a new
// pause interval; Resume closes it and restores the interrupted state.
func (s *Service) Pause(ctx context.Context, sessionID uuid.UUID) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.pause")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	switch sess.State {
	case StateWarmup, StateExercise, StateRest:
	default:
		return nil, newInvalidTransition(sess.State, "pause")
	}

	now := s.now()
	sess.ResumeState = sess.State
	sess.State = StatePaused
	sess.PausedAt = &now
	sess.PauseIntervals = append(sess.PauseIntervals, PauseInterval{PausedAt: now})

	return s.persist(ctx, sess, now)
}

func (s *Service) Resume(ctx context.Context, sessionID uuid.UUID) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.resume")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if sess.State != StatePaused {
		return nil, newInvalidTransition(sess.State, "resume")
	}

	now := s.now()
	s.closeOpenPauseInterval(sess, now)
	sess.State = sess.ResumeState
	sess.ResumeState = ""
	sess.ResumedAt = &now

	return s.persist(ctx, sess, now)
}

// StartExercise marks the exercise log at the given position as in
// progress and makes it the session's current exercise.
func (s *Service) StartExercise(ctx context.Context, sessionID uuid.UUID, index int) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.startexercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))
	span.SetAttributes(attribute.Int("exercise.index", index))

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	switch sess.State {
	case StateWarmup, StateExercise, StateRest:
	default:
		return nil, newInvalidTransition(sess.State, "start an exercise")
	}

	if index < 0 || index >= sess.TotalExercises {
		return nil, fmt.Errorf("%w: exercise index %d out of range", ErrExerciseLogNotFound, index)
	}

	exLog, err := s.repo.GetExerciseLogAt(ctx, sessionID, index)
	if err != nil {
		return nil, fmt.Errorf("get exercise log: %w", err)
	}
	if exLog.Status != ExerciseStatusPending {
		return nil, newInvalidTransition(sess.State, fmt.Sprintf("start exercise %d with status %s", index, exLog.Status))
	}

	now := s.now()
	if sess.State == StateWarmup && sess.StartedAt != nil {
		sess.WarmupSeconds = sess.ElapsedSecondsAt(now) - sess.PausedSecondsAt(now)
	}

	exLog.Status = ExerciseStatusInProgress
	exLog.StartedAt = &now
	if err := s.repo.UpdateExerciseLog(ctx, exLog); err != nil {
		return nil, fmt.Errorf("update exercise log: %w", err)
	}

	sess.State = StateExercise
	sess.CurrentPhase = PhaseExercise
	sess.CurrentExerciseIndex = index
	sess.CurrentSetIndex = 0
	sess.RestStartedAt = nil

	return s.persist(ctx, sess, now)
}

// CompleteSetResult reports what a completed set did to the session.
type CompleteSetResult struct {
	Session           *Session     `json:"session"`
	ExerciseLog       *ExerciseLog `json:"exerciseLog"`
	SetLog            *SetLog      `json:"setLog"`
	ExerciseCompleted bool         `json:"exerciseCompleted"`
	SessionCompleted  bool         `json:"sessionCompleted"`
}

// CompleteSet appends a set log to the current exercise and updates the
// running totals. With sets remaining on the exercise the session moves
// to rest; otherwise the exercise is completed and the session advances
// to the next exercise, or to completion when none remain.
func (s *Service) CompleteSet(ctx context.Context, sessionID uuid.UUID, setLog SetLog) (_ *CompleteSetResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.completeset")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	// a set can be finished while exercising, or straight out of rest
	// (resting between sets ends implicitly with the next set)
	if sess.State != StateExercise && sess.State != StateRest {
		return nil, newInvalidTransition(sess.State, "complete a set")
	}

	if err := setLog.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	exLog, err := s.repo.GetExerciseLogAt(ctx, sessionID, sess.CurrentExerciseIndex)
	if err != nil {
		return nil, fmt.Errorf("get exercise log: %w", err)
	}
	if exLog.Status != ExerciseStatusInProgress {
		return nil, newInvalidTransition(sess.State, fmt.Sprintf("complete a set on a %s exercise", exLog.Status))
	}
	if exLog.SetsCompleted >= exLog.TargetSets {
		return nil, newInvalidTransition(sess.State, "complete a set beyond the planned set count")
	}

	now := s.now()
	if sess.State == StateRest && sess.RestStartedAt != nil {
		setLog.RestSeconds = int(now.Sub(*sess.RestStartedAt).Seconds())
		setLog.RestTargetSeconds = sess.RestTargetSeconds
		sess.RestStartedAt = nil
	}

	setLog.ID = uuid.New()
	setLog.ExerciseLogID = exLog.ID
	setLog.SetNumber = exLog.SetsCompleted + 1
	setLog.CompletedAt = &now

	addedSet, err := s.repo.AddSetLog(ctx, setLog)
	if err != nil {
		return nil, fmt.Errorf("add set log: %w", err)
	}

	exLog.SetsCompleted++
	exLog.TotalVolume += setLog.Volume()
	exLog.TotalReps += setLog.RepsCompleted
	if setLog.EffortRating > 0 {
		exLog.RatedSets++
		exLog.AvgEffort += (float64(setLog.EffortRating) - exLog.AvgEffort) / float64(exLog.RatedSets)
		if setLog.EffortRating > exLog.PeakEffort {
			exLog.PeakEffort = setLog.EffortRating
		}
	}

	sess.SetsCompleted++
	sess.TotalVolume += setLog.Volume()
	sess.TotalReps += setLog.RepsCompleted

	result := &CompleteSetResult{SetLog: addedSet}

	if exLog.SetsCompleted >= exLog.TargetSets {
		exLog.Status = ExerciseStatusCompleted
		exLog.CompletedAt = &now
		sess.ExercisesCompleted++
		sess.CurrentExerciseIndex++
		sess.CurrentSetIndex = 0
		sess.State = StateExercise
		sess.CurrentPhase = PhaseExercise
		result.ExerciseCompleted = true

		if sess.CurrentExerciseIndex >= sess.TotalExercises {
			s.finish(sess, now)
			result.SessionCompleted = true
		}
	} else {
		sess.CurrentSetIndex = exLog.SetsCompleted
		sess.State = StateRest
		sess.CurrentPhase = PhaseRest
		sess.RestStartedAt = &now
		sess.RestTargetSeconds = exLog.TargetRestSeconds
	}

	if err := s.repo.UpdateExerciseLog(ctx, exLog); err != nil {
		return nil, fmt.Errorf("update exercise log: %w", err)
	}

	persisted, err := s.persist(ctx, sess, now)
	if err != nil {
		return nil, err
	}

	result.Session = persisted
	result.ExerciseLog = exLog
	return result, nil
}

// SkipExercise marks the current exercise as skipped, keeping the
// reason for later adaptive learning, and advances the session.
func (s *Service) SkipExercise(
	ctx context.Context,
	sessionID uuid.UUID,
	reason SkipReason,
	notes string,
) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.skipexercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))
	span.SetAttributes(attribute.String("skip.reason", string(reason)))

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	switch sess.State {
	case StateWarmup, StateExercise, StateRest:
	default:
		return nil, newInvalidTransition(sess.State, "skip an exercise")
	}

	if sess.CurrentExerciseIndex >= sess.TotalExercises {
		return nil, fmt.Errorf("%w: no exercise left to skip", ErrExerciseLogNotFound)
	}

	exLog, err := s.repo.GetExerciseLogAt(ctx, sessionID, sess.CurrentExerciseIndex)
	if err != nil {
		return nil, fmt.Errorf("get exercise log: %w", err)
	}
	if exLog.Status.IsTerminal() {
		return nil, newInvalidTransition(sess.State, fmt.Sprintf("skip a %s exercise", exLog.Status))
	}

	now := s.now()
	exLog.Status = ExerciseStatusSkipped
	exLog.SkipReason = reason
	exLog.SkipNotes = notes
	exLog.CompletedAt = &now
	if err := s.repo.UpdateExerciseLog(ctx, exLog); err != nil {
		return nil, fmt.Errorf("update exercise log: %w", err)
	}

	sess.CurrentExerciseIndex++
	sess.CurrentSetIndex = 0
	sess.RestStartedAt = nil
	sess.State = StateExercise
	sess.CurrentPhase = PhaseExercise

	if sess.CurrentExerciseIndex >= sess.TotalExercises {
		s.finish(sess, now)
	}

	return s.persist(ctx, sess, now)
}

// StartRest enters the rest phase explicitly, e.g. for an extra break
// between exercises.
func (s *Service) StartRest(ctx context.Context, sessionID uuid.UUID, targetSeconds int) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.startrest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if sess.State != StateExercise {
		return nil, newInvalidTransition(sess.State, "start rest")
	}

	now := s.now()
	sess.State = StateRest
	sess.CurrentPhase = PhaseRest
	sess.RestStartedAt = &now
	sess.RestTargetSeconds = targetSeconds

	return s.persist(ctx, sess, now)
}

// SkipRest ends the rest phase early. The shortfall versus the
// recommended rest is recorded for later consistency scoring.
func (s *Service) SkipRest(ctx context.Context, sessionID uuid.UUID) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.skiprest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if sess.State != StateRest {
		return nil, newInvalidTransition(sess.State, "skip rest")
	}

	now := s.now()
	if sess.RestStartedAt != nil {
		restedSeconds := int(now.Sub(*sess.RestStartedAt).Seconds())
		if shortfall := sess.RestTargetSeconds - restedSeconds; shortfall > 0 {
			sess.RestPeriodsSkipped++
			sess.RestShortfallSeconds += shortfall
		}
	}

	sess.State = StateExercise
	sess.CurrentPhase = PhaseExercise
	sess.RestStartedAt = nil
	sess.RestTargetSeconds = 0

	return s.persist(ctx, sess, now)
}

// Complete ends the session. Valid from any active state, including
// paused (the open pause interval is closed first).
func (s *Service) Complete(ctx context.Context, sessionID uuid.UUID) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.complete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	switch sess.State {
	case StateWarmup, StateExercise, StateRest, StatePaused:
	default:
		return nil, newInvalidTransition(sess.State, "complete")
	}

	now := s.now()
	s.finish(sess, now)
	return s.persist(ctx, sess, now)
}

// Cancel abandons the session. Valid from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, sessionID uuid.UUID) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.cancel")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if sess.State.IsTerminal() {
		return nil, newInvalidTransition(sess.State, "cancel")
	}

	now := s.now()
	s.closeOpenPauseInterval(sess, now)
	sess.State = StateCancelled
	sess.CancelledAt = &now
	if sess.StartedAt != nil {
		sess.TotalDurationSeconds = sess.ElapsedSecondsAt(now)
		sess.ActiveDurationSeconds = sess.TotalDurationSeconds - sess.TotalPausedSeconds
	}

	return s.persist(ctx, sess, now)
}

// SubmitFeedback stores the post-hoc subjective ratings (all 1-5).
func (s *Service) SubmitFeedback(
	ctx context.Context,
	sessionID uuid.UUID,
	difficulty, energy, mood int,
) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.session.submitfeedback")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	for name, rating := range map[string]int{
		"difficulty": difficulty,
		"energy":     energy,
		"mood":       mood,
	} {
		if rating < 1 || rating > 5 {
			return nil, fmt.Errorf("%w: %s rating must be between 1 and 5, got %d", ErrValidation, name, rating)
		}
	}

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if sess.State != StateCompleted {
		return nil, newInvalidTransition(sess.State, "submit feedback")
	}

	sess.DifficultyRating = difficulty
	sess.EnergyRating = energy
	sess.MoodRating = mood

	return s.persist(ctx, sess, s.now())
}

func (s *Service) Get(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	return s.repo.GetSession(ctx, sessionID)
}

func (s *Service) ExerciseLogs(ctx context.Context, sessionID uuid.UUID) ([]ExerciseLog, error) {
	return s.repo.ListExerciseLogs(ctx, sessionID)
}

func (s *Service) SetLogs(ctx context.Context, sessionID uuid.UUID) ([]SetLog, error) {
	return s.repo.ListSetLogs(ctx, sessionID)
}

func (s *Service) finish(sess *Session, now time.Time) {
	s.closeOpenPauseInterval(sess, now)
	sess.State = StateCompleted
	sess.CurrentPhase = PhaseCooldown
	sess.CompletedAt = &now
	sess.RestStartedAt = nil
	if sess.StartedAt != nil {
		sess.TotalDurationSeconds = sess.ElapsedSecondsAt(now)
		sess.ActiveDurationSeconds = sess.TotalDurationSeconds - sess.TotalPausedSeconds
	}
}

func (s *Service) closeOpenPauseInterval(sess *Session, now time.Time) {
	open := sess.ActivePauseInterval()
	if open == nil {
		return
	}
	resumedAt := now
	open.ResumedAt = &resumedAt
	sess.TotalPausedSeconds += int(now.Sub(open.PausedAt).Seconds())
}

// persist writes the updated session and pushes a fresh realtime
// snapshot. On a failed write the in-memory projection is discarded by
// the caller, so a retry starts from the last confirmed state.
func (s *Service) persist(ctx context.Context, sess *Session, now time.Time) (*Session, error) {
	sess.refreshSnapshot(now)
	if err := s.repo.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	s.saveSnapshot(ctx, sess)
	return sess, nil
}

func (s *Service) saveSnapshot(ctx context.Context, sess *Session) {
	if s.snapshots == nil {
		return
	}
	// snapshots are advisory, a failed save must not fail the command
	if err := s.snapshots.Save(ctx, sess.Snapshot); err != nil {
		log.Warnf("failed to save session %s snapshot: %s", sess.ID, err)
	}
}
