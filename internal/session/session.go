package session

import (
	"time"

	"github.com/google/uuid"
)

// State is the top level lifecycle state of a workout session:
//
//	idle -> warmup -> exercise <-> rest -> { completed | cancelled }
//
// paused is reachable from warmup, exercise and rest, and resumes back
// to the state it interrupted. completed and cancelled are terminal.
type State string

const (
	StateIdle      State = "idle"
	StateWarmup    State = "warmup"
	StateExercise  State = "exercise"
	StateRest      State = "rest"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

func (s State) String() string {
	return string(s)
}

func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateWarmup, StateExercise,
		StateRest, StatePaused, StateCompleted, StateCancelled:
		return true
	default:
		return false
	}
}

func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Phase is the in-workout phase, orthogonal to the lifecycle state
// (a paused session keeps the phase it will resume into).
type Phase string

const (
	PhaseWarmup   Phase = "warmup"
	PhaseExercise Phase = "exercise"
	PhaseRest     Phase = "rest"
	PhaseCooldown Phase = "cooldown"
)

// PauseInterval is one pause/resume round trip. ResumedAt is nil while
// the session is still paused. Intervals never overlap.
type PauseInterval struct {
	PausedAt  time.Time  `json:"pausedAt"`
	ResumedAt *time.Time `json:"resumedAt,omitempty"`
}

// RealtimeSnapshot is the versioned snapshot pushed to the snapshot
// store after every mutation, used by the client for fast optimistic
// sync. Consumers detect staleness by comparing Version.
type RealtimeSnapshot struct {
	SessionID            uuid.UUID `json:"sessionId"`
	Version              int64     `json:"version"`
	State                State     `json:"state"`
	Phase                Phase     `json:"phase"`
	CurrentExerciseIndex int       `json:"currentExerciseIndex"`
	CurrentSetIndex      int       `json:"currentSetIndex"`
	SetsCompleted        int       `json:"setsCompleted"`
	TotalVolume          float64   `json:"totalVolume"`
	TotalReps            int       `json:"totalReps"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Session is one workout attempt. It is owned by the state machine
// service and mutated only through its transition operations.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	WorkoutID uuid.UUID `json:"workoutId"`

	State        State `json:"state"`
	CurrentPhase Phase `json:"currentPhase"`
	// ResumeState remembers the state a pause interrupted
	ResumeState State `json:"resumeState,omitempty"`

	CurrentExerciseIndex int `json:"currentExerciseIndex"`
	CurrentSetIndex      int `json:"currentSetIndex"`

	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`

	PausedAt           *time.Time      `json:"pausedAt,omitempty"`
	ResumedAt          *time.Time      `json:"resumedAt,omitempty"`
	TotalPausedSeconds int             `json:"totalPausedSeconds"`
	PauseIntervals     []PauseInterval `json:"pauseIntervals"`

	TotalDurationSeconds  int `json:"totalDurationSeconds"`
	ActiveDurationSeconds int `json:"activeDurationSeconds"`
	WarmupSeconds         int `json:"warmupSeconds"`
	CooldownSeconds       int `json:"cooldownSeconds"`

	// planned totals, frozen at creation time from the workout plan
	TotalExercises           int `json:"totalExercises"`
	TotalSets                int `json:"totalSets"`
	EstimatedDurationSeconds int `json:"estimatedDurationSeconds"`
	// Goal comes from the plan and drives adaptive rest baselines
	Goal string `json:"goal"`

	ExercisesCompleted int     `json:"exercisesCompleted"`
	SetsCompleted      int     `json:"setsCompleted"`
	TotalVolume        float64 `json:"totalVolume"`
	TotalReps          int     `json:"totalReps"`
	CaloriesBurned     float64 `json:"caloriesBurned"`

	// rest bookkeeping for the current rest period
	RestStartedAt        *time.Time `json:"restStartedAt,omitempty"`
	RestTargetSeconds    int        `json:"restTargetSeconds"`
	RestPeriodsSkipped   int        `json:"restPeriodsSkipped"`
	RestShortfallSeconds int        `json:"restShortfallSeconds"`

	Snapshot RealtimeSnapshot `json:"snapshot"`

	// post-hoc subjective feedback, all 1-5, 0 when not given
	DifficultyRating int `json:"difficultyRating,omitempty"`
	EnergyRating     int `json:"energyRating,omitempty"`
	MoodRating       int `json:"moodRating,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// ActivePauseInterval returns the open pause interval, or nil if the
// session is not paused.
func (s *Session) ActivePauseInterval() *PauseInterval {
	if len(s.PauseIntervals) == 0 {
		return nil
	}
	last := &s.PauseIntervals[len(s.PauseIntervals)-1]
	if last.ResumedAt == nil {
		return last
	}
	return nil
}

// PausedSecondsAt returns the cumulative paused seconds as of the given
// moment, including a still-open pause interval.
func (s *Session) PausedSecondsAt(now time.Time) int {
	paused := s.TotalPausedSeconds
	if open := s.ActivePauseInterval(); open != nil {
		paused += int(now.Sub(open.PausedAt).Seconds())
	}
	return paused
}

// ElapsedSecondsAt returns the wall clock seconds since the session
// start, frozen at completion/cancellation for terminal sessions.
func (s *Session) ElapsedSecondsAt(now time.Time) int {
	if s.StartedAt == nil {
		return 0
	}
	end := now
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	} else if s.CancelledAt != nil {
		end = *s.CancelledAt
	}
	return int(end.Sub(*s.StartedAt).Seconds())
}

func (s *Session) refreshSnapshot(now time.Time) {
	s.Snapshot = RealtimeSnapshot{
		SessionID:            s.ID,
		Version:              s.Snapshot.Version + 1,
		State:                s.State,
		Phase:                s.CurrentPhase,
		CurrentExerciseIndex: s.CurrentExerciseIndex,
		CurrentSetIndex:      s.CurrentSetIndex,
		SetsCompleted:        s.SetsCompleted,
		TotalVolume:          s.TotalVolume,
		TotalReps:            s.TotalReps,
		UpdatedAt:            now,
	}
}
