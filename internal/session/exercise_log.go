package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ExerciseStatus string

const (
	ExerciseStatusPending    ExerciseStatus = "pending"
	ExerciseStatusInProgress ExerciseStatus = "in_progress"
	ExerciseStatusCompleted  ExerciseStatus = "completed"
	ExerciseStatusSkipped    ExerciseStatus = "skipped"
	ExerciseStatusFailed     ExerciseStatus = "failed"
)

func (s ExerciseStatus) IsValid() bool {
	switch s {
	case ExerciseStatusPending, ExerciseStatusInProgress,
		ExerciseStatusCompleted, ExerciseStatusSkipped, ExerciseStatusFailed:
		return true
	default:
		return false
	}
}

func (s ExerciseStatus) IsTerminal() bool {
	switch s {
	case ExerciseStatusCompleted, ExerciseStatusSkipped, ExerciseStatusFailed:
		return true
	default:
		return false
	}
}

// SkipReason is persisted with a skipped exercise so the adaptive
// engine can learn from it later.
type SkipReason string

const (
	SkipReasonFatigue    SkipReason = "fatigue"
	SkipReasonInjury     SkipReason = "injury"
	SkipReasonEquipment  SkipReason = "equipment_unavailable"
	SkipReasonTime       SkipReason = "out_of_time"
	SkipReasonPreference SkipReason = "preference"
)

// ExerciseLog is one planned exercise instance within a session,
// created when the session's workout plan is loaded.
type ExerciseLog struct {
	ID         uuid.UUID      `json:"id"`
	SessionID  uuid.UUID      `json:"sessionId"`
	ExerciseID uuid.UUID      `json:"exerciseId"`
	Position   int            `json:"position"`
	Status     ExerciseStatus `json:"status"`

	TargetSets            int `json:"targetSets"`
	TargetReps            int `json:"targetReps"`
	TargetDurationSeconds int `json:"targetDurationSeconds"`
	TargetRestSeconds     int `json:"targetRestSeconds"`

	SetsCompleted int     `json:"setsCompleted"`
	TotalVolume   float64 `json:"totalVolume"`
	TotalReps     int     `json:"totalReps"`
	AvgEffort     float64 `json:"avgEffort"`
	PeakEffort    int     `json:"peakEffort"`
	// RatedSets counts the sets that came with an effort rating, so the
	// running AvgEffort ignores unrated sets
	RatedSets int `json:"ratedSets"`

	SkipReason          SkipReason `json:"skipReason,omitempty"`
	SkipNotes           string     `json:"skipNotes,omitempty"`
	SubstituteID        *uuid.UUID `json:"substituteId,omitempty"`
	SubstituteCompleted bool       `json:"substituteCompleted"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type SetType string

const (
	SetTypeWorking SetType = "working"
	SetTypeWarmup  SetType = "warmup"
	SetTypeDrop    SetType = "drop"
	SetTypeFailure SetType = "failure"
)

func (t SetType) IsValid() bool {
	switch t {
	case SetTypeWorking, SetTypeWarmup, SetTypeDrop, SetTypeFailure:
		return true
	default:
		return false
	}
}

// SetLog is one attempted set, an append-only child of an ExerciseLog.
// Immutable once written, except for the completed_at stamp.
type SetLog struct {
	ID            uuid.UUID `json:"id"`
	ExerciseLogID uuid.UUID `json:"exerciseLogId"`
	SetNumber     int       `json:"setNumber"`
	SetType       SetType   `json:"setType"`

	RepsTarget    int     `json:"repsTarget"`
	RepsCompleted int     `json:"repsCompleted"`
	WeightKilos   float64 `json:"weightKilos"`

	DurationTargetSeconds int `json:"durationTargetSeconds"`
	DurationSeconds       int `json:"durationSeconds"`

	RestTargetSeconds int `json:"restTargetSeconds"`
	RestSeconds       int `json:"restSeconds"`
	// RestQuality is a subjective 1-5 rating, 0 when not reported
	RestQuality int `json:"restQuality,omitempty"`

	// EffortRating is the RPE of the set, 1-10, 0 when not reported
	EffortRating int `json:"effortRating,omitempty"`
	// FormQuality is a subjective 1-5 rating, 0 when not reported
	FormQuality int `json:"formQuality,omitempty"`

	ReachedFailure          bool   `json:"reachedFailure"`
	Tempo                   string `json:"tempo,omitempty"`
	TimeUnderTensionSeconds int    `json:"timeUnderTensionSeconds"`
	Notes                   string `json:"notes,omitempty"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Validate checks the documented rating ranges. Zero values mean the
// rating was not reported and are allowed.
func (s *SetLog) Validate() error {
	if !s.SetType.IsValid() {
		return fmt.Errorf("invalid set type: %q", s.SetType)
	}
	if s.EffortRating != 0 && (s.EffortRating < 1 || s.EffortRating > 10) {
		return fmt.Errorf("effort rating must be between 1 and 10, got %d", s.EffortRating)
	}
	if s.FormQuality != 0 && (s.FormQuality < 1 || s.FormQuality > 5) {
		return fmt.Errorf("form quality must be between 1 and 5, got %d", s.FormQuality)
	}
	if s.RestQuality != 0 && (s.RestQuality < 1 || s.RestQuality > 5) {
		return fmt.Errorf("rest quality must be between 1 and 5, got %d", s.RestQuality)
	}
	if s.RepsCompleted < 0 {
		return fmt.Errorf("reps completed must not be negative, got %d", s.RepsCompleted)
	}
	if s.WeightKilos < 0 {
		return fmt.Errorf("weight must not be negative, got %.2f", s.WeightKilos)
	}
	return nil
}

// Volume is the weight lifted in this set, in kilos.
func (s *SetLog) Volume() float64 {
	return s.WeightKilos * float64(s.RepsCompleted)
}
