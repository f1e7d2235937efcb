package plan

import (
	"github.com/google/uuid"
)

// Plan is the ordered list of planned exercises for one workout,
// as authored in the workout catalog.
type Plan struct {
	WorkoutID                uuid.UUID          `json:"workoutId"`
	Name                     string             `json:"name"`
	Goal                     string             `json:"goal"` // strength | hypertrophy | endurance
	WarmupSeconds            int                `json:"warmupSeconds"`
	CooldownSeconds          int                `json:"cooldownSeconds"`
	EstimatedDurationSeconds int                `json:"estimatedDurationSeconds"`
	Exercises                []PlannedExercise  `json:"exercises"`
}

type PlannedExercise struct {
	ExerciseID uuid.UUID `json:"exerciseId"`
	Position   int       `json:"position"`
	Sets       int       `json:"sets"`
	Reps       int       `json:"reps"`
	// DurationSeconds is set for timed exercises (e.g. planks) instead of reps
	DurationSeconds int `json:"durationSeconds"`
	RestSeconds     int `json:"restSeconds"`
}

func (p *Plan) TotalSets() int {
	total := 0
	for _, ex := range p.Exercises {
		total += ex.Sets
	}
	return total
}

func (p *Plan) HasWarmup() bool {
	return p.WarmupSeconds > 0
}
