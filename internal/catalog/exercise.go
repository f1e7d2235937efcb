package catalog

import (
	"github.com/google/uuid"
)

// Exercise is one entry of the read-only exercise catalog.
// The catalog is maintained by the content team outside of this service.
type Exercise struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	// Category groups exercises, e.g. "push", "pull", "legs", "core"
	Category string `json:"category"`
	// DifficultyTier goes from 1 (easiest) to 5 (hardest)
	DifficultyTier int      `json:"difficultyTier"`
	MuscleGroups   []string `json:"muscleGroups"`
}

// MuscleOverlapRatio returns the share of this exercise's muscle groups
// also worked by the other exercise, in [0,1].
func (e Exercise) MuscleOverlapRatio(other Exercise) float64 {
	if len(e.MuscleGroups) == 0 {
		return 0
	}

	otherMuscles := make(map[string]bool, len(other.MuscleGroups))
	for _, m := range other.MuscleGroups {
		otherMuscles[m] = true
	}

	overlap := 0
	for _, m := range e.MuscleGroups {
		if otherMuscles[m] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(e.MuscleGroups))
}
