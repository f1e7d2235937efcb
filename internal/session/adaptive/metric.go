package adaptive

import (
	"time"

	"github.com/google/uuid"
)

// modelVersion stamps metric rows so a future formula change can
// re-learn stale rows lazily.
const modelVersion = 1

// UserMetric is the learned per (user, exercise) state. One row per
// pair, upserted after every completed session that touched the
// exercise, never deleted.
type UserMetric struct {
	UserID     uuid.UUID `json:"userId"`
	ExerciseID uuid.UUID `json:"exerciseId"`

	PreferredRestSeconds float64 `json:"preferredRestSeconds"`
	RestVariance         float64 `json:"restVariance"`
	PreferredRepsMin     int     `json:"preferredRepsMin"`
	PreferredRepsMax     int     `json:"preferredRepsMax"`

	EstimatedOneRepMax float64 `json:"estimatedOneRepMax"`
	// ProgressionRate is the smoothed percent change of the 1RM
	// estimate between sessions
	ProgressionRate float64 `json:"progressionRate"`

	LifetimeSessions int     `json:"lifetimeSessions"`
	LifetimeSets     int     `json:"lifetimeSets"`
	LifetimeReps     int     `json:"lifetimeReps"`
	LifetimeVolume   float64 `json:"lifetimeVolume"`

	AvgEffort float64 `json:"avgEffort"`
	AvgForm   float64 `json:"avgForm"`
	// ConsistencyScore is 0-100, fed by completion ratios
	ConsistencyScore float64 `json:"consistencyScore"`
	SkipRate         float64 `json:"skipRate"`

	Confidence       float64   `json:"confidence"`
	ModelVersion     int       `json:"modelVersion"`
	LastCalculatedAt time.Time `json:"lastCalculatedAt"`
}
