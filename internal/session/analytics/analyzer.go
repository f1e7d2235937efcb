package analytics

import (
	"time"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/pkg"

	"github.com/google/uuid"
)

// Config holds the scoring weights and physiological constants. The
// zero value is not usable, always start from DefaultConfig.
type Config struct {
	// AssumedBodyWeightKilos stands in for the real user profile
	// weight in the calorie model. Known approximation.
	AssumedBodyWeightKilos float64
	IdealDurationSeconds   int
	CaloriesPerRep         float64
	MetCalorieWeight       float64
	RepCalorieWeight       float64

	WeightCompletion  float64
	WeightVolume      float64
	WeightIntensity   float64
	WeightConsistency float64
	WeightEfficiency  float64
	WeightProgression float64

	StatsCacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		AssumedBodyWeightKilos: 75,
		IdealDurationSeconds:   45 * 60,
		CaloriesPerRep:         0.35,
		MetCalorieWeight:       0.7,
		RepCalorieWeight:       0.3,

		WeightCompletion:  0.25,
		WeightVolume:      0.20,
		WeightIntensity:   0.20,
		WeightConsistency: 0.15,
		WeightEfficiency:  0.10,
		WeightProgression: 0.10,

		StatsCacheTTL: 3 * time.Second,
	}
}

// LiveStats is the advisory, eventually consistent view of a running
// session. Recomputed on demand and memoized for a few seconds.
type LiveStats struct {
	SessionID uuid.UUID     `json:"sessionId"`
	State     session.State `json:"state"`

	ElapsedSeconds int `json:"elapsedSeconds"`
	ActiveSeconds  int `json:"activeSeconds"`
	PausedSeconds  int `json:"pausedSeconds"`

	TotalVolume float64 `json:"totalVolume"`
	TotalReps   int     `json:"totalReps"`
	AvgEffort   float64 `json:"avgEffort"`
	// Intensity is in [0,1]: avg effort / 10 when effort ratings
	// exist, otherwise a reps-vs-target fallback
	Intensity      float64 `json:"intensity"`
	CaloriesBurned float64 `json:"caloriesBurned"`

	SetsCompleted      int     `json:"setsCompleted"`
	TotalSets          int     `json:"totalSets"`
	ExercisesCompleted int     `json:"exercisesCompleted"`
	TotalExercises     int     `json:"totalExercises"`
	CompletionPercent  float64 `json:"completionPercent"`

	EstimatedSecondsRemaining int `json:"estimatedSecondsRemaining"`

	PerformanceScore int       `json:"performanceScore"`
	SubScores        SubScores `json:"subScores"`

	ComputedAt time.Time `json:"computedAt"`
}

// Analyzer derives statistics from session state and logs. It is
// stateless apart from its configuration and safe for concurrent use.
type Analyzer struct {
	config Config
}

func NewAnalyzer(config Config) *Analyzer {
	return &Analyzer{
		config: config,
	}
}

// LiveStatsAt computes the full live-stat block as of the given moment.
// The previous session is optional and only affects the volume-progress
// sub-score; pass nil when there is no comparable history.
func (a *Analyzer) LiveStatsAt(
	sess *session.Session,
	setLogs []session.SetLog,
	previous *session.Session,
	now time.Time,
) *LiveStats {
	elapsed := sess.ElapsedSecondsAt(now)
	paused := sess.PausedSecondsAt(now)
	active := elapsed - paused
	if active < 0 {
		active = 0
	}

	intensity := a.intensity(setLogs)
	completionPercent := completionPercent(sess)

	stats := &LiveStats{
		SessionID: sess.ID,
		State:     sess.State,

		ElapsedSeconds: elapsed,
		ActiveSeconds:  active,
		PausedSeconds:  paused,

		TotalVolume: sess.TotalVolume,
		TotalReps:   sess.TotalReps,
		AvgEffort:   avgEffort(setLogs),
		Intensity:   intensity,

		SetsCompleted:      sess.SetsCompleted,
		TotalSets:          sess.TotalSets,
		ExercisesCompleted: sess.ExercisesCompleted,
		TotalExercises:     sess.TotalExercises,
		CompletionPercent:  completionPercent,

		ComputedAt: now,
	}

	stats.CaloriesBurned = a.calories(intensity, active, sess.TotalReps)
	stats.EstimatedSecondsRemaining = a.estimatedSecondsRemaining(sess, elapsed, completionPercent)
	stats.SubScores = a.subScores(sess, setLogs, previous, active)
	stats.PerformanceScore = a.weightedScore(stats.SubScores)

	return stats
}

// intensity returns the [0,1] effort measure. With effort ratings it is
// the average rating over 10; without any it falls back to how close
// completed reps came to their targets, each set capped at 120% before
// averaging.
func (a *Analyzer) intensity(setLogs []session.SetLog) float64 {
	if avg := avgEffort(setLogs); avg > 0 {
		return pkg.Clamp(avg/10, 0, 1)
	}

	var ratioSum float64
	var ratioCount int
	for i := range setLogs {
		if setLogs[i].RepsTarget <= 0 {
			continue
		}
		ratio := float64(setLogs[i].RepsCompleted) / float64(setLogs[i].RepsTarget)
		ratioSum += pkg.Clamp(ratio, 0, 1.2)
		ratioCount++
	}
	if ratioCount == 0 {
		return 0
	}
	return pkg.Clamp(ratioSum/float64(ratioCount), 0, 1)
}

// calories blends a METs based estimate (70%) with a simple per-rep
// estimate (30%). The body weight is the documented 75kg assumption,
// not the user's real weight.
func (a *Analyzer) calories(intensity float64, activeSeconds, totalReps int) float64 {
	activeHours := float64(activeSeconds) / 3600
	metEstimate := metTier(intensity) * a.config.AssumedBodyWeightKilos * activeHours
	repEstimate := float64(totalReps) * a.config.CaloriesPerRep
	return a.config.MetCalorieWeight*metEstimate + a.config.RepCalorieWeight*repEstimate
}

// metTier maps the intensity measure onto a metabolic equivalent
// factor, roughly light / moderate / vigorous / very vigorous.
func metTier(intensity float64) float64 {
	switch {
	case intensity < 0.3:
		return 3.0
	case intensity < 0.6:
		return 5.0
	case intensity < 0.8:
		return 6.0
	default:
		return 8.0
	}
}

// estimatedSecondsRemaining extrapolates linearly from elapsed time
// over completion so far. Before any progress it falls back to the
// plan's estimate.
func (a *Analyzer) estimatedSecondsRemaining(sess *session.Session, elapsedSeconds int, completionPercent float64) int {
	if sess.State.IsTerminal() {
		return 0
	}
	if completionPercent <= 0 {
		remaining := sess.EstimatedDurationSeconds - elapsedSeconds
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	fraction := completionPercent / 100
	remaining := int(float64(elapsedSeconds) * (1 - fraction) / fraction)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func completionPercent(sess *session.Session) float64 {
	if sess.TotalSets == 0 {
		return 0
	}
	return pkg.Clamp(float64(sess.SetsCompleted)/float64(sess.TotalSets)*100, 0, 100)
}

func avgEffort(setLogs []session.SetLog) float64 {
	var sum, count float64
	for i := range setLogs {
		if setLogs[i].EffortRating > 0 {
			sum += float64(setLogs[i].EffortRating)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

func avgForm(setLogs []session.SetLog) float64 {
	var sum, count float64
	for i := range setLogs {
		if setLogs[i].FormQuality > 0 {
			sum += float64(setLogs[i].FormQuality)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

func effortRatings(setLogs []session.SetLog) []float64 {
	var ratings []float64
	for i := range setLogs {
		if setLogs[i].EffortRating > 0 {
			ratings = append(ratings, float64(setLogs[i].EffortRating))
		}
	}
	return ratings
}
