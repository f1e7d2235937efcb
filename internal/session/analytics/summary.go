package analytics

import (
	"fmt"
	"time"

	"github.com/2beens/fitsession/internal/session"

	"github.com/google/uuid"
)

// ExerciseBreakdown is the per-exercise slice of a session summary.
type ExerciseBreakdown struct {
	ExerciseID      uuid.UUID              `json:"exerciseId"`
	Position        int                    `json:"position"`
	Status          session.ExerciseStatus `json:"status"`
	TargetSets      int                    `json:"targetSets"`
	SetsCompleted   int                    `json:"setsCompleted"`
	CompletionRatio float64                `json:"completionRatio"`
	Volume          float64                `json:"volume"`
	Reps            int                    `json:"reps"`
	AvgEffort       float64                `json:"avgEffort"`
	AvgForm         float64                `json:"avgForm"`
	Sets            []session.SetLog       `json:"sets"`
}

// Delta compares the session with the most recent prior completed
// session of the same (user, workout) pair. Zero-filled without one.
type Delta struct {
	PreviousSessionID *uuid.UUID `json:"previousSessionId,omitempty"`
	VolumePercent     float64    `json:"volumePercent"`
	DurationPercent   float64    `json:"durationPercent"`
	ScorePercent      float64    `json:"scorePercent"`
}

// Summary is the frozen analytics view of a completed session,
// persisted exactly once as a SessionAnalyticsSnapshot.
type Summary struct {
	SessionID uuid.UUID `json:"sessionId"`
	UserID    uuid.UUID `json:"userId"`
	WorkoutID uuid.UUID `json:"workoutId"`

	Stats     LiveStats           `json:"stats"`
	Exercises []ExerciseBreakdown `json:"exercises"`
	Delta     Delta               `json:"delta"`

	SetsSkipped             int     `json:"setsSkipped"`
	ExercisesSkipped        int     `json:"exercisesSkipped"`
	TimeUnderTensionSeconds int     `json:"timeUnderTensionSeconds"`
	RestTargetSeconds       int     `json:"restTargetSeconds"`
	RestActualSeconds       int     `json:"restActualSeconds"`
	RestAdherencePercent    float64 `json:"restAdherencePercent"`

	RecoveryHours int      `json:"recoveryHours"`
	Insights      []string `json:"insights"`

	CreatedAt time.Time `json:"createdAt"`
}

// BuildSummary freezes the final stats of a completed session. The
// previous session and its score, and the lifetime volume, are optional
// history inputs; missing history zero-fills the delta and leaves the
// recovery estimate at its base.
func (a *Analyzer) BuildSummary(
	sess *session.Session,
	exerciseLogs []session.ExerciseLog,
	setLogs []session.SetLog,
	previous *session.Session,
	previousScore int,
	lifetimeVolume float64,
	now time.Time,
) *Summary {
	stats := a.LiveStatsAt(sess, setLogs, previous, now)

	summary := &Summary{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		WorkoutID: sess.WorkoutID,
		Stats:     *stats,
		Exercises: exerciseBreakdowns(exerciseLogs, setLogs),
		CreatedAt: now,
	}

	for i := range exerciseLogs {
		if exerciseLogs[i].Status == session.ExerciseStatusSkipped {
			summary.ExercisesSkipped++
			summary.SetsSkipped += exerciseLogs[i].TargetSets - exerciseLogs[i].SetsCompleted
		}
	}
	for i := range setLogs {
		summary.TimeUnderTensionSeconds += setLogs[i].TimeUnderTensionSeconds
		summary.RestTargetSeconds += setLogs[i].RestTargetSeconds
		summary.RestActualSeconds += setLogs[i].RestSeconds
	}
	if summary.RestTargetSeconds > 0 {
		summary.RestAdherencePercent = float64(summary.RestActualSeconds) / float64(summary.RestTargetSeconds) * 100
	}

	summary.Delta = buildDelta(sess, stats, previous, previousScore)
	summary.RecoveryHours = recoveryHours(stats.Intensity, lifetimeVolume)
	summary.Insights = buildInsights(sess, stats, summary)

	return summary
}

func exerciseBreakdowns(exerciseLogs []session.ExerciseLog, setLogs []session.SetLog) []ExerciseBreakdown {
	setsByExerciseLog := make(map[uuid.UUID][]session.SetLog)
	for _, setLog := range setLogs {
		setsByExerciseLog[setLog.ExerciseLogID] = append(setsByExerciseLog[setLog.ExerciseLogID], setLog)
	}

	breakdowns := make([]ExerciseBreakdown, 0, len(exerciseLogs))
	for i := range exerciseLogs {
		exLog := &exerciseLogs[i]
		sets := setsByExerciseLog[exLog.ID]
		breakdown := ExerciseBreakdown{
			ExerciseID:    exLog.ExerciseID,
			Position:      exLog.Position,
			Status:        exLog.Status,
			TargetSets:    exLog.TargetSets,
			SetsCompleted: exLog.SetsCompleted,
			Volume:        exLog.TotalVolume,
			Reps:          exLog.TotalReps,
			AvgEffort:     exLog.AvgEffort,
			AvgForm:       avgForm(sets),
			Sets:          sets,
		}
		if exLog.TargetSets > 0 {
			breakdown.CompletionRatio = float64(exLog.SetsCompleted) / float64(exLog.TargetSets)
		}
		breakdowns = append(breakdowns, breakdown)
	}
	return breakdowns
}

func buildDelta(sess *session.Session, stats *LiveStats, previous *session.Session, previousScore int) Delta {
	if previous == nil {
		return Delta{}
	}

	delta := Delta{}
	previousID := previous.ID
	delta.PreviousSessionID = &previousID

	if previous.TotalVolume > 0 {
		delta.VolumePercent = (sess.TotalVolume - previous.TotalVolume) / previous.TotalVolume * 100
	}
	if previous.TotalDurationSeconds > 0 {
		delta.DurationPercent = float64(sess.TotalDurationSeconds-previous.TotalDurationSeconds) /
			float64(previous.TotalDurationSeconds) * 100
	}
	if previousScore > 0 {
		delta.ScorePercent = float64(stats.PerformanceScore-previousScore) / float64(previousScore) * 100
	}
	return delta
}

// recoveryHours estimates the time until the next hard session: base
// 24h, more after very intense work, more again for users with a big
// lifetime training volume.
func recoveryHours(intensity, lifetimeVolume float64) int {
	hours := 24
	if intensity >= 0.9 {
		hours += 24
	} else if intensity >= 0.75 {
		hours += 12
	}
	if lifetimeVolume > 10_000 {
		hours += 12
	}
	return hours
}

func buildInsights(sess *session.Session, stats *LiveStats, summary *Summary) []string {
	var insights []string

	if summary.Delta.PreviousSessionID != nil && summary.Delta.VolumePercent > 0 {
		insights = append(insights,
			fmt.Sprintf("Volume up %.0f%% compared to your last %s session", summary.Delta.VolumePercent, sess.Goal))
	}
	if stats.CompletionPercent >= 100 {
		insights = append(insights, "You completed every planned set")
	} else if summary.ExercisesSkipped > 0 {
		insights = append(insights,
			fmt.Sprintf("%d exercise(s) skipped, consider adjusting the plan", summary.ExercisesSkipped))
	}
	if stats.AvgEffort >= 9 {
		insights = append(insights, "Very hard session, plan for extra recovery")
	}
	if sess.RestPeriodsSkipped >= 3 {
		insights = append(insights,
			fmt.Sprintf("%d rest periods cut short, short rests can hurt later sets", sess.RestPeriodsSkipped))
	}
	if len(insights) == 0 {
		insights = append(insights, "Solid session, keep the streak going")
	}
	return insights
}
