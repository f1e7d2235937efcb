package analytics

import (
	"math"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/pkg"
)

// neutralScore is the documented fallback when a sub-calculation has
// no data to work with. Missing history never aborts a score.
const neutralScore = 50

// SubScores are the six weighted factors behind the performance score,
// each in [0,100].
type SubScores struct {
	Completion  float64 `json:"completion"`
	Volume      float64 `json:"volume"`
	Intensity   float64 `json:"intensity"`
	Consistency float64 `json:"consistency"`
	Efficiency  float64 `json:"efficiency"`
	Progression float64 `json:"progression"`
}

func (a *Analyzer) subScores(
	sess *session.Session,
	setLogs []session.SetLog,
	previous *session.Session,
	activeSeconds int,
) SubScores {
	completion := completionPercent(sess)
	return SubScores{
		Completion:  completion,
		Volume:      volumeProgressScore(sess, previous),
		Intensity:   a.intensity(setLogs) * 100,
		Consistency: consistencyScore(setLogs),
		Efficiency:  a.efficiencyScore(activeSeconds, completion),
		Progression: neutralScore,
	}
}

// weightedScore folds the sub-scores into the final integer in [0,100].
func (a *Analyzer) weightedScore(scores SubScores) int {
	weighted := scores.Completion*a.config.WeightCompletion +
		scores.Volume*a.config.WeightVolume +
		scores.Intensity*a.config.WeightIntensity +
		scores.Consistency*a.config.WeightConsistency +
		scores.Efficiency*a.config.WeightEfficiency +
		scores.Progression*a.config.WeightProgression
	return int(pkg.Clamp(math.Round(weighted), 0, 100))
}

// volumeProgressScore compares total volume with the previous completed
// session of the same workout: 50 is neutral, every percent of change
// moves the score by 5 points.
func volumeProgressScore(sess, previous *session.Session) float64 {
	if previous == nil || previous.TotalVolume <= 0 {
		return neutralScore
	}
	percentChange := (sess.TotalVolume - previous.TotalVolume) / previous.TotalVolume * 100
	return pkg.Clamp(neutralScore+5*percentChange, 0, 100)
}

// consistencyScore rewards steady form (60%) and low variance in
// effort ratings (40%).
func consistencyScore(setLogs []session.SetLog) float64 {
	formScore := float64(neutralScore)
	if form := avgForm(setLogs); form > 0 {
		// 1-5 form maps onto 0-100
		formScore = (form - 1) / 4 * 100
	}

	effortScore := float64(neutralScore)
	if ratings := effortRatings(setLogs); len(ratings) > 0 {
		effortScore = math.Max(0, 100-10*pkg.StdDev(ratings))
	}

	return 0.6*formScore + 0.4*effortScore
}

// efficiencyScore checks the active duration against the assumed ideal
// of 45 minutes: full marks within 50-150% of it, proportional penalty
// outside, an extra rushing penalty for short unfinished sessions. The
// result is blended 50/50 with completion so an efficient but abandoned
// session does not score high.
func (a *Analyzer) efficiencyScore(activeSeconds int, completionPercent float64) float64 {
	if activeSeconds <= 0 {
		return neutralScore
	}

	ratio := float64(activeSeconds) / float64(a.config.IdealDurationSeconds)
	var durationScore float64
	switch {
	case ratio >= 0.5 && ratio <= 1.5:
		durationScore = 100
	case ratio < 0.5:
		durationScore = 100 * ratio / 0.5
		if completionPercent < 100 {
			// rushing through an unfinished workout
			durationScore *= completionPercent / 100
		}
	default:
		durationScore = math.Max(0, 100-(ratio-1.5)*100)
	}

	return 0.5*durationScore + 0.5*completionPercent
}
