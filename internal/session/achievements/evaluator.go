package achievements

// Evaluator runs the static rule table against one session's facts.
// It is pure: persistence and dedup happen at the unlock repo.
type Evaluator struct {
	definitions []Definition
}

func NewEvaluator(definitions []Definition) *Evaluator {
	return &Evaluator{
		definitions: definitions,
	}
}

// Evaluate returns every definition whose criterion holds for the
// facts, in table order.
func (e *Evaluator) Evaluate(facts SessionFacts) []Definition {
	var unlocked []Definition
	for _, definition := range e.definitions {
		if criterionHolds(definition.Criterion, facts) {
			unlocked = append(unlocked, definition)
		}
	}
	return unlocked
}

// criterionHolds is the single place criteria are interpreted; the
// definitions themselves carry no behavior.
func criterionHolds(criterion Criterion, facts SessionFacts) bool {
	switch criterion.Kind {
	case KindAvgEffortAtLeast:
		return facts.AverageEffort >= criterion.Threshold
	case KindFasterThanEstimatePercent:
		if facts.EstimatedDurationSeconds <= 0 || facts.DurationSeconds <= 0 {
			return false
		}
		saved := float64(facts.EstimatedDurationSeconds-facts.DurationSeconds) /
			float64(facts.EstimatedDurationSeconds) * 100
		return saved >= criterion.Threshold
	case KindLifetimeWorkoutsExact:
		return facts.LifetimeWorkoutCount == int(criterion.Threshold)
	case KindStreakDaysExact:
		return facts.CurrentStreakDays == int(criterion.Threshold)
	case KindLifetimeVolumeAtLeast:
		return facts.LifetimeVolume >= criterion.Threshold
	case KindLifetimeRepsAtLeast:
		return facts.LifetimeReps >= int(criterion.Threshold)
	case KindStartBeforeHour:
		return !facts.StartTime.IsZero() && facts.StartTime.Hour() < int(criterion.Threshold)
	case KindStartAfterHour:
		return !facts.StartTime.IsZero() && facts.StartTime.Hour() >= int(criterion.Threshold)
	case KindCleanSession:
		return facts.SetsCompleted > 0 && facts.SetsSkipped == 0
	case KindAllSetsGoodForm:
		return facts.SetsCompleted > 0 && facts.AllSetsGoodForm
	case KindRestSkipsAtLeast:
		return facts.RestPeriodsSkipped >= int(criterion.Threshold)
	default:
		return false
	}
}
