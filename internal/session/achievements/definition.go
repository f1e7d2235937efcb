package achievements

import (
	"time"
)

// SessionFacts is everything the rules can look at: the finished
// session's aggregates plus the user's lifetime counters.
type SessionFacts struct {
	SetsCompleted      int     `json:"setsCompleted"`
	SetsSkipped        int     `json:"setsSkipped"`
	AverageEffort      float64 `json:"averageEffort"`
	RestPeriodsSkipped int     `json:"restPeriodsSkipped"`
	AllSetsGoodForm    bool    `json:"allSetsGoodForm"`

	DurationSeconds          int `json:"durationSeconds"`
	EstimatedDurationSeconds int `json:"estimatedDurationSeconds"`

	LifetimeWorkoutCount int     `json:"lifetimeWorkoutCount"`
	CurrentStreakDays    int     `json:"currentStreakDays"`
	LifetimeVolume       float64 `json:"lifetimeVolume"`
	LifetimeReps         int     `json:"lifetimeReps"`

	StartTime time.Time `json:"startTime"`
}

type Category string

const (
	CategoryPerformance Category = "performance"
	CategorySpeed       Category = "speed"
	CategoryMilestone   Category = "milestone"
	CategoryStreak      Category = "streak"
	CategoryVolume      Category = "volume"
	CategorySpecial     Category = "special"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
)

// CriterionKind selects which fact a criterion reads and how the
// threshold is compared. New achievements are new data rows, not new
// evaluator code.
type CriterionKind string

const (
	// average effort rating of the session at or above the threshold
	KindAvgEffortAtLeast CriterionKind = "avg_effort_at_least"
	// finished at least threshold percent faster than the estimate
	KindFasterThanEstimatePercent CriterionKind = "faster_than_estimate_percent"
	// lifetime completed workout count exactly at the threshold
	KindLifetimeWorkoutsExact CriterionKind = "lifetime_workouts_exact"
	// current daily streak exactly at the threshold
	KindStreakDaysExact CriterionKind = "streak_days_exact"
	// lifetime volume in kilos at or above the threshold
	KindLifetimeVolumeAtLeast CriterionKind = "lifetime_volume_at_least"
	// lifetime rep count at or above the threshold
	KindLifetimeRepsAtLeast CriterionKind = "lifetime_reps_at_least"
	// session started before the threshold hour of day
	KindStartBeforeHour CriterionKind = "start_before_hour"
	// session started at or after the threshold hour of day
	KindStartAfterHour CriterionKind = "start_after_hour"
	// every planned set completed, nothing skipped
	KindCleanSession CriterionKind = "clean_session"
	// every completed set with form quality 4+
	KindAllSetsGoodForm CriterionKind = "all_sets_good_form"
	// at least threshold rest periods skipped
	KindRestSkipsAtLeast CriterionKind = "rest_skips_at_least"
)

// Criterion is a declarative predicate: a kind naming the fact and the
// comparison, and a numeric threshold where the kind needs one.
type Criterion struct {
	Kind      CriterionKind `json:"kind"`
	Threshold float64       `json:"threshold"`
}

type Definition struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Rarity    Rarity    `json:"rarity"`
	Points    int       `json:"points"`
	Criterion Criterion `json:"criterion"`
}

// All returns the static achievement table.
func All() []Definition {
	return []Definition{
		{
			ID: "beast-mode", Name: "Beast Mode",
			Category: CategoryPerformance, Rarity: RarityRare, Points: 50,
			Criterion: Criterion{Kind: KindAvgEffortAtLeast, Threshold: 9},
		},
		{
			ID: "speed-demon", Name: "Speed Demon",
			Category: CategorySpeed, Rarity: RarityUncommon, Points: 30,
			Criterion: Criterion{Kind: KindFasterThanEstimatePercent, Threshold: 20},
		},
		{
			ID: "first-workout", Name: "First Steps",
			Category: CategoryMilestone, Rarity: RarityCommon, Points: 10,
			Criterion: Criterion{Kind: KindLifetimeWorkoutsExact, Threshold: 1},
		},
		{
			ID: "ten-workouts", Name: "Regular",
			Category: CategoryMilestone, Rarity: RarityUncommon, Points: 25,
			Criterion: Criterion{Kind: KindLifetimeWorkoutsExact, Threshold: 10},
		},
		{
			ID: "hundred-workouts", Name: "Centurion",
			Category: CategoryMilestone, Rarity: RarityLegendary, Points: 100,
			Criterion: Criterion{Kind: KindLifetimeWorkoutsExact, Threshold: 100},
		},
		{
			ID: "week-streak", Name: "Week Warrior",
			Category: CategoryStreak, Rarity: RarityUncommon, Points: 25,
			Criterion: Criterion{Kind: KindStreakDaysExact, Threshold: 7},
		},
		{
			ID: "month-streak", Name: "Unstoppable",
			Category: CategoryStreak, Rarity: RarityRare, Points: 75,
			Criterion: Criterion{Kind: KindStreakDaysExact, Threshold: 30},
		},
		{
			ID: "volume-1000", Name: "Ton Lifter",
			Category: CategoryVolume, Rarity: RarityUncommon, Points: 30,
			Criterion: Criterion{Kind: KindLifetimeVolumeAtLeast, Threshold: 1000},
		},
		{
			ID: "reps-10000", Name: "Rep Machine",
			Category: CategoryVolume, Rarity: RarityRare, Points: 60,
			Criterion: Criterion{Kind: KindLifetimeRepsAtLeast, Threshold: 10_000},
		},
		{
			ID: "early-bird", Name: "Early Bird",
			Category: CategorySpecial, Rarity: RarityUncommon, Points: 20,
			Criterion: Criterion{Kind: KindStartBeforeHour, Threshold: 6},
		},
		{
			ID: "night-owl", Name: "Night Owl",
			Category: CategorySpecial, Rarity: RarityUncommon, Points: 20,
			Criterion: Criterion{Kind: KindStartAfterHour, Threshold: 22},
		},
		{
			ID: "consistency", Name: "Consistency",
			Category: CategoryPerformance, Rarity: RarityCommon, Points: 15,
			Criterion: Criterion{Kind: KindCleanSession},
		},
		{
			ID: "perfect-form", Name: "Perfect Form",
			Category: CategoryPerformance, Rarity: RarityRare, Points: 40,
			Criterion: Criterion{Kind: KindAllSetsGoodForm},
		},
		{
			ID: "no-rest-for-the-wicked", Name: "No Rest For The Wicked",
			Category: CategorySpecial, Rarity: RarityUncommon, Points: 20,
			Criterion: Criterion{Kind: KindRestSkipsAtLeast, Threshold: 5},
		},
	}
}
