package adaptive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/2beens/fitsession/internal/catalog"
	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/telemetry/tracing"
	"github.com/2beens/fitsession/pkg"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type metricsRepo interface {
	Get(ctx context.Context, userID, exerciseID uuid.UUID) (*UserMetric, error)
	Upsert(ctx context.Context, metric *UserMetric) error
	RecentSets(ctx context.Context, userID, exerciseID uuid.UUID, limit int) ([]session.SetLog, error)
	LifetimeVolume(ctx context.Context, userID uuid.UUID) (float64, error)
}

type recommendationsRepo interface {
	Save(ctx context.Context, recommendations []Recommendation) error
	Get(ctx context.Context, id uuid.UUID) (*Recommendation, error)
	SetResponse(ctx context.Context, id uuid.UUID, accepted bool, respondedAt time.Time) error
}

type exerciseCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*catalog.Exercise, error)
	ListByCategory(ctx context.Context, category string) ([]catalog.Exercise, error)
}

// Config is the engine's static tuning. Constants mirror the training
// methodology: rest baselines per goal and the damping of historical
// preferences by their variance.
type Config struct {
	RestBaseStrength    float64
	RestBaseHypertrophy float64
	RestBaseEndurance   float64
	RestMinSeconds      float64
	RestMaxSeconds      float64
	// RestVarianceDamping divides the historical rest variance when
	// computing how much to trust the learned preference. Tunable,
	// not a law of nature.
	RestVarianceDamping float64

	// SmoothingKeep is the weight of the old estimate in the
	// exponential smoothing of learned metrics (new obs gets the rest)
	SmoothingKeep float64

	OneRepMaxSampleSize int
	OneRepMaxMinReps    int
	OneRepMaxMaxReps    int

	RecommendationMinConfidence float64
	RecommendationLimit         int
}

func DefaultConfig() Config {
	return Config{
		RestBaseStrength:    180,
		RestBaseHypertrophy: 90,
		RestBaseEndurance:   45,
		RestMinSeconds:      30,
		RestMaxSeconds:      300,
		RestVarianceDamping: 60,

		SmoothingKeep: 0.8,

		OneRepMaxSampleSize: 20,
		OneRepMaxMinReps:    1,
		OneRepMaxMaxReps:    12,

		RecommendationMinConfidence: 0.6,
		RecommendationLimit:         3,
	}
}

var ErrMetricNotFound = errors.New("adaptive metric not found")

// Engine computes personalized rest times, exercise alternatives and
// strength estimates. It holds only static configuration; all
// per-user state lives in the metrics repo, so one engine instance
// serves all users concurrently.
type Engine struct {
	config          Config
	metrics         metricsRepo
	recommendations recommendationsRepo
	catalog         exerciseCatalog
	now             func() time.Time
}

func NewEngine(
	config Config,
	metrics metricsRepo,
	recommendations recommendationsRepo,
	exerciseCatalog exerciseCatalog,
	now func() time.Time,
) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		config:          config,
		metrics:         metrics,
		recommendations: recommendations,
		catalog:         exerciseCatalog,
		now:             now,
	}
}

// RestContext describes the set the user is about to rest after.
type RestContext struct {
	UserID     uuid.UUID `json:"userId"`
	ExerciseID uuid.UUID `json:"exerciseId"`
	SetNumber  int       `json:"setNumber"`
	// EffortRating is the RPE of the just-finished set, 0 if unknown
	EffortRating int `json:"effortRating"`
	// Goal is the training goal of the session's plan
	Goal string `json:"goal"`
}

type RestRecommendation struct {
	Seconds    int     `json:"seconds"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// RecommendRest computes base × difficulty × fatigue, nudged toward
// the user's learned preference when history exists, clamped to
// [30, 300] seconds.
func (e *Engine) RecommendRest(ctx context.Context, restCtx RestContext) (_ *RestRecommendation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "engine.adaptive.recommendrest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", restCtx.UserID.String()))
	span.SetAttributes(attribute.String("exercise.id", restCtx.ExerciseID.String()))

	base := e.restBase(restCtx.Goal)
	difficultyFactor := restDifficultyFactor(restCtx.EffortRating)
	fatigueFactor := restFatigueFactor(restCtx.SetNumber, restCtx.EffortRating)
	recommended := base * difficultyFactor * fatigueFactor

	var reasons []string
	reasons = append(reasons, fmt.Sprintf("Base: %.0fs", base))
	if difficultyFactor != 1 {
		reasons = append(reasons, fmt.Sprintf("%+.0f%% (RPE %d)", (difficultyFactor-1)*100, restCtx.EffortRating))
	}
	if fatigueFactor != 1 {
		reasons = append(reasons, fmt.Sprintf("%+.1f%% (set %d)", (fatigueFactor-1)*100, restCtx.SetNumber))
	}

	confidence := 0.5
	metric, err := e.metrics.Get(ctx, restCtx.UserID, restCtx.ExerciseID)
	switch {
	case errors.Is(err, ErrMetricNotFound):
		// no history: undamped product, default confidence
	case err != nil:
		return nil, fmt.Errorf("get metric: %w", err)
	default:
		confidence = metricConfidence(metric)
		if metric.PreferredRestSeconds > 0 {
			trust := pkg.Clamp(1-metric.RestVariance/e.config.RestVarianceDamping, 0, 1)
			if trust > 0 {
				recommended += trust * (metric.PreferredRestSeconds - recommended)
				reasons = append(reasons,
					fmt.Sprintf("adjusted toward your usual %.0fs", metric.PreferredRestSeconds))
			}
		}
	}

	seconds := int(math.Round(pkg.Clamp(recommended, e.config.RestMinSeconds, e.config.RestMaxSeconds)))
	return &RestRecommendation{
		Seconds:    seconds,
		Confidence: confidence,
		Reasoning:  strings.Join(reasons, " • "),
	}, nil
}

func (e *Engine) restBase(goal string) float64 {
	switch goal {
	case "strength":
		return e.config.RestBaseStrength
	case "endurance":
		return e.config.RestBaseEndurance
	default:
		return e.config.RestBaseHypertrophy
	}
}

// restDifficultyFactor steps by RPE band. An unreported rating lands
// in the neutral band.
func restDifficultyFactor(effortRating int) float64 {
	switch {
	case effortRating == 0:
		return 1.0
	case effortRating <= 6:
		return 0.8
	case effortRating <= 8:
		return 1.0
	case effortRating <= 9:
		return 1.2
	default:
		return 1.4
	}
}

// restFatigueFactor grows 5% per completed set, growing 15% faster
// once the user reports RPE 9+, capped at 1.3.
func restFatigueFactor(setNumber, effortRating int) float64 {
	if setNumber < 1 {
		setNumber = 1
	}
	increment := 0.05 * float64(setNumber-1)
	if effortRating >= 9 {
		increment *= 1.15
	}
	return math.Min(1+increment, 1.3)
}

func metricConfidence(metric *UserMetric) float64 {
	coverage := math.Min(float64(metric.LifetimeSessions)/20, 1)
	return 0.7*coverage + 0.3*metric.ConsistencyScore/100
}

// LifetimeVolume sums the learned lifetime volume across all of the
// user's exercises, feeding the recovery estimate and achievements.
func (e *Engine) LifetimeVolume(ctx context.Context, userID uuid.UUID) (float64, error) {
	return e.metrics.LifetimeVolume(ctx, userID)
}
