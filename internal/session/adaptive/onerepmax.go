package adaptive

import (
	"context"
	"fmt"
	"math"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/telemetry/tracing"
	"github.com/2beens/fitsession/pkg"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type OneRepMaxEstimate struct {
	Kilos      float64 `json:"kilos"`
	Confidence float64 `json:"confidence"`
	SampleSize int     `json:"sampleSize"`
}

// EstimateOneRepMax runs the Epley formula over the user's most recent
// sets for the exercise and takes the median, which shrugs off the odd
// junk set. With no usable history it returns a zero estimate instead
// of failing.
func (e *Engine) EstimateOneRepMax(ctx context.Context, userID, exerciseID uuid.UUID) (_ *OneRepMaxEstimate, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "engine.adaptive.onerepmax")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID.String()))
	span.SetAttributes(attribute.String("exercise.id", exerciseID.String()))

	recentSets, err := e.metrics.RecentSets(ctx, userID, exerciseID, e.config.OneRepMaxSampleSize)
	if err != nil {
		return nil, fmt.Errorf("recent sets: %w", err)
	}

	estimate := e.estimateFromSets(recentSets)
	return &estimate, nil
}

func (e *Engine) estimateFromSets(sets []session.SetLog) OneRepMaxEstimate {
	var estimates []float64
	for i := range sets {
		if !e.usableForOneRepMax(&sets[i]) {
			continue
		}
		estimates = append(estimates, epley(sets[i].WeightKilos, sets[i].RepsCompleted))
	}
	if len(estimates) == 0 {
		return OneRepMaxEstimate{}
	}

	median := pkg.Median(estimates)
	coverage := math.Min(float64(len(estimates))/float64(e.config.OneRepMaxSampleSize), 1)
	spread := 0.0
	if median > 0 {
		spread = pkg.StdDev(estimates) / median
	}
	confidence := 0.7*coverage + 0.3*math.Max(0, 1-spread)

	return OneRepMaxEstimate{
		Kilos:      median,
		Confidence: confidence,
		SampleSize: len(estimates),
	}
}

func (e *Engine) usableForOneRepMax(setLog *session.SetLog) bool {
	return setLog.WeightKilos > 0 &&
		setLog.RepsCompleted >= e.config.OneRepMaxMinReps &&
		setLog.RepsCompleted <= e.config.OneRepMaxMaxReps
}

// epley estimates the one rep max from a sub-maximal set.
func epley(weightKilos float64, reps int) float64 {
	return weightKilos * (1 + float64(reps)/30)
}
