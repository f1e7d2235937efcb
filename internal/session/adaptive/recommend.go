package adaptive

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/2beens/fitsession/internal/catalog"
	"github.com/2beens/fitsession/internal/telemetry/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Trigger is why a replacement exercise is being looked for.
type Trigger string

const (
	TriggerSkipped    Trigger = "skipped"
	TriggerLowForm    Trigger = "low_form"
	TriggerInjury     Trigger = "injury"
	TriggerPreference Trigger = "preference"
)

func (t Trigger) IsValid() bool {
	switch t {
	case TriggerSkipped, TriggerLowForm, TriggerInjury, TriggerPreference:
		return true
	default:
		return false
	}
}

// biasesRegression reports whether the trigger should steer the user
// toward easier work instead of harder.
func (t Trigger) biasesRegression() bool {
	return t == TriggerInjury || t == TriggerLowForm
}

type RecommendationKind string

const (
	KindRegression  RecommendationKind = "regression"
	KindProgression RecommendationKind = "progression"
	KindAlternative RecommendationKind = "alternative"
	KindSimilar     RecommendationKind = "similar"
)

var (
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrAlreadyResponded       = errors.New("recommendation already responded to")
)

// Recommendation is an engine-issued suggestion. Immutable once
// issued; the accept/reject response is set exactly once and feeds
// future confidence tuning.
type Recommendation struct {
	ID                  uuid.UUID          `json:"id"`
	UserID              uuid.UUID          `json:"userId"`
	OriginalExerciseID  uuid.UUID          `json:"originalExerciseId"`
	SuggestedExerciseID uuid.UUID          `json:"suggestedExerciseId"`
	Kind                RecommendationKind `json:"kind"`
	Trigger             Trigger            `json:"trigger"`
	Confidence          float64            `json:"confidence"`
	Reason              string             `json:"reason"`
	CreatedAt           time.Time          `json:"createdAt"`

	Accepted    *bool      `json:"accepted,omitempty"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

// RecommendExercises suggests up to three replacements from the same
// catalog category, ranked by confidence. Injury and low-form triggers
// never suggest harder work.
func (e *Engine) RecommendExercises(
	ctx context.Context,
	userID, exerciseID uuid.UUID,
	trigger Trigger,
) (_ []Recommendation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "engine.adaptive.recommendexercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID.String()))
	span.SetAttributes(attribute.String("exercise.id", exerciseID.String()))
	span.SetAttributes(attribute.String("trigger", string(trigger)))

	original, err := e.catalog.Get(ctx, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("get original exercise: %w", err)
	}

	candidates, err := e.catalog.ListByCategory(ctx, original.Category)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	now := e.now()
	var recommendations []Recommendation
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.ID == original.ID {
			continue
		}

		kind := classify(original, candidate)
		if kind == KindProgression && trigger.biasesRegression() {
			continue
		}

		overlap := original.MuscleOverlapRatio(*candidate)
		confidence := 0.5 + 0.3 + 0.2*overlap
		if confidence < e.config.RecommendationMinConfidence {
			continue
		}

		recommendations = append(recommendations, Recommendation{
			ID:                  uuid.New(),
			UserID:              userID,
			OriginalExerciseID:  original.ID,
			SuggestedExerciseID: candidate.ID,
			Kind:                kind,
			Trigger:             trigger,
			Confidence:          confidence,
			Reason:              recommendationReason(kind, trigger, candidate),
			CreatedAt:           now,
		})
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Confidence > recommendations[j].Confidence
	})
	if len(recommendations) > e.config.RecommendationLimit {
		recommendations = recommendations[:e.config.RecommendationLimit]
	}

	if len(recommendations) > 0 {
		if err := e.recommendations.Save(ctx, recommendations); err != nil {
			return nil, fmt.Errorf("save recommendations: %w", err)
		}
	}
	return recommendations, nil
}

// RespondToRecommendation records the user's accept/reject decision,
// exactly once.
func (e *Engine) RespondToRecommendation(ctx context.Context, id uuid.UUID, accepted bool) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "engine.adaptive.respond")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("recommendation.id", id.String()))

	recommendation, err := e.recommendations.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get recommendation: %w", err)
	}
	if recommendation.RespondedAt != nil {
		return ErrAlreadyResponded
	}

	return e.recommendations.SetResponse(ctx, id, accepted, e.now())
}

func classify(original, candidate *catalog.Exercise) RecommendationKind {
	switch {
	case candidate.DifficultyTier < original.DifficultyTier:
		return KindRegression
	case candidate.DifficultyTier > original.DifficultyTier:
		return KindProgression
	case original.MuscleOverlapRatio(*candidate) >= 0.75:
		return KindSimilar
	default:
		return KindAlternative
	}
}

func recommendationReason(kind RecommendationKind, trigger Trigger, candidate *catalog.Exercise) string {
	switch kind {
	case KindRegression:
		if trigger == TriggerInjury {
			return fmt.Sprintf("%s is easier on the body while you recover", candidate.Name)
		}
		return fmt.Sprintf("%s is a step down in difficulty", candidate.Name)
	case KindProgression:
		return fmt.Sprintf("%s is a step up when you are ready", candidate.Name)
	case KindSimilar:
		return fmt.Sprintf("%s works almost the same muscles", candidate.Name)
	default:
		return fmt.Sprintf("%s targets the same category", candidate.Name)
	}
}
