package adaptive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/fitsession/internal/catalog"
	"github.com/2beens/fitsession/internal/telemetry/metrics"
	"github.com/2beens/fitsession/pkg"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type adaptiveEngine interface {
	RecommendRest(ctx context.Context, restCtx RestContext) (*RestRecommendation, error)
	RecommendExercises(ctx context.Context, userID, exerciseID uuid.UUID, trigger Trigger) ([]Recommendation, error)
	EstimateOneRepMax(ctx context.Context, userID, exerciseID uuid.UUID) (*OneRepMaxEstimate, error)
	RespondToRecommendation(ctx context.Context, id uuid.UUID, accepted bool) error
}

type Handler struct {
	engine  adaptiveEngine
	metrics *metrics.Manager
}

func NewHandler(engine adaptiveEngine, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		engine:  engine,
		metrics: metricsManager,
	}
}

func (h *Handler) HandleGetRest(w http.ResponseWriter, r *http.Request) {
	userID, exerciseID, ok := h.userAndExercise(w, r)
	if !ok {
		return
	}

	setNumber, _ := strconv.Atoi(r.URL.Query().Get("setNumber"))
	if setNumber < 1 {
		setNumber = 1
	}
	effort, _ := strconv.Atoi(r.URL.Query().Get("effort"))

	recommendation, err := h.engine.RecommendRest(r.Context(), RestContext{
		UserID:       userID,
		ExerciseID:   exerciseID,
		SetNumber:    setNumber,
		EffortRating: effort,
		Goal:         r.URL.Query().Get("goal"),
	})
	if err != nil {
		h.writeError(w, "recommend rest", err)
		return
	}

	h.metrics.CounterRecommendationsMade.Inc()
	h.writeJSON(w, recommendation)
}

func (h *Handler) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, exerciseID, ok := h.userAndExercise(w, r)
	if !ok {
		return
	}

	trigger := Trigger(r.URL.Query().Get("trigger"))
	if !trigger.IsValid() {
		http.Error(w, "invalid trigger", http.StatusBadRequest)
		return
	}

	recommendations, err := h.engine.RecommendExercises(r.Context(), userID, exerciseID, trigger)
	if err != nil {
		h.writeError(w, "recommend exercises", err)
		return
	}

	h.metrics.CounterRecommendationsMade.Inc()
	h.writeJSON(w, recommendations)
}

func (h *Handler) HandleGetOneRepMax(w http.ResponseWriter, r *http.Request) {
	userID, exerciseID, ok := h.userAndExercise(w, r)
	if !ok {
		return
	}

	estimate, err := h.engine.EstimateOneRepMax(r.Context(), userID, exerciseID)
	if err != nil {
		h.writeError(w, "estimate one rep max", err)
		return
	}

	h.writeJSON(w, estimate)
}

type recommendationResponseRequest struct {
	Accepted bool `json:"accepted"`
}

func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid recommendation id", http.StatusBadRequest)
		return
	}

	var req recommendationResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.engine.RespondToRecommendation(r.Context(), id, req.Accepted); err != nil {
		h.writeError(w, "respond to recommendation", err)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"saved":true}`)
}

func (h *Handler) userAndExercise(w http.ResponseWriter, r *http.Request) (userID, exerciseID uuid.UUID, ok bool) {
	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	exerciseID, err = uuid.Parse(r.URL.Query().Get("exerciseId"))
	if err != nil {
		http.Error(w, "invalid exercise id", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, exerciseID, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("adaptive handler: marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, payloadJson)
}

func (h *Handler) writeError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, catalog.ErrExerciseNotFound):
		http.Error(w, "exercise not found", http.StatusNotFound)
	case errors.Is(err, ErrRecommendationNotFound):
		http.Error(w, "recommendation not found", http.StatusNotFound)
	case errors.Is(err, ErrAlreadyResponded):
		http.Error(w, "recommendation already responded to", http.StatusConflict)
	default:
		log.Errorf("adaptive handler: %s: %s", action, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
