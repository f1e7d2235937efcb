package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2beens/fitsession/internal/plan"
	"github.com/2beens/fitsession/internal/telemetry/metrics"
	"github.com/2beens/fitsession/pkg"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type sessionService interface {
	Create(ctx context.Context, userID, workoutID uuid.UUID) (*Session, error)
	Start(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	Pause(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	Resume(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	StartExercise(ctx context.Context, sessionID uuid.UUID, index int) (*Session, error)
	CompleteSet(ctx context.Context, sessionID uuid.UUID, setLog SetLog) (*CompleteSetResult, error)
	SkipExercise(ctx context.Context, sessionID uuid.UUID, reason SkipReason, notes string) (*Session, error)
	StartRest(ctx context.Context, sessionID uuid.UUID, targetSeconds int) (*Session, error)
	SkipRest(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	Complete(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	Cancel(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	SubmitFeedback(ctx context.Context, sessionID uuid.UUID, difficulty, energy, mood int) (*Session, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	ExerciseLogs(ctx context.Context, sessionID uuid.UUID) ([]ExerciseLog, error)
	SetLogs(ctx context.Context, sessionID uuid.UUID) ([]SetLog, error)
}

type snapshotGetter interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*RealtimeSnapshot, error)
}

type Handler struct {
	service   sessionService
	snapshots snapshotGetter
	metrics   *metrics.Manager
}

func NewHandler(
	service sessionService,
	snapshots snapshotGetter,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		service:   service,
		snapshots: snapshots,
		metrics:   metricsManager,
	}
}

type createSessionRequest struct {
	UserID    uuid.UUID `json:"userId"`
	WorkoutID uuid.UUID `json:"workoutId"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == uuid.Nil || req.WorkoutID == uuid.Nil {
		http.Error(w, "user and workout ids are required", http.StatusBadRequest)
		return
	}

	sess, err := h.service.Create(r.Context(), req.UserID, req.WorkoutID)
	if err != nil {
		h.writeError(w, "create session", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, "get session", err)
		return
	}

	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.service.Start(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, "start session", err)
		return
	}

	h.metrics.CounterSessionsStarted.Inc()
	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.service.Pause(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, "pause session", err)
		return
	}

	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.service.Resume(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, "resume session", err)
		return
	}

	h.writeJSON(w, http.StatusOK, sess)
}

type startExerciseRequest struct {
	Index int `json:"index"`
}

func (h *Handler) HandleStartExercise(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req startExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.service.StartExercise(r.Context(), sessionID, req.Index)
	if err != nil {
		h.writeError(w, "start exercise", err)
		return
	}

	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) HandleCompleteSet(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var setLog SetLog
	if err := json.NewDecoder(r.Body).Decode(&setLog); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if setLog.SetType == "" {
		setLog.SetType = SetTypeWorking
	}

	result, err := h.service.CompleteSet(r.Context(), sessionID, setLog)
	if err != nil {
		h.writeError(w, "complete set", err)
		return
	}

	h.metrics.CounterSetsLogged.Inc()
	if result.SessionCompleted {
		h.observeCompleted(result.Session)
	}

	h.writeJSON(w, http.StatusOK, result)
}

type skipExerciseRequest struct {
	Reason SkipReason `json:"reason"`
	Notes  string     `json:"notes"`
}

func (h *Handler) HandleSkipExercise(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req skipExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, "skip reason is required", http.StatusBadRequest)
		return
	}

	sess, err := h.service.SkipExercise(r.Context(), sessionID, req.Reason, req.Notes)
	if err != nil {
		h.writeError(w, "skip exercise", err)
		return
	}

	h.metrics.CounterExercisesSkipped.Inc()
	if sess.State == StateCompleted {
		h.observeCompleted(sess)
	}

	h.writeJSON(w, http.StatusOK, sess)
}

type startRestRequest struct {
	TargetSeconds int `json:"targetSeconds"`
}

func (h *Handler) HandleStartRest(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req startRestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.service.StartRest(r.Context(), sessionID, req.TargetSeconds)
	if err != nil {
		h.writeError(w, "start rest", err)
		return
	}

	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) HandleSkipRest(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.service.SkipRest(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, "skip rest", err)
		return
	}

	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.service.Complete(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, "complete session", err)
		return
	}

	h.observeCompleted(sess)
	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.service.Cancel(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, "cancel session", err)
		return
	}

	h.metrics.CounterSessionsCancelled.Inc()
	h.writeJSON(w, http.StatusOK, sess)
}

type feedbackRequest struct {
	Difficulty int `json:"difficulty"`
	Energy     int `json:"energy"`
	Mood       int `json:"mood"`
}

func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.service.SubmitFeedback(r.Context(), sessionID, req.Difficulty, req.Energy, req.Mood)
	if err != nil {
		h.writeError(w, "submit feedback", err)
		return
	}

	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.snapshots.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			// the snapshot may have expired, fall back to the session row
			sess, sessErr := h.service.Get(r.Context(), sessionID)
			if sessErr != nil {
				h.writeError(w, "get session for snapshot", sessErr)
				return
			}
			h.writeJSON(w, http.StatusOK, sess.Snapshot)
			return
		}
		h.writeError(w, "get snapshot", err)
		return
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

type sessionLogsResponse struct {
	ExerciseLogs []ExerciseLog `json:"exerciseLogs"`
	SetLogs      []SetLog      `json:"setLogs"`
}

func (h *Handler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	exerciseLogs, err := h.service.ExerciseLogs(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, "get exercise logs", err)
		return
	}
	setLogs, err := h.service.SetLogs(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, "get set logs", err)
		return
	}

	h.writeJSON(w, http.StatusOK, sessionLogsResponse{
		ExerciseLogs: exerciseLogs,
		SetLogs:      setLogs,
	})
}

func (h *Handler) observeCompleted(sess *Session) {
	h.metrics.CounterSessionsCompleted.Inc()
	h.metrics.HistSessionDurationMinutes.Observe(float64(sess.TotalDurationSeconds) / 60)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	vars := mux.Vars(r)
	sessionID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return sessionID, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("session handler: marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, payloadJson, statusCode)
}

func (h *Handler) writeError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, ErrExerciseLogNotFound):
		http.Error(w, "exercise log not found", http.StatusNotFound)
	case errors.Is(err, plan.ErrPlanNotFound):
		http.Error(w, "workout plan not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition):
		var transitionErr *InvalidTransitionError
		message := "invalid session state transition"
		if errors.As(err, &transitionErr) {
			message = transitionErr.Error()
		}
		http.Error(w, message, http.StatusConflict)
	case errors.Is(err, ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Errorf("session handler: %s: %s", action, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
