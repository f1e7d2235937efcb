package achievements

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/session/analytics"
	"github.com/2beens/fitsession/pkg"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type achievementsService interface {
	EvaluateSummary(ctx context.Context, summary *analytics.Summary) ([]UnlockedAchievement, error)
	ListUnlocked(ctx context.Context, userID uuid.UUID) ([]Unlock, error)
}

type summaryProvider interface {
	GetSummary(ctx context.Context, sessionID uuid.UUID) (*analytics.Summary, error)
}

type Handler struct {
	service   achievementsService
	summaries summaryProvider
}

func NewHandler(service achievementsService, summaries summaryProvider) *Handler {
	return &Handler{
		service:   service,
		summaries: summaries,
	}
}

type evaluateRequest struct {
	SessionID uuid.UUID `json:"sessionId"`
}

type evaluateResponse struct {
	Unlocked []UnlockedAchievement `json:"unlocked"`
}

// HandleEvaluate re-runs the rules for a completed session. Evaluation
// normally happens on completion; this endpoint is the manual retry for
// sessions whose completion-time evaluation failed. Repeated calls are
// harmless.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == uuid.Nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	summary, err := h.summaries.GetSummary(r.Context(), req.SessionID)
	if err != nil {
		h.writeError(w, "get summary", err)
		return
	}

	unlocked, err := h.service.EvaluateSummary(r.Context(), summary)
	if err != nil {
		h.writeError(w, "evaluate", err)
		return
	}
	if unlocked == nil {
		unlocked = []UnlockedAchievement{}
	}

	h.writeJSON(w, evaluateResponse{Unlocked: unlocked})
}

func (h *Handler) HandleListUnlocked(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	unlocks, err := h.service.ListUnlocked(r.Context(), userID)
	if err != nil {
		h.writeError(w, "list unlocked", err)
		return
	}
	if unlocks == nil {
		unlocks = []Unlock{}
	}

	h.writeJSON(w, unlocks)
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("achievements handler: marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, payloadJson)
}

func (h *Handler) writeError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, analytics.ErrSessionNotCompleted):
		http.Error(w, "session is not completed", http.StatusConflict)
	default:
		log.Errorf("achievements handler: %s: %s", action, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
