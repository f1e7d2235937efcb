package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/pkg"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=analytics_test

type analyticsService interface {
	GetLiveStats(ctx context.Context, sessionID uuid.UUID) (*LiveStats, error)
	GetSummary(ctx context.Context, sessionID uuid.UUID) (*Summary, error)
}

type Handler struct {
	service analyticsService
}

func NewHandler(service analyticsService) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	stats, err := h.service.GetLiveStats(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, "get live stats", err)
		return
	}

	h.writeJSON(w, stats)
}

func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	summary, err := h.service.GetSummary(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, "get summary", err)
		return
	}

	h.writeJSON(w, summary)
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("analytics handler: marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, payloadJson)
}

func (h *Handler) writeError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, ErrSessionNotCompleted):
		http.Error(w, "session is not completed yet", http.StatusConflict)
	default:
		log.Errorf("analytics handler: %s: %s", action, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
