package analytics_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/session/analytics"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_GetStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewMockanalyticsService(ctrl)
	handler := analytics.NewHandler(service)

	sessionID := uuid.New()
	service.
		EXPECT().
		GetLiveStats(gomock.Any(), sessionID).
		Return(&analytics.LiveStats{
			SessionID:        sessionID,
			State:            session.StateExercise,
			TotalVolume:      800,
			PerformanceScore: 78,
		}, nil)

	req := httptest.NewRequest("GET", "/sessions/"+sessionID.String()+"/stats", nil)
	req = mux.SetURLVars(req, map[string]string{"id": sessionID.String()})
	rr := httptest.NewRecorder()

	handler.HandleGetStats(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var stats analytics.LiveStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, sessionID, stats.SessionID)
	assert.Equal(t, float64(800), stats.TotalVolume)
	assert.Equal(t, 78, stats.PerformanceScore)
}

func TestHandler_GetStats_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := analytics.NewHandler(NewMockanalyticsService(ctrl))

	req := httptest.NewRequest("GET", "/sessions/nope/stats", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "nope"})
	rr := httptest.NewRecorder()

	handler.HandleGetStats(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_GetStats_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewMockanalyticsService(ctrl)
	handler := analytics.NewHandler(service)

	sessionID := uuid.New()
	service.
		EXPECT().
		GetLiveStats(gomock.Any(), sessionID).
		Return(nil, session.ErrSessionNotFound)

	req := httptest.NewRequest("GET", "/sessions/"+sessionID.String()+"/stats", nil)
	req = mux.SetURLVars(req, map[string]string{"id": sessionID.String()})
	rr := httptest.NewRecorder()

	handler.HandleGetStats(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_GetSummary(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewMockanalyticsService(ctrl)
	handler := analytics.NewHandler(service)

	sessionID := uuid.New()
	service.
		EXPECT().
		GetSummary(gomock.Any(), sessionID).
		Return(&analytics.Summary{
			SessionID:     sessionID,
			RecoveryHours: 36,
		}, nil)

	req := httptest.NewRequest("GET", "/sessions/"+sessionID.String()+"/summary", nil)
	req = mux.SetURLVars(req, map[string]string{"id": sessionID.String()})
	rr := httptest.NewRecorder()

	handler.HandleGetSummary(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var summary analytics.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, sessionID, summary.SessionID)
	assert.Equal(t, 36, summary.RecoveryHours)
}

func TestHandler_GetSummary_NotCompleted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewMockanalyticsService(ctrl)
	handler := analytics.NewHandler(service)

	sessionID := uuid.New()
	service.
		EXPECT().
		GetSummary(gomock.Any(), sessionID).
		Return(nil, analytics.ErrSessionNotCompleted)

	req := httptest.NewRequest("GET", "/sessions/"+sessionID.String()+"/summary", nil)
	req = mux.SetURLVars(req, map[string]string{"id": sessionID.String()})
	rr := httptest.NewRecorder()

	handler.HandleGetSummary(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandler_GetSummary_InternalError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewMockanalyticsService(ctrl)
	handler := analytics.NewHandler(service)

	sessionID := uuid.New()
	service.
		EXPECT().
		GetSummary(gomock.Any(), sessionID).
		Return(nil, errors.New("db exploded"))

	req := httptest.NewRequest("GET", "/sessions/"+sessionID.String()+"/summary", nil)
	req = mux.SetURLVars(req, map[string]string{"id": sessionID.String()})
	rr := httptest.NewRecorder()

	handler.HandleGetSummary(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
