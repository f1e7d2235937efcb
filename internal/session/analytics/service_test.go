package analytics_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/session/analytics"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summaryRepoStub struct {
	mutex     sync.Mutex
	summaries map[uuid.UUID]*analytics.Summary
}

func newSummaryRepoStub() *summaryRepoStub {
	return &summaryRepoStub{summaries: make(map[uuid.UUID]*analytics.Summary)}
}

func (r *summaryRepoStub) Save(_ context.Context, summary *analytics.Summary) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.summaries[summary.SessionID]; ok {
		return analytics.ErrSummaryExists
	}
	r.summaries[summary.SessionID] = summary
	return nil
}

func (r *summaryRepoStub) Get(_ context.Context, sessionID uuid.UUID) (*analytics.Summary, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	summary, ok := r.summaries[sessionID]
	if !ok {
		return nil, analytics.ErrSummaryNotFound
	}
	return summary, nil
}

func (r *summaryRepoStub) GetScore(_ context.Context, sessionID uuid.UUID) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	summary, ok := r.summaries[sessionID]
	if !ok {
		return 0, analytics.ErrSummaryNotFound
	}
	return summary.Stats.PerformanceScore, nil
}

func newAnalyticsService(t *testing.T, now func() time.Time) (*analytics.Service, *session.RepoMock, *summaryRepoStub) {
	t.Helper()
	repo := session.NewRepoMock()
	summaries := newSummaryRepoStub()
	svc := analytics.NewService(
		analytics.NewAnalyzer(analytics.DefaultConfig()),
		repo,
		summaries,
		nil,
		analytics.NewStatsCache(3*time.Second, now),
		now,
	)
	return svc, repo, summaries
}

func storedSession(t *testing.T, repo *session.RepoMock, sess *session.Session) {
	t.Helper()
	require.NoError(t, repo.CreateSession(context.Background(), sess, nil))
}

func TestService_GetLiveStats_Cached(t *testing.T) {
	now := testStart.Add(10 * time.Minute)
	svc, repo, _ := newAnalyticsService(t, func() time.Time { return now })
	ctx := context.Background()

	sess := runningSession(3, 9, 2400, 30)
	storedSession(t, repo, sess)

	stats, err := svc.GetLiveStats(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(2400), stats.TotalVolume)

	// a write inside the TTL window is not yet visible
	sess.TotalVolume = 9999
	require.NoError(t, repo.UpdateSession(ctx, sess))
	stats, err = svc.GetLiveStats(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(2400), stats.TotalVolume)

	// after expiry the fresh value comes through
	now = now.Add(4 * time.Second)
	stats, err = svc.GetLiveStats(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(9999), stats.TotalVolume)
}

func TestService_GetSummary(t *testing.T) {
	completedAt := testStart.Add(40 * time.Minute)
	svc, repo, summaries := newAnalyticsService(t, func() time.Time { return completedAt })
	ctx := context.Background()

	sess := runningSession(9, 9, 7200, 90)
	sess.State = session.StateCompleted
	sess.CompletedAt = &completedAt
	sess.TotalDurationSeconds = 2400
	sess.ActiveDurationSeconds = 2400
	storedSession(t, repo, sess)

	var hookRuns int
	svc.OnCompletion(func(_ context.Context, summary *analytics.Summary) error {
		hookRuns++
		assert.Equal(t, sess.ID, summary.SessionID)
		return nil
	})

	summary, err := svc.GetSummary(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, summary.SessionID)
	assert.Equal(t, 1, hookRuns)
	assert.Len(t, summaries.summaries, 1)

	// second read serves the persisted snapshot, hooks do not rerun
	again, err := svc.GetSummary(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, summary, again)
	assert.Equal(t, 1, hookRuns)
}

func TestService_GetSummary_NotCompleted(t *testing.T) {
	now := testStart.Add(10 * time.Minute)
	svc, repo, _ := newAnalyticsService(t, func() time.Time { return now })

	sess := runningSession(3, 9, 2400, 30)
	storedSession(t, repo, sess)

	_, err := svc.GetSummary(context.Background(), sess.ID)
	require.ErrorIs(t, err, analytics.ErrSessionNotCompleted)
}

func TestService_GetSummary_UnknownSession(t *testing.T) {
	svc, _, _ := newAnalyticsService(t, nil)

	_, err := svc.GetSummary(context.Background(), uuid.New())
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}
