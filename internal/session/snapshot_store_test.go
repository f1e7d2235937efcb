package session_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/2beens/fitsession/internal/session"

	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSnapshotStore_SaveAndGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := session.NewRedisSnapshotStore(db, time.Minute)
	ctx := context.Background()

	snapshot := session.RealtimeSnapshot{
		SessionID:     uuid.New(),
		Version:       3,
		State:         session.StateExercise,
		Phase:         session.PhaseExercise,
		SetsCompleted: 2,
		TotalVolume:   1600,
		TotalReps:     20,
		UpdatedAt:     time.Date(2024, 3, 10, 17, 30, 0, 0, time.UTC),
	}
	snapshotJson, err := json.Marshal(snapshot)
	require.NoError(t, err)
	key := "session::snapshot::" + snapshot.SessionID.String()

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, snapshotJson, time.Minute).SetVal("OK")
	require.NoError(t, store.Save(ctx, snapshot))

	mock.ExpectGet(key).SetVal(string(snapshotJson))
	fetched, err := store.Get(ctx, snapshot.SessionID)
	require.NoError(t, err)
	assert.Equal(t, snapshot, *fetched)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSnapshotStore_StaleVersionIgnored(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := session.NewRedisSnapshotStore(db, time.Minute)
	ctx := context.Background()

	sessionID := uuid.New()
	key := "session::snapshot::" + sessionID.String()

	newer := session.RealtimeSnapshot{SessionID: sessionID, Version: 5, State: session.StateRest}
	newerJson, err := json.Marshal(newer)
	require.NoError(t, err)

	// an older version must not overwrite the stored snapshot
	mock.ExpectGet(key).SetVal(string(newerJson))
	stale := session.RealtimeSnapshot{SessionID: sessionID, Version: 4, State: session.StateExercise}
	require.NoError(t, store.Save(ctx, stale))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSnapshotStore_GetMissing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := session.NewRedisSnapshotStore(db, time.Minute)

	sessionID := uuid.New()
	mock.ExpectGet("session::snapshot::" + sessionID.String()).RedisNil()

	_, err := store.Get(context.Background(), sessionID)
	require.ErrorIs(t, err, session.ErrSnapshotNotFound)
}
