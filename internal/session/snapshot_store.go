package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2beens/fitsession/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// RedisSnapshotStore keeps the latest realtime snapshot per session in
// redis, under a TTL. The store is write-mostly: the client polls it
// for cheap optimistic sync without hitting postgres.
type RedisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{
		client: client,
		ttl:    ttl,
	}
}

func snapshotKey(sessionID uuid.UUID) string {
	return "session::snapshot::" + sessionID.String()
}

// Save stores the snapshot unless a newer version is already present.
// Out of order writes can happen when two commands race on the same
// session; the higher version always wins.
func (s *RedisSnapshotStore) Save(ctx context.Context, snapshot RealtimeSnapshot) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "snapshotstore.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", snapshot.SessionID.String()))
	span.SetAttributes(attribute.Int64("snapshot.version", snapshot.Version))

	current, err := s.Get(ctx, snapshot.SessionID)
	if err == nil && current.Version >= snapshot.Version {
		return nil
	}

	snapshotJson, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, snapshotKey(snapshot.SessionID), snapshotJson, s.ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Get(ctx context.Context, sessionID uuid.UUID) (_ *RealtimeSnapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "snapshotstore.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	snapshotJson, err := s.client.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var snapshot RealtimeSnapshot
	if err := json.Unmarshal(snapshotJson, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, sessionID uuid.UUID) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "snapshotstore.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	return s.client.Del(ctx, snapshotKey(sessionID)).Err()
}
