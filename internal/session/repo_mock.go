package session

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// RepoMock is an in-memory session repo used in tests and local dev.
type RepoMock struct {
	mutex        sync.RWMutex
	Sessions     map[uuid.UUID]*Session
	ExerciseLogs map[uuid.UUID][]*ExerciseLog
	SetLogs      map[uuid.UUID][]SetLog
}

func NewRepoMock() *RepoMock {
	return &RepoMock{
		Sessions:     make(map[uuid.UUID]*Session),
		ExerciseLogs: make(map[uuid.UUID][]*ExerciseLog),
		SetLogs:      make(map[uuid.UUID][]SetLog),
	}
}

func (r *RepoMock) CreateSession(_ context.Context, s *Session, logs []ExerciseLog) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored := *s
	r.Sessions[s.ID] = &stored
	for i := range logs {
		storedLog := logs[i]
		r.ExerciseLogs[s.ID] = append(r.ExerciseLogs[s.ID], &storedLog)
	}
	return nil
}

func (r *RepoMock) GetSession(_ context.Context, id uuid.UUID) (*Session, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	s, ok := r.Sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sessionCopy := *s
	return &sessionCopy, nil
}

func (r *RepoMock) UpdateSession(_ context.Context, s *Session) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	stored := *s
	r.Sessions[s.ID] = &stored
	return nil
}

func (r *RepoMock) ListForUser(_ context.Context, userID uuid.UUID, state State, limit int) ([]Session, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var sessions []Session
	for _, s := range r.Sessions {
		if s.UserID != userID {
			continue
		}
		if state != "" && s.State != state {
			continue
		}
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (r *RepoMock) PreviousCompleted(_ context.Context, s *Session) (*Session, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var previous *Session
	for _, candidate := range r.Sessions {
		if candidate.UserID != s.UserID || candidate.WorkoutID != s.WorkoutID {
			continue
		}
		if candidate.ID == s.ID || candidate.State != StateCompleted || candidate.CompletedAt == nil {
			continue
		}
		if !candidate.CompletedAt.Before(s.CreatedAt) {
			continue
		}
		if previous == nil || candidate.CompletedAt.After(*previous.CompletedAt) {
			previous = candidate
		}
	}
	if previous == nil {
		return nil, ErrSessionNotFound
	}
	previousCopy := *previous
	return &previousCopy, nil
}

func (r *RepoMock) ListExerciseLogs(_ context.Context, sessionID uuid.UUID) ([]ExerciseLog, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	logs := make([]ExerciseLog, 0, len(r.ExerciseLogs[sessionID]))
	for _, exLog := range r.ExerciseLogs[sessionID] {
		logs = append(logs, *exLog)
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].Position < logs[j].Position
	})
	return logs, nil
}

func (r *RepoMock) GetExerciseLogAt(_ context.Context, sessionID uuid.UUID, position int) (*ExerciseLog, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, exLog := range r.ExerciseLogs[sessionID] {
		if exLog.Position == position {
			logCopy := *exLog
			return &logCopy, nil
		}
	}
	return nil, ErrExerciseLogNotFound
}

func (r *RepoMock) UpdateExerciseLog(_ context.Context, exLog *ExerciseLog) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, logs := range r.ExerciseLogs {
		for i, stored := range logs {
			if stored.ID == exLog.ID {
				logCopy := *exLog
				logs[i] = &logCopy
				return nil
			}
		}
	}
	return ErrExerciseLogNotFound
}

func (r *RepoMock) AddSetLog(_ context.Context, setLog SetLog) (*SetLog, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if setLog.ID == uuid.Nil {
		setLog.ID = uuid.New()
	}
	sessionID := r.sessionIDForExerciseLog(setLog.ExerciseLogID)
	r.SetLogs[sessionID] = append(r.SetLogs[sessionID], setLog)
	return &setLog, nil
}

func (r *RepoMock) ListSetLogs(_ context.Context, sessionID uuid.UUID) ([]SetLog, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	logs := make([]SetLog, len(r.SetLogs[sessionID]))
	copy(logs, r.SetLogs[sessionID])
	return logs, nil
}

func (r *RepoMock) sessionIDForExerciseLog(exerciseLogID uuid.UUID) uuid.UUID {
	for sessionID, logs := range r.ExerciseLogs {
		for _, exLog := range logs {
			if exLog.ID == exerciseLogID {
				return sessionID
			}
		}
	}
	return uuid.Nil
}
