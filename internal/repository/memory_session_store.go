package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
)

// MemorySessionStore keeps sessions in process memory. Used for local runs
// (SESSION_STORE=memory) and tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.ExamSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*model.ExamSession)}
}

func (m *MemorySessionStore) Create(_ context.Context, s *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemorySessionStore) GetByID(_ context.Context, id string) (*model.ExamSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemorySessionStore) Update(_ context.Context, s *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemorySessionStore) ListByUser(_ context.Context, userID string, limit int) ([]model.ExamSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ExamSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemorySessionStore) ListActiveTimed(_ context.Context) ([]model.ExamSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ExamSession
	for _, s := range m.sessions {
		if s.IsTimed() && !s.Status.Terminal() {
			out = append(out, *s.Clone())
		}
	}
	return out, nil
}
