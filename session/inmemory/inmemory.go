package inmemory

import (
	"context"
	"sync"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/models"
	"github.com/mohammad-safakhou/findly/session"
)

type entry struct {
	revision int64
	turns    []models.Turn
}

type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]entry
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]entry)}
}

func (s *InMemorySessionStore) Load(_ context.Context, sessionID string) (session.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.sessions[sessionID]
	return session.History{
		SessionID: sessionID,
		Revision:  e.revision,
		Turns:     append([]models.Turn(nil), e.turns...),
	}, nil
}

func (s *InMemorySessionStore) Save(_ context.Context, h session.History) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.sessions[h.SessionID]
	if e.revision != h.Revision {
		return 0, apperr.Conflict("session.save", session.ErrStaleRevision)
	}
	next := entry{revision: e.revision + 1, turns: append([]models.Turn(nil), h.Turns...)}
	s.sessions[h.SessionID] = next
	return next.revision, nil
}
