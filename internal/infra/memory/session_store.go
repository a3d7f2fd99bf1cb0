package memory

import (
	"sync"

	"summit-trivia-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository with
// a join-code index alongside the id map.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.GameSession
	byCode   map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.GameSession),
		byCode:   make(map[string]string),
	}
}

func (s *SessionStore) Put(session *app.GameSession) {
	state := session.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.ID] = session
	s.byCode[state.JoinCode] = state.ID
}

func (s *SessionStore) Get(sessionID string) (*app.GameSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) GetByJoinCode(code string) (*app.GameSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, false
	}
	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	delete(s.byCode, session.State().JoinCode)
	delete(s.sessions, sessionID)
}
