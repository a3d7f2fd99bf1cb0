package redis

import (
	"context"
	"sync"
	"time"

	"summit-trivia-service/internal/app"

	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - It keeps a local in-memory map of sessions so the in-process phase
//     machine and broadcast logic stay untouched.
//   - Redis marks session liveness by join code (and could be extended to
//     share snapshots or route cross-instance pub/sub).
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.GameSession
	byCode   map[string]string
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(state.ID), state.JoinCode, s.ttl).Err()
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
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

func (s *SessionStore) key(sessionID string) string {
	return "trivia:session:" + sessionID
}
