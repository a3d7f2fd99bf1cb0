package memory

import (
	"context"
	"sort"
	"sync"

	"summit-trivia-service/internal/domain"
)

// QuestionStore is an in-memory implementation of app.QuestionRepository,
// used when no Postgres is configured and as the seed store in tests.
type QuestionStore struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
}

func NewQuestionStore() *QuestionStore {
	return &QuestionStore{questions: make(map[string]domain.Question)}
}

// NewSeededQuestionStore builds a store pre-filled with questions.
func NewSeededQuestionStore(questions []domain.Question) *QuestionStore {
	store := NewQuestionStore()
	for _, q := range questions {
		store.questions[q.ID] = q
	}
	return store
}

func (s *QuestionStore) ListEnabled(_ context.Context, sessionID string) ([]domain.Question, error) {
	return s.list(sessionID, true), nil
}

func (s *QuestionStore) ListAll(_ context.Context, sessionID string) ([]domain.Question, error) {
	return s.list(sessionID, false), nil
}

func (s *QuestionStore) list(sessionID string, enabledOnly bool) []domain.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		if q.SessionID != sessionID {
			continue
		}
		if enabledOnly && !q.Enabled {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *QuestionStore) Get(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *QuestionStore) Save(_ context.Context, question domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[question.ID] = question
	return nil
}

func (s *QuestionStore) DeleteQuestion(_ context.Context, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.questions, questionID)
	return nil
}

func (s *QuestionStore) DeleteBySession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, q := range s.questions {
		if q.SessionID == sessionID {
			delete(s.questions, id)
		}
	}
	return nil
}
