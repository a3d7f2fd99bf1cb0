package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"summit-trivia-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionStore persists question JSONB in Postgres. The ord and enabled
// columns are duplicated out of the blob so listing stays a plain indexed query.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

func (s *QuestionStore) ListEnabled(ctx context.Context, sessionID string) ([]domain.Question, error) {
	return s.list(ctx,
		`SELECT data FROM questions WHERE session_id=$1 AND enabled ORDER BY ord, id`, sessionID)
}

func (s *QuestionStore) ListAll(ctx context.Context, sessionID string) ([]domain.Question, error) {
	return s.list(ctx,
		`SELECT data FROM questions WHERE session_id=$1 ORDER BY ord, id`, sessionID)
}

func (s *QuestionStore) list(ctx context.Context, query, sessionID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *QuestionStore) Get(ctx context.Context, questionID string) (domain.Question, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM questions WHERE id=$1`, questionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return q, nil
}

func (s *QuestionStore) Save(ctx context.Context, question domain.Question) error {
	raw, err := json.Marshal(question)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO questions (id, session_id, ord, enabled, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET ord=EXCLUDED.ord, enabled=EXCLUDED.enabled, data=EXCLUDED.data`,
		question.ID, question.SessionID, question.Order, question.Enabled, raw)
	if err != nil {
		return fmt.Errorf("save question: %w", err)
	}
	return nil
}

func (s *QuestionStore) DeleteQuestion(ctx context.Context, questionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id=$1`, questionID)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

func (s *QuestionStore) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE session_id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session questions: %w", err)
	}
	return nil
}
