package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"summit-trivia-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// SessionRepository abstracts how game sessions are stored (in-memory, Redis-backed, etc).
type SessionRepository interface {
	Put(session *GameSession)
	Get(sessionID string) (*GameSession, bool)
	GetByJoinCode(code string) (*GameSession, bool)
	Delete(sessionID string)
}

// QuestionRepository loads and persists question content. The core only
// writes it while a session is in the lobby; during gameplay it is read-only.
type QuestionRepository interface {
	ListEnabled(ctx context.Context, sessionID string) ([]domain.Question, error)
	ListAll(ctx context.Context, sessionID string) ([]domain.Question, error)
	Get(ctx context.Context, questionID string) (domain.Question, error)
	Save(ctx context.Context, question domain.Question) error
	DeleteQuestion(ctx context.Context, questionID string) error
	DeleteBySession(ctx context.Context, sessionID string) error
}

// GameService contains the host- and player-facing use cases. Phase
// transitions for one session are linearized by the session's own lock;
// sessions proceed fully independently of each other.
type GameService struct {
	sessions  SessionRepository
	questions QuestionRepository
	clock     clockwork.Clock
}

func NewGameService(sessions SessionRepository, questions QuestionRepository, clock clockwork.Clock) *GameService {
	return &GameService{sessions: sessions, questions: questions, clock: clock}
}

// SessionCredentials is what the host gets back from CreateSession. The
// secret token backs shareable host links and is never broadcast to players.
type SessionCredentials struct {
	Session     domain.Session `json:"session"`
	SecretToken string         `json:"secretToken"`
}

// CreateSession makes a fresh lobby and returns its host credentials.
func (g *GameService) CreateSession(_ context.Context) (SessionCredentials, error) {
	secret, err := randomToken(16)
	if err != nil {
		return SessionCredentials{}, err
	}
	code, err := randomJoinCode()
	if err != nil {
		return SessionCredentials{}, err
	}
	session := NewGameSession(uuid.NewString(), code, uuid.NewString(), secret, g.clock)
	g.sessions.Put(session)
	return SessionCredentials{Session: session.State(), SecretToken: secret}, nil
}

// RemoveSession deletes a session and everything it owns.
func (g *GameService) RemoveSession(ctx context.Context, sessionID, hostKey string) error {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return err
	}
	if err := g.questions.DeleteBySession(ctx, sessionID); err != nil {
		return err
	}
	g.sessions.Delete(sessionID)
	session.Close()
	return nil
}

// GetSession returns the session row by id.
func (g *GameService) GetSession(sessionID string) (domain.Session, error) {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session.State(), nil
}

// GetSessionByCode resolves a join code to the session row.
func (g *GameService) GetSessionByCode(code string) (domain.Session, error) {
	session, ok := g.sessions.GetByJoinCode(code)
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session.State(), nil
}

// Join adds a player to a session by id.
func (g *GameService) Join(sessionID, name string) (domain.Player, error) {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return domain.Player{}, domain.ErrSessionNotFound
	}
	return session.Join(name)
}

// JoinByCode adds a player to the session owning the join code.
func (g *GameService) JoinByCode(code, name string) (domain.Player, error) {
	session, ok := g.sessions.GetByJoinCode(code)
	if !ok {
		return domain.Player{}, domain.ErrSessionNotFound
	}
	return session.Join(name)
}

// Heartbeat refreshes player presence; unknown players are a no-op.
func (g *GameService) Heartbeat(sessionID, playerID string) {
	if session, ok := g.sessions.Get(sessionID); ok {
		session.Heartbeat(playerID)
	}
}

// Disconnect marks a player inactive immediately.
func (g *GameService) Disconnect(sessionID, playerID string) {
	if session, ok := g.sessions.Get(sessionID); ok {
		session.Disconnect(playerID)
	}
}

// Kick removes a player and their answers; host-only.
func (g *GameService) Kick(sessionID, hostKey, playerID string) error {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return err
	}
	return session.Kick(playerID)
}

// SubmitAnswer records one answer. Scoring is deferred to reveal so all
// answers to a question are ranked together.
func (g *GameService) SubmitAnswer(ctx context.Context, questionID, playerID string, optionIndex int) (domain.Answer, error) {
	question, err := g.questions.Get(ctx, questionID)
	if err != nil {
		return domain.Answer{}, err
	}
	session, ok := g.sessions.Get(question.SessionID)
	if !ok {
		return domain.Answer{}, domain.ErrSessionNotFound
	}
	enabled, err := g.questions.ListEnabled(ctx, question.SessionID)
	if err != nil {
		return domain.Answer{}, err
	}
	return session.Submit(enabled, questionID, playerID, optionIndex)
}

// StartGame moves lobby -> active/pre_game; host-only.
func (g *GameService) StartGame(ctx context.Context, sessionID, hostKey string) error {
	session, enabled, err := g.hostSessionWithQuestions(ctx, sessionID, hostKey)
	if err != nil {
		return err
	}
	return session.Start(enabled)
}

// NextQuestion advances to the next enabled question or finishes the game.
func (g *GameService) NextQuestion(ctx context.Context, sessionID, hostKey string) (finished bool, err error) {
	session, enabled, err := g.hostSessionWithQuestions(ctx, sessionID, hostKey)
	if err != nil {
		return false, err
	}
	return session.NextQuestion(enabled)
}

// ShowAnswers opens the current question for submissions.
func (g *GameService) ShowAnswers(sessionID, hostKey string) error {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return err
	}
	return session.ShowAnswers()
}

// RevealAnswer closes submissions and scores the current question.
func (g *GameService) RevealAnswer(ctx context.Context, sessionID, hostKey string) error {
	session, enabled, err := g.hostSessionWithQuestions(ctx, sessionID, hostKey)
	if err != nil {
		return err
	}
	return session.Reveal(enabled)
}

// ShowResults moves revealed -> results.
func (g *GameService) ShowResults(sessionID, hostKey string) error {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return err
	}
	return session.ShowResults()
}

// PreviousPhase steps back one phase; the flag is true when the step deleted
// the current question's answers.
func (g *GameService) PreviousPhase(ctx context.Context, sessionID, hostKey string) (isDestructive bool, err error) {
	session, enabled, err := g.hostSessionWithQuestions(ctx, sessionID, hostKey)
	if err != nil {
		return false, err
	}
	return session.PreviousPhase(enabled)
}

// FinishGame ends the game early.
func (g *GameService) FinishGame(sessionID, hostKey string) error {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return err
	}
	return session.Finish()
}

// BackToLobby resets the session to a fresh lobby with the same players.
func (g *GameService) BackToLobby(sessionID, hostKey string) error {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return err
	}
	return session.BackToLobby()
}

// SetSummitThreshold adjusts the scoring threshold while in the lobby.
func (g *GameService) SetSummitThreshold(sessionID, hostKey string, threshold float64) error {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return err
	}
	return session.SetSummitThreshold(threshold)
}

// AddQuestion appends a question to the session; lobby-only, host-only.
func (g *GameService) AddQuestion(ctx context.Context, sessionID, hostKey string, question domain.Question) (domain.Question, error) {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return domain.Question{}, err
	}
	if session.State().Status != domain.StatusLobby {
		return domain.Question{}, domain.ErrNotInLobby
	}
	question.ID = uuid.NewString()
	question.SessionID = sessionID
	question.Enabled = true
	if err := question.Validate(); err != nil {
		return domain.Question{}, err
	}
	all, err := g.questions.ListAll(ctx, sessionID)
	if err != nil {
		return domain.Question{}, err
	}
	// Orders must stay unique after deletions, so append past the max
	// rather than counting rows.
	next := 0
	for _, existing := range all {
		if existing.Order >= next {
			next = existing.Order + 1
		}
	}
	question.Order = next
	if err := g.questions.Save(ctx, question); err != nil {
		return domain.Question{}, err
	}
	return question, nil
}

// UpdateQuestion replaces question content; lobby-only, host-only.
func (g *GameService) UpdateQuestion(ctx context.Context, sessionID, hostKey string, question domain.Question) error {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return err
	}
	if session.State().Status != domain.StatusLobby {
		return domain.ErrNotInLobby
	}
	existing, err := g.questions.Get(ctx, question.ID)
	if err != nil {
		return err
	}
	if existing.SessionID != sessionID {
		return domain.ErrQuestionNotFound
	}
	question.SessionID = sessionID
	question.Order = existing.Order
	if err := question.Validate(); err != nil {
		return err
	}
	return g.questions.Save(ctx, question)
}

// SetQuestionEnabled toggles a question in or out of gameplay; lobby-only.
func (g *GameService) SetQuestionEnabled(ctx context.Context, sessionID, hostKey, questionID string, enabled bool) error {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return err
	}
	if session.State().Status != domain.StatusLobby {
		return domain.ErrNotInLobby
	}
	question, err := g.questions.Get(ctx, questionID)
	if err != nil {
		return err
	}
	if question.SessionID != sessionID {
		return domain.ErrQuestionNotFound
	}
	question.Enabled = enabled
	return g.questions.Save(ctx, question)
}

// DeleteQuestion removes a question; lobby-only, host-only.
func (g *GameService) DeleteQuestion(ctx context.Context, sessionID, hostKey, questionID string) error {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return err
	}
	if session.State().Status != domain.StatusLobby {
		return domain.ErrNotInLobby
	}
	question, err := g.questions.Get(ctx, questionID)
	if err != nil {
		return err
	}
	if question.SessionID != sessionID {
		return domain.ErrQuestionNotFound
	}
	return g.questions.DeleteQuestion(ctx, questionID)
}

// ListQuestions returns every question of the session, enabled or not.
func (g *GameService) ListQuestions(ctx context.Context, sessionID string) ([]domain.Question, error) {
	if _, ok := g.sessions.Get(sessionID); !ok {
		return nil, domain.ErrSessionNotFound
	}
	return g.questions.ListAll(ctx, sessionID)
}

// GetCurrentQuestion returns the selected question, or nil while
// currentQuestionIndex is -1.
func (g *GameService) GetCurrentQuestion(ctx context.Context, sessionID string) (*domain.Question, error) {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	enabled, err := g.questions.ListEnabled(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.CurrentQuestion(enabled), nil
}

// GetLeaderboard returns players sorted by elevation descending.
func (g *GameService) GetLeaderboard(sessionID string) ([]domain.Player, error) {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Leaderboard(), nil
}

// GetResults aggregates the answers to one question.
func (g *GameService) GetResults(ctx context.Context, questionID string) (domain.AnswerResults, error) {
	question, err := g.questions.Get(ctx, questionID)
	if err != nil {
		return domain.AnswerResults{}, err
	}
	session, ok := g.sessions.Get(question.SessionID)
	if !ok {
		return domain.AnswerResults{}, domain.ErrSessionNotFound
	}
	return session.Results(question), nil
}

// HasAnswered reports whether a player has answered a question.
func (g *GameService) HasAnswered(ctx context.Context, questionID, playerID string) (bool, error) {
	question, err := g.questions.Get(ctx, questionID)
	if err != nil {
		return false, err
	}
	session, ok := g.sessions.Get(question.SessionID)
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	return session.HasAnswered(questionID, playerID), nil
}

// GetTimingInfo returns the advisory timing facts for one question.
func (g *GameService) GetTimingInfo(ctx context.Context, questionID string) (domain.TimingInfo, error) {
	question, err := g.questions.Get(ctx, questionID)
	if err != nil {
		return domain.TimingInfo{}, err
	}
	session, ok := g.sessions.Get(question.SessionID)
	if !ok {
		return domain.TimingInfo{}, domain.ErrSessionNotFound
	}
	return session.Timing(question), nil
}

// GetRopeClimbingState builds the per-question climbing projection, or nil
// when no question is current. Recomputed from scratch on every call.
func (g *GameService) GetRopeClimbingState(ctx context.Context, sessionID string) (*domain.ClimbingState, error) {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	enabled, err := g.questions.ListEnabled(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	current := session.CurrentQuestion(enabled)
	if current == nil {
		return nil, nil
	}
	return buildClimbingState(
		session.State(),
		current,
		session.Answers(current.ID),
		session.Players(),
		g.clock.Now().UnixMilli(),
	), nil
}

// Subscribe returns a channel receiving session snapshots after every
// mutation. The caller must invoke the cancel function to avoid leaks.
func (g *GameService) Subscribe(sessionID string) (<-chan Snapshot, func(), error) {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

func (g *GameService) hostSession(sessionID, hostKey string) (*GameSession, error) {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if err := session.VerifyHost(hostKey); err != nil {
		return nil, err
	}
	return session, nil
}

func (g *GameService) hostSessionWithQuestions(ctx context.Context, sessionID, hostKey string) (*GameSession, []domain.Question, error) {
	session, err := g.hostSession(sessionID, hostKey)
	if err != nil {
		return nil, nil, err
	}
	enabled, err := g.questions.ListEnabled(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, enabled, nil
}

func randomToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// randomJoinCode produces a short, shout-across-the-room session code.
func randomJoinCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
