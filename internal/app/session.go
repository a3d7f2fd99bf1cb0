package app

import (
	"sort"
	"strings"
	"sync"

	"summit-trivia-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Snapshot is what subscribers receive after every mutation of a session.
type Snapshot struct {
	Session     domain.Session  `json:"session"`
	Leaderboard []domain.Player `json:"leaderboard"`
	UpdatedAt   int64           `json:"updatedAt"`
}

// GameSession is the in-memory aggregate for one hosted game. Its mutex
// linearizes phase transitions and makes the check-then-insert paths for
// join and submit atomic. Question content lives outside the aggregate;
// callers pass the enabled-question sequence into the methods that need it,
// so the filtered sequence is recomputed on every read.
type GameSession struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	state   domain.Session
	players map[string]*domain.Player
	// answers: question id -> player id -> answer. The inner map enforces
	// the at-most-one-answer-per-(question,player) invariant under mu.
	answers     map[string]map[string]*domain.Answer
	subscribers map[chan Snapshot]struct{}
}

// NewGameSession creates a lobby-state session.
func NewGameSession(id, joinCode, hostID, secretToken string, clock clockwork.Clock) *GameSession {
	return &GameSession{
		clock: clock,
		state: domain.Session{
			ID:                   id,
			JoinCode:             joinCode,
			HostID:               hostID,
			SecretToken:          secretToken,
			Status:               domain.StatusLobby,
			CurrentQuestionIndex: -1,
			SummitThreshold:      domain.DefaultSummitThreshold,
			CreatedAt:            clock.Now().UnixMilli(),
		},
		players:     make(map[string]*domain.Player),
		answers:     make(map[string]map[string]*domain.Answer),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// State returns a copy of the session row.
func (s *GameSession) State() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// VerifyHost checks a supplied host credential against the session's host id
// or its shareable secret token.
func (s *GameSession) VerifyHost(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key == "" || (key != s.state.HostID && key != s.state.SecretToken) {
		return domain.ErrForbidden
	}
	return nil
}

// Join registers a new player or reactivates an inactive row with the same
// name, preserving its elevation and summit placement.
func (s *GameSession) Join(name string) (domain.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Player{}, domain.ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status == domain.StatusFinished {
		return domain.Player{}, domain.ErrGameEnded
	}

	now := s.clock.Now().UnixMilli()
	for _, p := range s.players {
		if p.Name != name {
			continue
		}
		if p.Active(now) {
			return domain.Player{}, domain.ErrNameTaken
		}
		ts := now
		p.LastSeenAt = &ts
		s.broadcastLocked()
		return *p, nil
	}

	ts := now
	p := &domain.Player{
		ID:         uuid.NewString(),
		SessionID:  s.state.ID,
		Name:       name,
		LastSeenAt: &ts,
	}
	s.players[p.ID] = p
	s.broadcastLocked()
	return *p, nil
}

// Heartbeat refreshes a player's presence. Missing players are a no-op.
func (s *GameSession) Heartbeat(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return
	}
	ts := s.clock.Now().UnixMilli()
	p.LastSeenAt = &ts
}

// Disconnect marks a player inactive immediately, without waiting for the
// presence timeout. Missing players are a no-op.
func (s *GameSession) Disconnect(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return
	}
	zero := int64(0)
	p.LastSeenAt = &zero
	s.broadcastLocked()
}

// Kick removes a player and every answer they submitted.
func (s *GameSession) Kick(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[playerID]; !ok {
		return domain.ErrPlayerNotFound
	}
	delete(s.players, playerID)
	for _, byPlayer := range s.answers {
		delete(byPlayer, playerID)
	}
	s.broadcastLocked()
	return nil
}

// Submit appends one answer for (questionID, playerID). It fails unless the
// session is in answers_shown for exactly that question, and at most one
// answer per pair ever exists: the check and insert happen under the session
// lock, so concurrent submits race to a single winner.
func (s *GameSession) Submit(enabled []domain.Question, questionID, playerID string, optionIndex int) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return domain.Answer{}, domain.ErrPlayerNotFound
	}

	cur := s.currentQuestionLocked(enabled)
	if s.state.Status != domain.StatusActive ||
		s.state.QuestionPhase == nil || !domain.AcceptsAnswers(*s.state.QuestionPhase) ||
		cur == nil || cur.ID != questionID {
		return domain.Answer{}, domain.ErrAnswersNotAccepted
	}

	byPlayer := s.answers[questionID]
	if byPlayer == nil {
		byPlayer = make(map[string]*domain.Answer)
		s.answers[questionID] = byPlayer
	}
	if _, exists := byPlayer[playerID]; exists {
		return domain.Answer{}, domain.ErrAlreadyAnswered
	}

	a := &domain.Answer{
		ID:                uuid.NewString(),
		QuestionID:        questionID,
		PlayerID:          playerID,
		OptionIndex:       optionIndex,
		AnsweredAt:        s.clock.Now().UnixMilli(),
		ElevationAtAnswer: p.Elevation,
	}
	byPlayer[playerID] = a
	s.broadcastLocked()
	return *a, nil
}

// Start moves lobby -> active/pre_game. It requires at least one enabled question.
func (s *GameSession) Start(enabled []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != domain.StatusLobby {
		return domain.ErrWrongPhase
	}
	if len(enabled) == 0 {
		return domain.ErrNoEnabledQuestions
	}
	s.setPhaseLocked(domain.PhasePreGame)
	s.state.Status = domain.StatusActive
	s.state.CurrentQuestionIndex = -1
	s.broadcastLocked()
	return nil
}

// NextQuestion selects the next enabled question, or finishes the game when
// none remain. Legal from pre_game and results only.
func (s *GameSession) NextQuestion(enabled []domain.Question) (finished bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != domain.StatusActive || s.state.QuestionPhase == nil {
		return false, domain.ErrWrongPhase
	}
	switch *s.state.QuestionPhase {
	case domain.PhasePreGame:
		if len(enabled) == 0 {
			s.finishLocked()
			s.broadcastLocked()
			return true, nil
		}
		s.state.CurrentQuestionIndex = 0
		s.setPhaseLocked(domain.PhaseQuestionShown)
	case domain.PhaseResults:
		if s.state.CurrentQuestionIndex+1 >= len(enabled) {
			s.finishLocked()
			s.broadcastLocked()
			return true, nil
		}
		s.state.CurrentQuestionIndex++
		s.setPhaseLocked(domain.PhaseQuestionShown)
	default:
		return false, domain.ErrWrongPhase
	}
	s.broadcastLocked()
	return false, nil
}

// ShowAnswers moves question_shown -> answers_shown, opening submissions.
func (s *GameSession) ShowAnswers() error {
	return s.advance(domain.PhaseQuestionShown, domain.PhaseAnswersShown)
}

// ShowResults moves revealed -> results.
func (s *GameSession) ShowResults() error {
	return s.advance(domain.PhaseRevealed, domain.PhaseResults)
}

func (s *GameSession) advance(from, to domain.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != domain.StatusActive ||
		s.state.QuestionPhase == nil || *s.state.QuestionPhase != from {
		return domain.ErrWrongPhase
	}
	if next, ok := domain.NextPhase(from); !ok || next != to {
		return domain.ErrWrongPhase
	}
	s.setPhaseLocked(to)
	s.broadcastLocked()
	return nil
}

// Reveal moves answers_shown -> revealed and scores every answer to the
// current question in one step. Elevations are written as the delta against
// any gain already on the answer, so re-revealing after a backward step
// never credits the same answer twice.
func (s *GameSession) Reveal(enabled []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != domain.StatusActive ||
		s.state.QuestionPhase == nil || *s.state.QuestionPhase != domain.PhaseAnswersShown {
		return domain.ErrWrongPhase
	}
	cur := s.currentQuestionLocked(enabled)
	if cur == nil {
		return domain.ErrWrongPhase
	}

	answers := make([]*domain.Answer, 0, len(s.answers[cur.ID]))
	applied := make(map[string]int, len(s.answers[cur.ID]))
	for _, a := range s.answers[cur.ID] {
		answers = append(answers, a)
		if a.ElevationGain != nil {
			applied[a.PlayerID] = *a.ElevationGain
		}
	}
	gains := scoreAnswers(*cur, answers, len(enabled), s.state.SummitThreshold)

	var crossed []*domain.Player
	for playerID, gain := range gains {
		p, ok := s.players[playerID]
		delta := gain - applied[playerID]
		if !ok || delta == 0 {
			continue
		}
		before := p.Elevation
		p.Elevation += delta
		if before < domain.Summit && p.Elevation >= domain.Summit && p.SummitPlace == nil {
			crossed = append(crossed, p)
		}
	}
	assignSummitPlaces(s.players, crossed)

	s.setPhaseLocked(domain.PhaseRevealed)
	s.broadcastLocked()
	return nil
}

// Finish ends the game early from any active phase.
func (s *GameSession) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != domain.StatusActive {
		return domain.ErrWrongPhase
	}
	s.finishLocked()
	s.broadcastLocked()
	return nil
}

// BackToLobby resets an active or finished session to a fresh lobby with the
// same players: all answers are deleted and every player's elevation and
// summit placement are cleared.
func (s *GameSession) BackToLobby() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status == domain.StatusLobby {
		return domain.ErrWrongPhase
	}
	s.resetToLobbyLocked()
	s.broadcastLocked()
	return nil
}

// PreviousPhase steps the state machine backwards by one step. The only
// destructive step is answers_shown -> question_shown, which deletes every
// answer to the current question; the returned flag lets callers warn the
// operator before repeating it.
func (s *GameSession) PreviousPhase(enabled []domain.Question) (isDestructive bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != domain.StatusActive || s.state.QuestionPhase == nil {
		return false, domain.ErrCannotGoBack
	}

	switch *s.state.QuestionPhase {
	case domain.PhaseResults:
		s.setPhaseLocked(domain.PhaseRevealed)
	case domain.PhaseRevealed:
		s.setPhaseLocked(domain.PhaseAnswersShown)
	case domain.PhaseAnswersShown:
		if cur := s.currentQuestionLocked(enabled); cur != nil {
			delete(s.answers, cur.ID)
		}
		s.setPhaseLocked(domain.PhaseQuestionShown)
		isDestructive = true
	case domain.PhaseQuestionShown:
		if s.state.CurrentQuestionIndex > 0 {
			s.state.CurrentQuestionIndex--
			s.setPhaseLocked(domain.PhaseResults)
		} else {
			s.state.CurrentQuestionIndex = -1
			s.setPhaseLocked(domain.PhasePreGame)
		}
	case domain.PhasePreGame:
		s.state.Status = domain.StatusLobby
		s.state.QuestionPhase = nil
		s.state.CurrentQuestionIndex = -1
	default:
		return false, domain.ErrCannotGoBack
	}
	s.broadcastLocked()
	return isDestructive, nil
}

// SetSummitThreshold adjusts the summit threshold; lobby-only.
func (s *GameSession) SetSummitThreshold(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != domain.StatusLobby {
		return domain.ErrNotInLobby
	}
	if v < domain.MinSummitThreshold || v > domain.MaxSummitThreshold {
		return domain.ErrInvalidThreshold
	}
	s.state.SummitThreshold = v
	s.broadcastLocked()
	return nil
}

// CurrentQuestion returns the question selected by CurrentQuestionIndex
// within the enabled sequence, or nil when none is selected.
func (s *GameSession) CurrentQuestion(enabled []domain.Question) *domain.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentQuestionLocked(enabled)
}

// Players returns a copy of every player row.
func (s *GameSession) Players() []domain.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	return out
}

// Player returns one player row by id.
func (s *GameSession) Player(playerID string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return *p, nil
}

// Leaderboard returns players sorted by elevation descending, ties by name.
func (s *GameSession) Leaderboard() []domain.Player {
	players := s.Players()
	sortLeaderboard(players)
	return players
}

func sortLeaderboard(players []domain.Player) {
	sort.Slice(players, func(i, j int) bool {
		if players[i].Elevation != players[j].Elevation {
			return players[i].Elevation > players[j].Elevation
		}
		return players[i].Name < players[j].Name
	})
}

// Answers returns copies of every answer to one question, unordered.
func (s *GameSession) Answers(questionID string) []domain.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0, len(s.answers[questionID]))
	for _, a := range s.answers[questionID] {
		out = append(out, *a)
	}
	return out
}

// HasAnswered reports whether the player has an answer on record for the question.
func (s *GameSession) HasAnswered(questionID, playerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.answers[questionID][playerID]
	return ok
}

// Results aggregates the answers to one question into per-option counts.
func (s *GameSession) Results(question domain.Question) domain.AnswerResults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := domain.AnswerResults{
		OptionCounts:       make([]int, len(question.Options)),
		CorrectOptionIndex: question.CorrectOptionIndex,
	}
	for _, a := range s.answers[question.ID] {
		res.TotalAnswers++
		if a.OptionIndex >= 0 && a.OptionIndex < len(res.OptionCounts) {
			res.OptionCounts[a.OptionIndex]++
		}
	}
	return res
}

// Timing reports first-answer time and answer count for one question.
func (s *GameSession) Timing(question domain.Question) domain.TimingInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := domain.TimingInfo{TimeLimit: question.TimeLimit}
	for _, a := range s.answers[question.ID] {
		info.TotalAnswers++
		if info.FirstAnsweredAt == nil || a.AnsweredAt < *info.FirstAnsweredAt {
			ts := a.AnsweredAt
			info.FirstAnsweredAt = &ts
		}
	}
	return info
}

// Subscribe returns a channel receiving a snapshot after every mutation,
// primed with the current state. The cancel function must be called to
// release the subscription.
func (s *GameSession) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close drops all subscribers; used when the host removes the session.
func (s *GameSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = make(map[chan Snapshot]struct{})
}

func (s *GameSession) currentQuestionLocked(enabled []domain.Question) *domain.Question {
	idx := s.state.CurrentQuestionIndex
	if idx < 0 || idx >= len(enabled) {
		return nil
	}
	q := enabled[idx]
	return &q
}

func (s *GameSession) setPhaseLocked(p domain.Phase) {
	s.state.QuestionPhase = &p
}

func (s *GameSession) finishLocked() {
	s.state.Status = domain.StatusFinished
	s.state.QuestionPhase = nil
	s.state.CurrentQuestionIndex = -1
}

func (s *GameSession) resetToLobbyLocked() {
	s.state.Status = domain.StatusLobby
	s.state.QuestionPhase = nil
	s.state.CurrentQuestionIndex = -1
	s.answers = make(map[string]map[string]*domain.Answer)
	for _, p := range s.players {
		p.Elevation = 0
		p.SummitPlace = nil
		p.SummitElevation = nil
	}
}

func (s *GameSession) broadcastLocked() Snapshot {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow subscribers only ever need the latest snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *GameSession) snapshotLocked() Snapshot {
	players := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, *p)
	}
	sortLeaderboard(players)
	return Snapshot{
		Session:     s.state,
		Leaderboard: players,
		UpdatedAt:   s.clock.Now().UnixMilli(),
	}
}
