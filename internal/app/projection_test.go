package app

import (
	"testing"
	"time"

	"summit-trivia-service/internal/domain"

	"github.com/jonboulle/clockwork"
)

func climbFixture(t *testing.T) (*GameSession, []domain.Question, domain.Player, domain.Player, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s := newTestSession(clock)
	enabled := testQuestions(1)
	alice, _ := s.Join("Alice")
	bob, _ := s.Join("Bob")
	toAnswersShown(t, s, enabled)
	return s, enabled, alice, bob, clock
}

func climbState(s *GameSession, enabled []domain.Question, now int64) *domain.ClimbingState {
	q := s.CurrentQuestion(enabled)
	var answers []domain.Answer
	if q != nil {
		answers = s.Answers(q.ID)
	}
	return buildClimbingState(s.State(), q, answers, s.Players(), now)
}

func TestClimbingStateGroupsPlayersOntoRopes(t *testing.T) {
	s, enabled, alice, bob, clock := climbFixture(t)

	if _, err := s.Submit(enabled, enabled[0].ID, bob.ID, 1); err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	clock.Advance(time.Second)
	if _, err := s.Submit(enabled, enabled[0].ID, alice.ID, 1); err != nil {
		t.Fatalf("submit alice: %v", err)
	}

	state := climbState(s, enabled, clock.Now().UnixMilli())
	if state == nil {
		t.Fatalf("expected a climbing state")
	}
	if len(state.Ropes) != 3 {
		t.Fatalf("expected one rope per option, got %d", len(state.Ropes))
	}
	rope := state.Ropes[1]
	if len(rope.Players) != 2 {
		t.Fatalf("expected both players on rope 1, got %d", len(rope.Players))
	}
	// Sorted by answer time: Bob answered first.
	if rope.Players[0].PlayerName != "Bob" || rope.Players[1].PlayerName != "Alice" {
		t.Fatalf("expected Bob before Alice, got %+v", rope.Players)
	}
	if *state.Ropes[0].IsCorrect != true || *state.Ropes[1].IsCorrect != false {
		t.Fatalf("unexpected correctness flags")
	}
	if state.AnsweredCount != 2 || state.TotalPlayers != 2 || len(state.NotAnswered) != 0 {
		t.Fatalf("unexpected counts: %+v", state)
	}
	if state.ActivePlayerCount != 2 {
		t.Fatalf("expected both players active, got %d", state.ActivePlayerCount)
	}
}

func TestClimbingStateNotAnsweredAndPresence(t *testing.T) {
	s, enabled, alice, _, clock := climbFixture(t)

	if _, err := s.Submit(enabled, enabled[0].ID, alice.ID, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	clock.Advance(time.Duration(domain.PresenceTimeoutMillis+1) * time.Millisecond)
	s.Heartbeat(alice.ID)

	state := climbState(s, enabled, clock.Now().UnixMilli())
	if len(state.NotAnswered) != 1 || state.NotAnswered[0].PlayerName != "Bob" {
		t.Fatalf("expected only Bob unanswered, got %+v", state.NotAnswered)
	}
	// Bob timed out; only Alice heartbeated.
	if state.ActivePlayerCount != 1 {
		t.Fatalf("expected one active player, got %d", state.ActivePlayerCount)
	}
}

func TestClimbingStateRevealDerivesFromPhaseOnly(t *testing.T) {
	s, enabled, alice, bob, clock := climbFixture(t)

	// Everyone answered, but the host has not revealed.
	if _, err := s.Submit(enabled, enabled[0].ID, alice.ID, 0); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if _, err := s.Submit(enabled, enabled[0].ID, bob.ID, 1); err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	state := climbState(s, enabled, clock.Now().UnixMilli())
	if state.Timing.IsRevealed {
		t.Fatalf("an all-answered question is not auto-revealed")
	}

	if err := s.Reveal(enabled); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	state = climbState(s, enabled, clock.Now().UnixMilli())
	if !state.Timing.IsRevealed {
		t.Fatalf("expected revealed after the host transition")
	}
	for _, climber := range state.Ropes[0].Players {
		if climber.ElevationGain == nil {
			t.Fatalf("expected elevation gains after reveal")
		}
	}
}

func TestClimbingStateNilWithoutCurrentQuestion(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestSession(clock)
	enabled := testQuestions(1)

	if state := climbState(s, enabled, clock.Now().UnixMilli()); state != nil {
		t.Fatalf("expected nil state in lobby")
	}
	if err := s.Start(enabled); err != nil {
		t.Fatalf("start: %v", err)
	}
	if state := climbState(s, enabled, clock.Now().UnixMilli()); state != nil {
		t.Fatalf("expected nil state in pre_game")
	}
}

func TestClimbingStatePollModeHasNoCorrectness(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestSession(clock)
	poll := testQuestions(1)
	poll[0].CorrectOptionIndex = nil
	toAnswersShown(t, s, poll)

	state := climbState(s, poll, clock.Now().UnixMilli())
	for _, rope := range state.Ropes {
		if rope.IsCorrect != nil {
			t.Fatalf("expected nil correctness in poll mode")
		}
	}
}

func TestClimbingStateTimingExpiry(t *testing.T) {
	s, enabled, alice, _, clock := climbFixture(t)

	if _, err := s.Submit(enabled, enabled[0].ID, alice.ID, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	state := climbState(s, enabled, clock.Now().UnixMilli())
	if state.Timing.IsExpired {
		t.Fatalf("expected not expired immediately")
	}

	clock.Advance(time.Duration(enabled[0].TimeLimit) * time.Second)
	state = climbState(s, enabled, clock.Now().UnixMilli())
	if !state.Timing.IsExpired {
		t.Fatalf("expected expiry after the time limit")
	}
	// Expiry is advisory: submissions are still accepted until reveal.
	bob, err := s.Join("Carol")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := s.Submit(enabled, enabled[0].ID, bob.ID, 0); err != nil {
		t.Fatalf("expected late submit accepted, got %v", err)
	}
}

func TestClimbingStateToleratesOutOfRangeOption(t *testing.T) {
	s, enabled, alice, _, clock := climbFixture(t)
	if _, err := s.Submit(enabled, enabled[0].ID, alice.ID, 99); err != nil {
		t.Fatalf("submit: %v", err)
	}
	state := climbState(s, enabled, clock.Now().UnixMilli())
	if state.AnsweredCount != 1 {
		t.Fatalf("expected stray answer counted, got %d", state.AnsweredCount)
	}
	for _, rope := range state.Ropes {
		if len(rope.Players) != 0 {
			t.Fatalf("expected no rope to carry the stray answer")
		}
	}
	res := s.Results(enabled[0])
	if res.TotalAnswers != 1 {
		t.Fatalf("expected total 1, got %d", res.TotalAnswers)
	}
	for i, count := range res.OptionCounts {
		if count != 0 {
			t.Fatalf("expected option %d count 0, got %d", i, count)
		}
	}
}
