package app

import (
	"sort"

	"summit-trivia-service/internal/domain"
)

// buildClimbingState projects one question's answers and the session players
// into the rope-climbing view. It returns nil when no question is selected
// (lobby, pre_game, finished). IsRevealed derives from the question phase
// alone: a fully answered question stays unrevealed until the host reveals it.
func buildClimbingState(
	session domain.Session,
	question *domain.Question,
	answers []domain.Answer,
	players []domain.Player,
	nowMillis int64,
) *domain.ClimbingState {
	if question == nil || session.QuestionPhase == nil || *session.QuestionPhase == domain.PhasePreGame {
		return nil
	}
	phase := *session.QuestionPhase

	state := &domain.ClimbingState{
		Question: domain.ClimbQuestion{
			ID:        question.ID,
			Text:      question.Text,
			TimeLimit: question.TimeLimit,
			Options:   question.Options,
		},
		QuestionPhase: phase,
		Ropes:         make([]domain.Rope, len(question.Options)),
		TotalPlayers:  len(players),
	}

	byPlayer := make(map[string]domain.Answer, len(answers))
	for _, a := range answers {
		byPlayer[a.PlayerID] = a
	}
	names := make(map[string]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
		if p.Active(nowMillis) {
			state.ActivePlayerCount++
		}
	}

	for i, opt := range question.Options {
		rope := domain.Rope{OptionIndex: i, OptionText: opt.Text, Players: []domain.RopeClimber{}}
		if question.CorrectOptionIndex != nil {
			correct := i == *question.CorrectOptionIndex
			rope.IsCorrect = &correct
		}
		state.Ropes[i] = rope
	}

	var firstAnsweredAt *int64
	for _, a := range answers {
		state.AnsweredCount++
		if firstAnsweredAt == nil || a.AnsweredAt < *firstAnsweredAt {
			ts := a.AnsweredAt
			firstAnsweredAt = &ts
		}
		// Out-of-range options are counted but have no rope to climb.
		if a.OptionIndex < 0 || a.OptionIndex >= len(state.Ropes) {
			continue
		}
		state.Ropes[a.OptionIndex].Players = append(state.Ropes[a.OptionIndex].Players, domain.RopeClimber{
			PlayerID:          a.PlayerID,
			PlayerName:        names[a.PlayerID],
			AnsweredAt:        a.AnsweredAt,
			ElevationAtAnswer: a.ElevationAtAnswer,
			ElevationGain:     a.ElevationGain,
		})
	}
	for i := range state.Ropes {
		climbers := state.Ropes[i].Players
		sort.Slice(climbers, func(a, b int) bool {
			return climbers[a].AnsweredAt < climbers[b].AnsweredAt
		})
	}

	state.NotAnswered = []domain.ClimbPlayer{}
	for _, p := range players {
		if _, answered := byPlayer[p.ID]; !answered {
			state.NotAnswered = append(state.NotAnswered, domain.ClimbPlayer{
				PlayerID:   p.ID,
				PlayerName: p.Name,
				Elevation:  p.Elevation,
			})
		}
	}
	sort.Slice(state.NotAnswered, func(a, b int) bool {
		return state.NotAnswered[a].PlayerName < state.NotAnswered[b].PlayerName
	})

	state.Timing = domain.ClimbTiming{
		FirstAnsweredAt: firstAnsweredAt,
		TimeLimit:       question.TimeLimit,
		IsRevealed:      domain.Revealed(phase),
	}
	if firstAnsweredAt != nil {
		state.Timing.IsExpired = nowMillis-*firstAnsweredAt >= int64(question.TimeLimit)*1000
	}
	return state
}
