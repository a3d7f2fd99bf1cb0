package app

import (
	"testing"

	"summit-trivia-service/internal/domain"
)

func quizQuestion(correct int) domain.Question {
	idx := correct
	return domain.Question{
		ID:        "q1",
		SessionID: "s1",
		Text:      "Which peak is tallest?",
		Options: []domain.Option{
			{Text: "Everest"}, {Text: "K2"}, {Text: "Denali"},
		},
		CorrectOptionIndex: &idx,
		TimeLimit:          30,
		Enabled:            true,
	}
}

func answer(player string, option int, at int64) *domain.Answer {
	return &domain.Answer{
		ID:          "a-" + player,
		QuestionID:  "q1",
		PlayerID:    player,
		OptionIndex: option,
		AnsweredAt:  at,
	}
}

func TestScoreTwoCorrectAnswersSplitsSpeedBonus(t *testing.T) {
	// One question, threshold 0.75: base rounds to 1333, the single
	// bonus-eligible rank takes the full 20% pool.
	a := answer("A", 0, 1000)
	b := answer("B", 0, 2000)
	gains := scoreAnswers(quizQuestion(0), []*domain.Answer{b, a}, 1, 0.75)

	if gains["A"] != 1600 {
		t.Fatalf("expected A to gain 1600, got %d", gains["A"])
	}
	if gains["B"] != 1333 {
		t.Fatalf("expected B to gain 1333, got %d", gains["B"])
	}
	if *a.BaseScore != 1333 || *b.BaseScore != 1333 {
		t.Fatalf("expected base 1333 on both, got %d and %d", *a.BaseScore, *b.BaseScore)
	}
	if *b.SpeedBonus != 0 {
		t.Fatalf("expected no bonus for slower answer, got %f", *b.SpeedBonus)
	}
}

func TestScoreWrongAnswersGainNothing(t *testing.T) {
	right := answer("A", 0, 1000)
	wrong := answer("B", 1, 500)
	gains := scoreAnswers(quizQuestion(0), []*domain.Answer{right, wrong}, 2, 1.0)

	if gains["B"] != 0 {
		t.Fatalf("expected wrong answer to gain 0, got %d", gains["B"])
	}
	if *wrong.BaseScore != 0 || *wrong.SpeedBonus != 0 || *wrong.ElevationGain != 0 {
		t.Fatalf("expected zeroed scoring fields on wrong answer")
	}
	if gains["A"] != 600 { // 1000/(2*1.0)=500 base + full 100 bonus
		t.Fatalf("expected fast correct answer to gain 600, got %d", gains["A"])
	}
}

func TestScorePollModeCountsEveryAnswer(t *testing.T) {
	poll := quizQuestion(0)
	poll.CorrectOptionIndex = nil
	a := answer("A", 2, 1000)
	b := answer("B", 1, 2000)
	gains := scoreAnswers(poll, []*domain.Answer{a, b}, 1, 1.0)

	if gains["A"] != 1200 || gains["B"] != 1000 {
		t.Fatalf("expected poll gains 1200/1000, got %d/%d", gains["A"], gains["B"])
	}
}

func TestScoreBonusDecaysByRankWithinCutoff(t *testing.T) {
	// 10 correct answers, cutoff ceil(10*0.2)=2. With 4 questions at
	// threshold 1.0 the base is 250 and the pool 50: rank 1 takes 50,
	// rank 2 takes 25, rank 3 nothing.
	answers := make([]*domain.Answer, 0, 10)
	for i := 0; i < 10; i++ {
		answers = append(answers, answer(string(rune('A'+i)), 0, int64(1000+i)))
	}
	gains := scoreAnswers(quizQuestion(0), answers, 4, 1.0)

	if gains["A"] != 300 {
		t.Fatalf("expected rank 1 gain 300, got %d", gains["A"])
	}
	if gains["B"] != 275 {
		t.Fatalf("expected rank 2 gain 275, got %d", gains["B"])
	}
	if gains["C"] != 250 {
		t.Fatalf("expected rank 3 gain 250, got %d", gains["C"])
	}
}

func TestScoreNoAnswersIsNoop(t *testing.T) {
	gains := scoreAnswers(quizQuestion(0), nil, 3, 0.75)
	if len(gains) != 0 {
		t.Fatalf("expected no gains, got %v", gains)
	}
}

func TestAssignSummitPlacesDenseRanking(t *testing.T) {
	players := map[string]*domain.Player{
		"a": {ID: "a", Elevation: 1600},
		"b": {ID: "b", Elevation: 1333},
		"c": {ID: "c", Elevation: 1333},
		"d": {ID: "d", Elevation: 900},
	}
	assignSummitPlaces(players, []*domain.Player{players["a"], players["b"], players["c"]})

	if *players["a"].SummitPlace != 1 {
		t.Fatalf("expected place 1 for a, got %d", *players["a"].SummitPlace)
	}
	if *players["b"].SummitPlace != 2 || *players["c"].SummitPlace != 2 {
		t.Fatalf("expected tied place 2, got %d and %d", *players["b"].SummitPlace, *players["c"].SummitPlace)
	}
	if players["d"].SummitPlace != nil {
		t.Fatalf("expected no place below the summit")
	}
	if *players["a"].SummitElevation != 1600 {
		t.Fatalf("expected summit elevation snapshot 1600, got %d", *players["a"].SummitElevation)
	}

	// A later crosser ranks against everyone already up, without moving them.
	players["d"].Elevation = 1400
	assignSummitPlaces(players, []*domain.Player{players["d"]})
	if *players["d"].SummitPlace != 2 {
		t.Fatalf("expected place 2 for late crosser at 1400, got %d", *players["d"].SummitPlace)
	}
	if *players["b"].SummitPlace != 2 {
		t.Fatalf("expected existing places untouched, got %d", *players["b"].SummitPlace)
	}
}
