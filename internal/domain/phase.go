package domain

// Status is the lifecycle state of a session.
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Phase is the sub-state of an active session. It controls what players may
// do with the current question and is defined iff Status is StatusActive.
type Phase string

const (
	PhasePreGame       Phase = "pre_game"
	PhaseQuestionShown Phase = "question_shown"
	PhaseAnswersShown  Phase = "answers_shown"
	PhaseRevealed      Phase = "revealed"
	PhaseResults       Phase = "results"
)

// forwardPhase is the single-step forward transition table for the
// within-question phases. pre_game and results advance via nextQuestion,
// which is question selection rather than a phase step.
var forwardPhase = map[Phase]Phase{
	PhaseQuestionShown: PhaseAnswersShown,
	PhaseAnswersShown:  PhaseRevealed,
	PhaseRevealed:      PhaseResults,
}

// NextPhase returns the forward successor of p, if one exists.
func NextPhase(p Phase) (Phase, bool) {
	next, ok := forwardPhase[p]
	return next, ok
}

// AcceptsAnswers reports whether players may submit answers in phase p.
func AcceptsAnswers(p Phase) bool {
	return p == PhaseAnswersShown
}

// Revealed reports whether the current question's outcome is visible in phase p.
func Revealed(p Phase) bool {
	return p == PhaseRevealed || p == PhaseResults
}
