package domain

import "errors"

var (
	// ErrSessionNotFound is returned when the session id or join code is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrQuestionNotFound indicates a question id is invalid or was removed.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrPlayerNotFound indicates a player id does not exist in the session.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrGameEnded is returned when joining a finished session.
	ErrGameEnded = errors.New("game has ended")
	// ErrForbidden is returned when a host credential does not match the session.
	ErrForbidden = errors.New("host credential rejected")
	// ErrNameTaken is returned when the name belongs to an active player.
	ErrNameTaken = errors.New("name already in use")
	// ErrAlreadyAnswered is returned when a player answers the same question twice.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrAnswersNotAccepted is returned when submitting outside the answers_shown phase.
	ErrAnswersNotAccepted = errors.New("answers are not being accepted")
	// ErrWrongPhase is returned for a phase transition the current phase does not allow.
	ErrWrongPhase = errors.New("action not allowed in current phase")
	// ErrCannotGoBack is returned when the current state has no predecessor.
	ErrCannotGoBack = errors.New("no previous phase to go back to")
	// ErrNoEnabledQuestions is returned when starting a game without any enabled question.
	ErrNoEnabledQuestions = errors.New("session has no enabled questions")
	// ErrNotInLobby guards edits that are only permitted before the game starts.
	ErrNotInLobby = errors.New("session is not in lobby")
	// ErrInvalidQuestion indicates malformed question content.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidName is returned when a join name trims to nothing.
	ErrInvalidName = errors.New("invalid player name")
	// ErrInvalidThreshold indicates a summit threshold outside [0.5, 1.0].
	ErrInvalidThreshold = errors.New("summit threshold out of range")
)

// Kind buckets errors so transports can map them to user-visible messages
// and status codes without string matching.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindInvalidPhase Kind = "invalid_phase"
	KindValidation   Kind = "validation"
)

// KindOf classifies an error into its taxonomy bucket.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrPlayerNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNameTaken),
		errors.Is(err, ErrAlreadyAnswered):
		return KindConflict
	case errors.Is(err, ErrAnswersNotAccepted),
		errors.Is(err, ErrWrongPhase),
		errors.Is(err, ErrCannotGoBack),
		errors.Is(err, ErrGameEnded),
		errors.Is(err, ErrNotInLobby):
		return KindInvalidPhase
	case errors.Is(err, ErrNoEnabledQuestions),
		errors.Is(err, ErrInvalidQuestion),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidThreshold):
		return KindValidation
	default:
		return KindUnknown
	}
}
