package domain

// All timestamps are unix epoch milliseconds so snapshots serialize the same
// way everywhere and fake clocks stay trivial in tests.

// Summit is the elevation threshold marking game completion for a player.
const Summit = 1000

// PresenceTimeoutMillis is how long after the last heartbeat a player still
// counts as active.
const PresenceTimeoutMillis int64 = 15_000

const (
	// DefaultSummitThreshold is the fraction of questions a player must
	// answer correctly (ignoring speed bonuses) to reach the summit.
	DefaultSummitThreshold = 0.75
	MinSummitThreshold     = 0.5
	MaxSummitThreshold     = 1.0
)

// Session is one instance of a hosted game, identified by a join code.
type Session struct {
	ID          string `json:"id"`
	JoinCode    string `json:"joinCode"`
	HostID      string `json:"hostId"`
	SecretToken string `json:"-"` // shareable host credential, never broadcast
	Status      Status `json:"status"`
	// CurrentQuestionIndex indexes the enabled-questions-only sequence;
	// -1 means no question is selected.
	CurrentQuestionIndex int     `json:"currentQuestionIndex"`
	QuestionPhase        *Phase  `json:"questionPhase,omitempty"` // nil iff Status != active
	SummitThreshold      float64 `json:"summitThreshold"`
	CreatedAt            int64   `json:"createdAt"`
}

// Option is a possible answer for a question.
type Option struct {
	Text string `json:"text"`
}

// Question models a single prompt. A nil CorrectOptionIndex marks poll mode:
// every answer scores as correct.
type Question struct {
	ID                 string   `json:"id"`
	SessionID          string   `json:"sessionId"`
	Text               string   `json:"text"`
	Options            []Option `json:"options"`
	CorrectOptionIndex *int     `json:"correctOptionIndex,omitempty"`
	Order              int      `json:"order"`
	TimeLimit          int      `json:"timeLimit"` // seconds, advisory only
	Enabled            bool     `json:"enabled"`
	FollowUpText       string   `json:"followUpText,omitempty"`
}

// Validate checks the structural rules for question content.
func (q Question) Validate() error {
	if q.Text == "" {
		return ErrInvalidQuestion
	}
	if len(q.Options) < 2 {
		return ErrInvalidQuestion
	}
	if q.CorrectOptionIndex != nil && (*q.CorrectOptionIndex < 0 || *q.CorrectOptionIndex >= len(q.Options)) {
		return ErrInvalidQuestion
	}
	if q.TimeLimit <= 0 {
		return ErrInvalidQuestion
	}
	return nil
}

// Player is a participant and their cumulative elevation score.
type Player struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	Elevation int    `json:"elevation"`
	// LastSeenAt: nil = never seen, 0 = explicitly disconnected,
	// otherwise the epoch-ms of the last heartbeat.
	LastSeenAt      *int64 `json:"lastSeenAt,omitempty"`
	SummitPlace     *int   `json:"summitPlace,omitempty"`
	SummitElevation *int   `json:"summitElevation,omitempty"`
}

// Active reports whether the player currently counts as present.
func (p Player) Active(nowMillis int64) bool {
	return p.LastSeenAt != nil && *p.LastSeenAt != 0 &&
		nowMillis-*p.LastSeenAt < PresenceTimeoutMillis
}

// Answer is one player's answer to one question. At most one Answer exists
// per (QuestionID, PlayerID) pair. Scoring fields stay nil until reveal.
type Answer struct {
	ID                string   `json:"id"`
	QuestionID        string   `json:"questionId"`
	PlayerID          string   `json:"playerId"`
	OptionIndex       int      `json:"optionIndex"`
	AnsweredAt        int64    `json:"answeredAt"`
	ElevationAtAnswer int      `json:"elevationAtAnswer"`
	BaseScore         *int     `json:"baseScore,omitempty"`
	SpeedBonus        *float64 `json:"speedBonus,omitempty"`
	ElevationGain     *int     `json:"elevationGain,omitempty"`
}

// AnswerResults aggregates all answers to one question. Out-of-range option
// indexes are counted in TotalAnswers but excluded from OptionCounts.
type AnswerResults struct {
	TotalAnswers       int   `json:"totalAnswers"`
	OptionCounts       []int `json:"optionCounts"`
	CorrectOptionIndex *int  `json:"correctOptionIndex,omitempty"`
}

// TimingInfo exposes the advisory timing facts for one question.
type TimingInfo struct {
	FirstAnsweredAt *int64 `json:"firstAnsweredAt,omitempty"`
	TimeLimit       int    `json:"timeLimit"`
	TotalAnswers    int    `json:"totalAnswers"`
}

// ClimbingState is the per-question read projection driving climb visuals.
type ClimbingState struct {
	Question          ClimbQuestion `json:"question"`
	QuestionPhase     Phase         `json:"questionPhase"`
	Ropes             []Rope        `json:"ropes"`
	NotAnswered       []ClimbPlayer `json:"notAnswered"`
	TotalPlayers      int           `json:"totalPlayers"`
	AnsweredCount     int           `json:"answeredCount"`
	ActivePlayerCount int           `json:"activePlayerCount"`
	Timing            ClimbTiming   `json:"timing"`
}

// ClimbQuestion is the question subset the projection exposes.
type ClimbQuestion struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	TimeLimit int      `json:"timeLimit"`
	Options   []Option `json:"options"`
}

// Rope groups the players that picked one option, ordered by answer time.
// IsCorrect is nil in poll mode.
type Rope struct {
	OptionIndex int           `json:"optionIndex"`
	OptionText  string        `json:"optionText"`
	IsCorrect   *bool         `json:"isCorrect"`
	Players     []RopeClimber `json:"players"`
}

// RopeClimber is one player's position on a rope.
type RopeClimber struct {
	PlayerID          string `json:"playerId"`
	PlayerName        string `json:"playerName"`
	AnsweredAt        int64  `json:"answeredAt"`
	ElevationAtAnswer int    `json:"elevationAtAnswer"`
	ElevationGain     *int   `json:"elevationGain,omitempty"`
}

// ClimbPlayer identifies a player in the notAnswered list.
type ClimbPlayer struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Elevation  int    `json:"elevation"`
}

// ClimbTiming carries advisory expiry and the reveal flag. IsRevealed derives
// from the question phase alone, never from answer counts.
type ClimbTiming struct {
	FirstAnsweredAt *int64 `json:"firstAnsweredAt,omitempty"`
	TimeLimit       int    `json:"timeLimit"`
	IsExpired       bool   `json:"isExpired"`
	IsRevealed      bool   `json:"isRevealed"`
}
