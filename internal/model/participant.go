package model

import "time"

// Participant is one player attached to a Session.
type Participant struct {
	ID              string    `json:"id" db:"id"`
	SessionID       string    `json:"sessionId" db:"session_id"`
	Nickname        string    `json:"nickname" db:"nickname"`
	IP              string    `json:"ip" db:"ip"`
	IsActive        bool      `json:"isActive" db:"is_active"`
	IsEliminated    bool      `json:"isEliminated" db:"is_eliminated"`
	IsSpectator     bool      `json:"isSpectator" db:"is_spectator"`
	IsBanned        bool      `json:"isBanned" db:"is_banned"`
	TotalScore      int       `json:"totalScore" db:"total_score"`
	TotalTimeMs     int64     `json:"totalTimeMs" db:"total_time_ms"`
	StreakCount     int       `json:"streakCount" db:"streak_count"`
	SocketID        string    `json:"socketId,omitempty" db:"socket_id"`
	LastConnectedAt time.Time `json:"lastConnectedAt" db:"last_connected_at"`
	JoinedAt        time.Time `json:"joinedAt" db:"joined_at"`
}

// NewParticipant creates a participant joining a session.
func NewParticipant(id, sessionID, nickname, ip string) *Participant {
	now := time.Now()
	return &Participant{
		ID:              id,
		SessionID:       sessionID,
		Nickname:        nickname,
		IP:              ip,
		IsActive:        true,
		JoinedAt:        now,
		LastConnectedAt: now,
	}
}

// LeaderboardScore is the composite score used to order the leaderboard
// sorted set: totalScore dominates, totalTimeMs breaks ties ascending
// (spec.md I5 / §4.G).
func (p *Participant) LeaderboardScore() float64 {
	return float64(p.TotalScore) - float64(p.TotalTimeMs)/1e9
}

// Answer is an append-only record of one participant's response to one
// question (spec.md §3). Once accepted it is never mutated, only
// superseded in effect by a void (which recomputes totals, not the record).
type Answer struct {
	ID                      string    `json:"id" db:"id"`
	SessionID               string    `json:"sessionId" db:"session_id"`
	ParticipantID           string    `json:"participantId" db:"participant_id"`
	QuestionID              string    `json:"questionId" db:"question_id"`
	SelectedOptionIDs       []string  `json:"selectedOptionIds" db:"-"`
	AnswerText              string    `json:"answerText,omitempty" db:"answer_text"`
	AnswerNumber            *float64  `json:"answerNumber,omitempty" db:"answer_number"`
	SubmittedAt             time.Time `json:"submittedAt" db:"submitted_at"`
	ResponseTimeMs          int64     `json:"responseTimeMs" db:"response_time_ms"`
	IsCorrect               bool      `json:"isCorrect" db:"is_correct"`
	CorrectnessFraction     float64   `json:"correctnessFraction" db:"correctness_fraction"`
	PointsAwarded           int       `json:"pointsAwarded" db:"points_awarded"`
	SpeedBonusApplied       bool      `json:"speedBonusApplied" db:"speed_bonus_applied"`
	StreakBonusApplied      bool      `json:"streakBonusApplied" db:"streak_bonus_applied"`
	PartialCreditApplied    bool      `json:"partialCreditApplied" db:"partial_credit_applied"`
	NegativeDeductionApplied bool     `json:"negativeDeductionApplied" db:"negative_deduction_applied"`
}

// AuditLog is an append-only diagnostic/compliance record (spec.md §3).
type AuditLog struct {
	ID            int64          `json:"id" db:"id"`
	Timestamp     time.Time      `json:"timestamp" db:"timestamp"`
	EventType     string         `json:"eventType" db:"event_type"`
	SessionID     string         `json:"sessionId,omitempty" db:"session_id"`
	ParticipantID string         `json:"participantId,omitempty" db:"participant_id"`
	QuizID        string         `json:"quizId,omitempty" db:"quiz_id"`
	UserID        string         `json:"userId,omitempty" db:"user_id"`
	Details       map[string]any `json:"details,omitempty" db:"-"`
	Error         string         `json:"error,omitempty" db:"error"`
}
