package model

import "time"

// SessionState is one node of the lifecycle state machine in spec.md §4.D.
type SessionState string

const (
	SessionLobby          SessionState = "LOBBY"
	SessionActiveQuestion SessionState = "ACTIVE_QUESTION"
	SessionReveal         SessionState = "REVEAL"
	SessionEnded          SessionState = "ENDED"
)

// Session is the live run of a Quiz. The fast store holds the authoritative
// copy during gameplay (spec.md I6); this struct is the shape mirrored to
// both stores.
type Session struct {
	ID                       string          `json:"id" db:"id"`
	QuizID                   string          `json:"quizId" db:"quiz_id"`
	JoinCode                 string          `json:"joinCode" db:"join_code"`
	State                    SessionState    `json:"state" db:"state"`
	CurrentQuestionIndex     int             `json:"currentQuestionIndex" db:"current_question_index"`
	CurrentQuestionID        string          `json:"currentQuestionId,omitempty" db:"current_question_id"`
	CurrentQuestionStartTime time.Time       `json:"currentQuestionStartTime,omitempty" db:"current_question_start_time"`
	TimerEndTimeMs           int64           `json:"timerEndTime,omitempty" db:"timer_end_time_ms"`
	ParticipantCount         int             `json:"participantCount" db:"participant_count"`
	// AnswerEligibleCount excludes spectators (late joiners admitted
	// mid-question, eliminated players) from ParticipantCount — it is the
	// denominator the submission pipeline's all-answered completion check
	// uses, since spectators never submit.
	AnswerEligibleCount      int             `json:"answerEligibleCount" db:"answer_eligible_count"`
	ActiveParticipants       map[string]bool `json:"-" db:"-"`
	EliminatedParticipants   map[string]bool `json:"-" db:"-"`
	VoidedQuestions          map[string]bool `json:"-" db:"-"`
	AllowLateJoiners         bool            `json:"allowLateJoiners" db:"allow_late_joiners"`
	BannedIPs                map[string]bool `json:"-" db:"-"`
	HostID                   string          `json:"hostId" db:"host_id"`
	HostCredentialHash       string          `json:"-" db:"host_credential_hash"`
	ExamMode                 bool            `json:"examMode" db:"exam_mode"`
	CreatedAt                time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt                time.Time       `json:"updatedAt" db:"updated_at"`
}

// HasActiveTimer reports whether a countdown is currently associated with
// the session's current question (running or paused).
func (s *Session) HasActiveTimer() bool {
	return s.TimerEndTimeMs > 0
}

// Clone returns a deep-enough copy for safe handoff across goroutine
// boundaries (actor -> fanout payload assembly).
func (s *Session) Clone() *Session {
	cp := *s
	cp.ActiveParticipants = cloneSet(s.ActiveParticipants)
	cp.EliminatedParticipants = cloneSet(s.EliminatedParticipants)
	cp.VoidedQuestions = cloneSet(s.VoidedQuestions)
	cp.BannedIPs = cloneSet(s.BannedIPs)
	return &cp
}

func cloneSet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// NewSession creates a session in LOBBY state for the given quiz.
func NewSession(id, quizID, joinCode, hostID string) *Session {
	now := time.Now()
	return &Session{
		ID:                     id,
		QuizID:                 quizID,
		JoinCode:               joinCode,
		State:                  SessionLobby,
		ActiveParticipants:     make(map[string]bool),
		EliminatedParticipants: make(map[string]bool),
		VoidedQuestions:        make(map[string]bool),
		BannedIPs:              make(map[string]bool),
		AllowLateJoiners:       true,
		HostID:                 hostID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}
