package wsproto

// OptionPayload is the participant/bigscreen-facing projection of
// model.Option — isCorrect is never included (spec.md P2 / §4.D).
type OptionPayload struct {
	OptionID      string `json:"optionId"`
	OptionText    string `json:"optionText"`
	OptionImageURL string `json:"optionImageUrl,omitempty"`
}

// QuestionPayload is the safe, option-shuffled-per-recipient projection
// of model.Question sent in question_started and session_recovered.
type QuestionPayload struct {
	QuestionID       string          `json:"questionId"`
	QuestionText     string          `json:"questionText"`
	QuestionType     string          `json:"questionType"`
	QuestionImageURL string          `json:"questionImageUrl,omitempty"`
	Options          []OptionPayload `json:"options"`
	TimeLimit        int             `json:"timeLimit"`
	ShuffleOptions   bool            `json:"shuffleOptions"`
}

type CurrentStateSummary struct {
	State                string `json:"state"`
	CurrentQuestionIndex int    `json:"currentQuestionIndex"`
	ParticipantCount     int    `json:"participantCount"`
	RemainingTime        *int   `json:"remainingTime,omitempty"`
}

type AuthenticatedPayload struct {
	Success       bool                `json:"success"`
	SessionID     string              `json:"sessionId"`
	ParticipantID string              `json:"participantId,omitempty"`
	Nickname      string              `json:"nickname,omitempty"`
	CurrentState  CurrentStateSummary `json:"currentState"`
}

type AuthErrorPayload struct {
	Error string `json:"error"`
}

type LobbyParticipant struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
}

type LobbyStatePayload struct {
	SessionID        string             `json:"sessionId"`
	JoinCode         string             `json:"joinCode"`
	ParticipantCount int                `json:"participantCount"`
	Participants     []LobbyParticipant `json:"participants"`
	AllowLateJoiners bool               `json:"allowLateJoiners"`
}

type ParticipantJoinedPayload struct {
	ParticipantID    string `json:"participantId"`
	Nickname         string `json:"nickname"`
	ParticipantCount int    `json:"participantCount"`
	Timestamp        int64  `json:"timestamp"`
}

type QuizStartedPayload struct {
	SessionID      string `json:"sessionId"`
	TotalQuestions int    `json:"totalQuestions"`
	Timestamp      int64  `json:"timestamp"`
}

type QuestionStartedPayload struct {
	QuestionIndex int             `json:"questionIndex"`
	Question      QuestionPayload `json:"question"`
	StartTime     int64           `json:"startTime"`
	EndTime       int64           `json:"endTime"`
}

type TimerTickPayload struct {
	QuestionID       string `json:"questionId"`
	RemainingSeconds int    `json:"remainingSeconds"`
	ServerTime       int64  `json:"serverTime"`
}

type TimerStateChangePayload struct {
	QuestionID       string `json:"questionId"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

type QuestionSkippedPayload struct {
	QuestionID         string `json:"questionId"`
	QuestionIndex      int    `json:"questionIndex"`
	Reason             string `json:"reason"`
	Timestamp          int64  `json:"timestamp"`
	ExamModeSkipReveal bool   `json:"examModeSkipReveal"`
}

type QuestionVoidedPayload struct {
	QuestionID string `json:"questionId"`
	Reason     string `json:"reason"`
	Timestamp  int64  `json:"timestamp"`
}

type RevealStatistics struct {
	TotalAnswers        int     `json:"totalAnswers"`
	CorrectAnswers      int     `json:"correctAnswers"`
	AverageResponseTime float64 `json:"averageResponseTime"`
}

type RevealAnswersPayload struct {
	QuestionID      string           `json:"questionId"`
	CorrectOptions  []string         `json:"correctOptions"`
	ExplanationText string           `json:"explanationText,omitempty"`
	Statistics      RevealStatistics `json:"statistics"`
}

type LeaderboardEntry struct {
	Rank             int    `json:"rank"`
	ParticipantID    string `json:"participantId"`
	Nickname         string `json:"nickname"`
	TotalScore       int    `json:"totalScore"`
	LastQuestionScore int   `json:"lastQuestionScore"`
	StreakCount      int    `json:"streakCount"`
	TotalTimeMs      int64  `json:"totalTimeMs"`
}

type LeaderboardUpdatedPayload struct {
	TopN        int                `json:"topN"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type AnswerAcceptedPayload struct {
	QuestionID      string `json:"questionId"`
	AnswerID        string `json:"answerId"`
	ResponseTimeMs  int64  `json:"responseTimeMs"`
	ServerTimestamp int64  `json:"serverTimestamp"`
}

type AnswerRejectedPayload struct {
	QuestionID string `json:"questionId"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
}

type AnswerCountUpdatedPayload struct {
	QuestionID      string  `json:"questionId"`
	AnsweredCount   int     `json:"answeredCount"`
	TotalParticipants int  `json:"totalParticipants"`
	Percentage      float64 `json:"percentage"`
}

type EliminatedPayload struct {
	ParticipantID string `json:"participantId"`
	FinalRank     int    `json:"finalRank"`
	FinalScore    int    `json:"finalScore"`
	Message       string `json:"message"`
}

type ParticipantCountUpdatedPayload struct {
	ParticipantCount int `json:"participantCount"`
	EliminatedCount  int `json:"eliminatedCount"`
}

type ParticipantStatusChangedPayload struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	Status        string `json:"status"`
	Timestamp     int64  `json:"timestamp"`
}

type ParticipantLeftPayload struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	Reason        string `json:"reason"`
}

type KickedPayload struct {
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type SessionRecoveredPayload struct {
	CurrentState    string             `json:"currentState"`
	CurrentQuestion *QuestionPayload   `json:"currentQuestion,omitempty"`
	RemainingTime   *int               `json:"remainingTime,omitempty"`
	CorrectOptions  []string           `json:"correctOptions,omitempty"`
	Statistics      *RevealStatistics  `json:"statistics,omitempty"`
	TotalScore      int                `json:"totalScore"`
	Rank            int                `json:"rank"`
	StreakCount     int                `json:"streakCount"`
	IsEliminated    bool               `json:"isEliminated"`
	IsSpectator     bool               `json:"isSpectator"`
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
}

type RecoveryFailedPayload struct {
	Reason string `json:"reason"`
}

type QuizEndedPayload struct {
	SessionID       string             `json:"sessionId"`
	FinalLeaderboard []LeaderboardEntry `json:"finalLeaderboard"`
	Timestamp       int64              `json:"timestamp"`
}

type SystemMetricsPayload struct {
	ActiveConnections int     `json:"activeConnections"`
	AverageLatency    float64 `json:"averageLatency"`
	CPUUsage          float64 `json:"cpuUsage"`
	MemoryUsage       float64 `json:"memoryUsage"`
}

type ErrorPayload struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

type LateJoinersUpdatedPayload struct {
	AllowLateJoiners bool `json:"allowLateJoiners"`
}

// Client -> server payloads.

type SubmitAnswerMsg struct {
	QuestionID      string   `json:"questionId"`
	SelectedOptions []string `json:"selectedOptions"`
	AnswerText      string   `json:"answerText,omitempty"`
	AnswerNumber    *float64 `json:"answerNumber,omitempty"`
	ClientTimestamp float64  `json:"clientTimestamp"`
}

type ReconnectSessionMsg struct {
	SessionID           string `json:"sessionId"`
	ParticipantID        string `json:"participantId"`
	LastKnownQuestionID string `json:"lastKnownQuestionId,omitempty"`
}

type VoidQuestionMsg struct {
	QuestionID string `json:"questionId"`
	Reason     string `json:"reason"`
}

type ResetTimerMsg struct {
	NewTimeLimit int `json:"newTimeLimit"`
}

type KickParticipantMsg struct {
	ParticipantID string `json:"participantId"`
	Reason        string `json:"reason"`
}

type ToggleLateJoinersMsg struct {
	AllowLateJoiners bool `json:"allowLateJoiners"`
}

type FocusLostMsg struct {
	Timestamp int64 `json:"timestamp"`
}

type FocusRegainedMsg struct {
	Timestamp  int64 `json:"timestamp"`
	DurationMs int64 `json:"durationMs"`
}
