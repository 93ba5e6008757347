package sessionactor

import (
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/scoring"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

// request is one item in the actor's mailbox: a control op or an internal
// event, processed one at a time by the Run loop so every mutation of
// session/participant state is linearized through a single goroutine
// (spec.md §5).
type request struct {
	kind    string
	payload any
	reply   chan response // nil for fire-and-forget internal events
}

type response struct {
	data any
	err  error
}

// Internal-only op kinds, never issued by a client.
const (
	opJoin         = "internal:join"
	opTimerExpired = "internal:timer_expired"
	opAllAnswered  = "internal:all_answered"
	opScoreCommit  = "internal:score_commit"
)

type hostOp struct {
	HostID string
}

type voidOp struct {
	HostID string
	Msg    wsproto.VoidQuestionMsg
}

type resetTimerOp struct {
	HostID       string
	NewTimeLimit int
}

type kickOp struct {
	HostID        string
	ParticipantID string
	Reason        string
	Ban           bool
}

type toggleLateJoinersOp struct {
	HostID string
	Allow  bool
}

type joinRequest struct {
	ParticipantID string
	Nickname      string
	IP            string
}

// scoreCommit carries a scoring worker's completed calculation back into
// the actor's serialized state for committing (participant totals,
// leaderboard, persistence, broadcast).
type scoreCommit struct {
	answer   *model.Answer
	result   scoring.Result
	question *model.Question
}
