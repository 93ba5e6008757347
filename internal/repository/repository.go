// Package repository implements the persistent store: the durable
// Postgres mirror of quiz, question, session, participant, answer and
// audit data, alongside the fast store's hot in-flight state.
package repository

import (
	"context"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

// QuizRepository persists quiz definitions and their questions.
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz *model.Quiz) error
	GetQuizByID(ctx context.Context, id string) (*model.Quiz, error)
	ListQuizzes(ctx context.Context) ([]*model.Quiz, error)
	UpdateQuiz(ctx context.Context, quiz *model.Quiz) error
	DeleteQuiz(ctx context.Context, id string) error
}

// QuestionRepository persists questions and their options.
type QuestionRepository interface {
	CreateQuestion(ctx context.Context, question *model.Question, quizID string) error
	GetQuestionsByQuizID(ctx context.Context, quizID string) ([]*model.Question, error)
	UpdateQuestion(ctx context.Context, question *model.Question) error
	DeleteQuestion(ctx context.Context, id string) error
}

// SessionRepository persists the durable mirror of a session's lifecycle,
// reconciled from the fast store rather than written on every tick.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSessionByID(ctx context.Context, id string) (*model.Session, error)
	GetSessionByJoinCode(ctx context.Context, joinCode string) (*model.Session, error)
	UpdateSession(ctx context.Context, session *model.Session) error
}

// ParticipantRepository persists participant records and reads leaderboard
// snapshots back out for reconciliation and post-game display.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, participant *model.Participant) error
	GetParticipantByID(ctx context.Context, id string) (*model.Participant, error)
	GetParticipantsBySessionID(ctx context.Context, sessionID string) ([]*model.Participant, error)
	UpdateParticipant(ctx context.Context, participant *model.Participant) error
	GetLeaderboard(ctx context.Context, sessionID string, limit int) ([]*model.Participant, error)
}

// AnswerRepository persists the append-only answer log.
type AnswerRepository interface {
	CreateAnswer(ctx context.Context, answer *model.Answer) error
	GetAnswersByQuestionID(ctx context.Context, questionID string) ([]*model.Answer, error)
	GetAnswersByParticipantID(ctx context.Context, participantID string) ([]*model.Answer, error)
	GetAnswer(ctx context.Context, participantID, questionID string) (*model.Answer, error)
}

// AuditLogRepository persists compliance/diagnostic events. Writers treat
// failures here as non-fatal (spec §7: audit loss is acceptable).
type AuditLogRepository interface {
	CreateAuditLog(ctx context.Context, entry *model.AuditLog) error
	GetAuditLogsBySessionID(ctx context.Context, sessionID string) ([]*model.AuditLog, error)
}
