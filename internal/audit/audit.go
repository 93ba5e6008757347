// Package audit writes compliance/diagnostic events to the persistent
// store. Per spec.md §7, audit loss is acceptable: a write failure is
// logged and swallowed, never propagated to the caller.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/repository"
)

type Logger struct {
	repo repository.AuditLogRepository
	log  *zap.Logger
}

func New(repo repository.AuditLogRepository, log *zap.Logger) *Logger {
	return &Logger{repo: repo, log: log}
}

// Record persists one audit entry. eventType names the occurrence
// (e.g. "RECOVERY_SUCCESS", "PARTICIPANT_KICKED"); details carries a
// free-form context bag.
func (l *Logger) Record(ctx context.Context, eventType, sessionID, participantID, quizID string, details map[string]any, recordErr error) {
	entry := &model.AuditLog{
		Timestamp:     time.Now(),
		EventType:     eventType,
		SessionID:     sessionID,
		ParticipantID: participantID,
		QuizID:        quizID,
		Details:       details,
	}
	if recordErr != nil {
		entry.Error = recordErr.Error()
	}

	if err := l.repo.CreateAuditLog(ctx, entry); err != nil {
		l.log.Warn("audit log write failed",
			zap.String("eventType", eventType),
			zap.String("sessionId", sessionID),
			zap.Error(err),
		)
	}
}
