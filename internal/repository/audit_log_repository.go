package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

// PostgresAuditLogRepository implements AuditLogRepository for PostgreSQL.
type PostgresAuditLogRepository struct {
	db *DB
}

func NewPostgresAuditLogRepository(db *DB) *PostgresAuditLogRepository {
	return &PostgresAuditLogRepository{db: db}
}

func (r *PostgresAuditLogRepository) CreateAuditLog(ctx context.Context, entry *model.AuditLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_logs (timestamp, event_type, session_id, participant_id, quiz_id, user_id, details, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.Timestamp, entry.EventType, nullIfEmpty(entry.SessionID), nullIfEmpty(entry.ParticipantID),
		nullIfEmpty(entry.QuizID), nullIfEmpty(entry.UserID), details, nullIfEmpty(entry.Error),
	)
	return err
}

func (r *PostgresAuditLogRepository) GetAuditLogsBySessionID(ctx context.Context, sessionID string) ([]*model.AuditLog, error) {
	query := `
		SELECT id, timestamp, event_type, session_id, participant_id, quiz_id, user_id, details, error
		FROM audit_logs WHERE session_id = $1 ORDER BY timestamp ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*model.AuditLog
	for rows.Next() {
		var a model.AuditLog
		var sessionID, participantID, quizID, userID, errStr sql.NullString
		var details []byte
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.EventType, &sessionID, &participantID, &quizID, &userID, &details, &errStr); err != nil {
			return nil, err
		}
		a.SessionID = sessionID.String
		a.ParticipantID = participantID.String
		a.QuizID = quizID.String
		a.UserID = userID.String
		a.Error = errStr.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &a.Details); err != nil {
				return nil, err
			}
		}
		logs = append(logs, &a)
	}
	return logs, rows.Err()
}
