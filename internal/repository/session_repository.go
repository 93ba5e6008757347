package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

// PostgresSessionRepository implements SessionRepository for PostgreSQL.
// The session actor mirrors every session save it makes to the fast
// store here as well — see internal/faststore for the authoritative
// in-flight copy.
type PostgresSessionRepository struct {
	db *DB
}

func NewPostgresSessionRepository(db *DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) CreateSession(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (id, quiz_id, join_code, state, current_question_index, allow_late_joiners, host_id, host_credential_hash, exam_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.QuizID, s.JoinCode, s.State, s.CurrentQuestionIndex, s.AllowLateJoiners, s.HostID, s.HostCredentialHash, s.ExamMode, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *PostgresSessionRepository) scanSession(row interface {
	Scan(dest ...interface{}) error
}) (*model.Session, error) {
	s := model.NewSession("", "", "", "")
	var currentQuestionID sql.NullString

	if err := row.Scan(
		&s.ID, &s.QuizID, &s.JoinCode, &s.State, &s.CurrentQuestionIndex, &currentQuestionID,
		&s.ParticipantCount, &s.AllowLateJoiners, &s.HostID, &s.HostCredentialHash, &s.ExamMode,
		&s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if currentQuestionID.Valid {
		s.CurrentQuestionID = currentQuestionID.String
	}
	return s, nil
}

func (r *PostgresSessionRepository) GetSessionByID(ctx context.Context, id string) (*model.Session, error) {
	query := `
		SELECT id, quiz_id, join_code, state, current_question_index, current_question_id,
		       participant_count, allow_late_joiners, host_id, host_credential_hash, exam_mode, created_at, updated_at
		FROM sessions WHERE id = $1
	`
	s, err := r.scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("session not found")
	}
	return s, err
}

func (r *PostgresSessionRepository) GetSessionByJoinCode(ctx context.Context, joinCode string) (*model.Session, error) {
	query := `
		SELECT id, quiz_id, join_code, state, current_question_index, current_question_id,
		       participant_count, allow_late_joiners, host_id, host_credential_hash, exam_mode, created_at, updated_at
		FROM sessions WHERE join_code = $1
	`
	s, err := r.scanSession(r.db.QueryRowContext(ctx, query, joinCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("session not found")
	}
	return s, err
}

func (r *PostgresSessionRepository) UpdateSession(ctx context.Context, s *model.Session) error {
	query := `
		UPDATE sessions
		SET state = $1, current_question_index = $2, current_question_id = $3,
		    participant_count = $4, allow_late_joiners = $5, exam_mode = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		s.State, s.CurrentQuestionIndex, nullIfEmpty(s.CurrentQuestionID), s.ParticipantCount, s.AllowLateJoiners, s.ExamMode, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, "session not found")
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
