package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/lib/pq"
)

// PostgresAnswerRepository implements AnswerRepository for PostgreSQL.
type PostgresAnswerRepository struct {
	db *DB
}

func NewPostgresAnswerRepository(db *DB) *PostgresAnswerRepository {
	return &PostgresAnswerRepository{db: db}
}

func (r *PostgresAnswerRepository) CreateAnswer(ctx context.Context, a *model.Answer) error {
	query := `
		INSERT INTO answers (
			id, session_id, participant_id, question_id, selected_option_ids, answer_text, answer_number,
			submitted_at, response_time_ms, is_correct, correctness_fraction, points_awarded,
			speed_bonus_applied, streak_bonus_applied, partial_credit_applied, negative_deduction_applied
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.SessionID, a.ParticipantID, a.QuestionID, pq.Array(a.SelectedOptionIDs), a.AnswerText, a.AnswerNumber,
		a.SubmittedAt, a.ResponseTimeMs, a.IsCorrect, a.CorrectnessFraction, a.PointsAwarded,
		a.SpeedBonusApplied, a.StreakBonusApplied, a.PartialCreditApplied, a.NegativeDeductionApplied,
	)
	return err
}

const answerColumns = `
	id, session_id, participant_id, question_id, selected_option_ids, answer_text, answer_number,
	submitted_at, response_time_ms, is_correct, correctness_fraction, points_awarded,
	speed_bonus_applied, streak_bonus_applied, partial_credit_applied, negative_deduction_applied
`

func scanAnswer(row interface{ Scan(dest ...interface{}) error }) (*model.Answer, error) {
	var a model.Answer
	var answerText sql.NullString
	if err := row.Scan(
		&a.ID, &a.SessionID, &a.ParticipantID, &a.QuestionID, pq.Array(&a.SelectedOptionIDs), &answerText, &a.AnswerNumber,
		&a.SubmittedAt, &a.ResponseTimeMs, &a.IsCorrect, &a.CorrectnessFraction, &a.PointsAwarded,
		&a.SpeedBonusApplied, &a.StreakBonusApplied, &a.PartialCreditApplied, &a.NegativeDeductionApplied,
	); err != nil {
		return nil, err
	}
	if answerText.Valid {
		a.AnswerText = answerText.String
	}
	return &a, nil
}

func (r *PostgresAnswerRepository) GetAnswersByQuestionID(ctx context.Context, questionID string) ([]*model.Answer, error) {
	query := `SELECT ` + answerColumns + ` FROM answers WHERE question_id = $1 ORDER BY submitted_at ASC`
	rows, err := r.db.QueryContext(ctx, query, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []*model.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (r *PostgresAnswerRepository) GetAnswersByParticipantID(ctx context.Context, participantID string) ([]*model.Answer, error) {
	query := `SELECT ` + answerColumns + ` FROM answers WHERE participant_id = $1 ORDER BY submitted_at ASC`
	rows, err := r.db.QueryContext(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []*model.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (r *PostgresAnswerRepository) GetAnswer(ctx context.Context, participantID, questionID string) (*model.Answer, error) {
	query := `SELECT ` + answerColumns + ` FROM answers WHERE participant_id = $1 AND question_id = $2`
	a, err := scanAnswer(r.db.QueryRowContext(ctx, query, participantID, questionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}
