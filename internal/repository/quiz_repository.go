package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

// PostgresQuizRepository implements QuizRepository for PostgreSQL.
type PostgresQuizRepository struct {
	db *DB
}

func NewPostgresQuizRepository(db *DB) *PostgresQuizRepository {
	return &PostgresQuizRepository{db: db}
}

func (r *PostgresQuizRepository) CreateQuiz(ctx context.Context, quiz *model.Quiz) error {
	elimination, err := json.Marshal(quiz.EliminationSettings)
	if err != nil {
		return err
	}
	ffi, err := json.Marshal(quiz.FFISettings)
	if err != nil {
		return err
	}
	exam, err := json.Marshal(quiz.ExamSettings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO quizzes (id, title, description, type, elimination_settings, ffi_settings, exam_settings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		quiz.ID, quiz.Title, quiz.Description, quiz.Type, elimination, ffi, exam, quiz.CreatedAt,
	)
	return err
}

func (r *PostgresQuizRepository) scanQuiz(row interface {
	Scan(dest ...interface{}) error
}) (*model.Quiz, error) {
	var quiz model.Quiz
	var description sql.NullString
	var elimination, ffi, exam []byte

	if err := row.Scan(
		&quiz.ID, &quiz.Title, &description, &quiz.Type, &elimination, &ffi, &exam, &quiz.CreatedAt,
	); err != nil {
		return nil, err
	}

	if description.Valid {
		quiz.Description = description.String
	}
	if err := json.Unmarshal(elimination, &quiz.EliminationSettings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ffi, &quiz.FFISettings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(exam, &quiz.ExamSettings); err != nil {
		return nil, err
	}

	return &quiz, nil
}

func (r *PostgresQuizRepository) GetQuizByID(ctx context.Context, id string) (*model.Quiz, error) {
	query := `
		SELECT id, title, description, type, elimination_settings, ffi_settings, exam_settings, created_at
		FROM quizzes WHERE id = $1
	`
	quiz, err := r.scanQuiz(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("quiz not found")
	}
	if err != nil {
		return nil, err
	}

	questions, err := (&PostgresQuestionRepository{db: r.db}).GetQuestionsByQuizID(ctx, id)
	if err != nil {
		return nil, err
	}
	quiz.Questions = make([]model.Question, len(questions))
	for i, q := range questions {
		quiz.Questions[i] = *q
	}

	return quiz, nil
}

func (r *PostgresQuizRepository) ListQuizzes(ctx context.Context) ([]*model.Quiz, error) {
	query := `
		SELECT id, title, description, type, elimination_settings, ffi_settings, exam_settings, created_at
		FROM quizzes ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []*model.Quiz
	for rows.Next() {
		quiz, err := r.scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

func (r *PostgresQuizRepository) UpdateQuiz(ctx context.Context, quiz *model.Quiz) error {
	elimination, err := json.Marshal(quiz.EliminationSettings)
	if err != nil {
		return err
	}
	ffi, err := json.Marshal(quiz.FFISettings)
	if err != nil {
		return err
	}
	exam, err := json.Marshal(quiz.ExamSettings)
	if err != nil {
		return err
	}

	query := `
		UPDATE quizzes
		SET title = $1, description = $2, type = $3, elimination_settings = $4, ffi_settings = $5, exam_settings = $6
		WHERE id = $7
	`
	result, err := r.db.ExecContext(ctx, query, quiz.Title, quiz.Description, quiz.Type, elimination, ffi, exam, quiz.ID)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, "quiz not found")
}

func (r *PostgresQuizRepository) DeleteQuiz(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, "quiz not found")
}

func requireRowsAffected(result sql.Result, notFoundMsg string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.New(notFoundMsg)
	}
	return nil
}
