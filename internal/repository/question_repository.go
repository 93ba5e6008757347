package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

// PostgresQuestionRepository implements QuestionRepository for PostgreSQL.
// Options and scoring config are stored as JSONB columns rather than
// normalized tables: they are never queried independently of their
// question, and the quiz author's full structure must round-trip exactly.
type PostgresQuestionRepository struct {
	db *DB
}

func NewPostgresQuestionRepository(db *DB) *PostgresQuestionRepository {
	return &PostgresQuestionRepository{db: db}
}

func (r *PostgresQuestionRepository) CreateQuestion(ctx context.Context, q *model.Question, quizID string) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	scoring, err := json.Marshal(q.Scoring)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO questions (id, quiz_id, text, image_url, type, time_limit_sec, options, scoring, shuffle_options, explanation, question_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		q.ID, quizID, q.Text, q.ImageURL, q.Type, q.TimeLimitSec, options, scoring, q.ShuffleOptions, q.Explanation, q.Order,
	)
	return err
}

func (r *PostgresQuestionRepository) GetQuestionsByQuizID(ctx context.Context, quizID string) ([]*model.Question, error) {
	query := `
		SELECT id, text, image_url, type, time_limit_sec, options, scoring, shuffle_options, explanation, question_order
		FROM questions WHERE quiz_id = $1 ORDER BY question_order ASC
	`
	rows, err := r.db.QueryContext(ctx, query, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []*model.Question
	for rows.Next() {
		var q model.Question
		var imageURL, explanation sql.NullString
		var options, scoring []byte

		if err := rows.Scan(&q.ID, &q.Text, &imageURL, &q.Type, &q.TimeLimitSec, &options, &scoring, &q.ShuffleOptions, &explanation, &q.Order); err != nil {
			return nil, err
		}
		q.QuizID = quizID
		if imageURL.Valid {
			q.ImageURL = imageURL.String
		}
		if explanation.Valid {
			q.Explanation = explanation.String
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(scoring, &q.Scoring); err != nil {
			return nil, err
		}

		questions = append(questions, &q)
	}
	return questions, rows.Err()
}

func (r *PostgresQuestionRepository) UpdateQuestion(ctx context.Context, q *model.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	scoring, err := json.Marshal(q.Scoring)
	if err != nil {
		return err
	}

	query := `
		UPDATE questions
		SET text = $1, image_url = $2, type = $3, time_limit_sec = $4, options = $5, scoring = $6, shuffle_options = $7, explanation = $8, question_order = $9
		WHERE id = $10
	`
	result, err := r.db.ExecContext(ctx, query, q.Text, q.ImageURL, q.Type, q.TimeLimitSec, options, scoring, q.ShuffleOptions, q.Explanation, q.Order, q.ID)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, "question not found")
}

func (r *PostgresQuestionRepository) DeleteQuestion(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, "question not found")
}
