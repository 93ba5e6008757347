package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

// PostgresParticipantRepository implements ParticipantRepository for PostgreSQL.
type PostgresParticipantRepository struct {
	db *DB
}

func NewPostgresParticipantRepository(db *DB) *PostgresParticipantRepository {
	return &PostgresParticipantRepository{db: db}
}

func (r *PostgresParticipantRepository) CreateParticipant(ctx context.Context, p *model.Participant) error {
	query := `
		INSERT INTO participants (id, session_id, nickname, ip, is_active, is_eliminated, is_spectator, is_banned, total_score, total_time_ms, streak_count, socket_id, last_connected_at, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.SessionID, p.Nickname, p.IP, p.IsActive, p.IsEliminated, p.IsSpectator, p.IsBanned,
		p.TotalScore, p.TotalTimeMs, p.StreakCount, p.SocketID, p.LastConnectedAt, p.JoinedAt,
	)
	return err
}

func scanParticipant(row interface{ Scan(dest ...interface{}) error }) (*model.Participant, error) {
	var p model.Participant
	var socketID sql.NullString
	if err := row.Scan(
		&p.ID, &p.SessionID, &p.Nickname, &p.IP, &p.IsActive, &p.IsEliminated, &p.IsSpectator, &p.IsBanned,
		&p.TotalScore, &p.TotalTimeMs, &p.StreakCount, &socketID, &p.LastConnectedAt, &p.JoinedAt,
	); err != nil {
		return nil, err
	}
	if socketID.Valid {
		p.SocketID = socketID.String
	}
	return &p, nil
}

const participantColumns = `
	id, session_id, nickname, ip, is_active, is_eliminated, is_spectator, is_banned,
	total_score, total_time_ms, streak_count, socket_id, last_connected_at, joined_at
`

func (r *PostgresParticipantRepository) GetParticipantByID(ctx context.Context, id string) (*model.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	p, err := scanParticipant(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("participant not found")
	}
	return p, err
}

func (r *PostgresParticipantRepository) GetParticipantsBySessionID(ctx context.Context, sessionID string) ([]*model.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE session_id = $1 ORDER BY joined_at ASC`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []*model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *PostgresParticipantRepository) UpdateParticipant(ctx context.Context, p *model.Participant) error {
	query := `
		UPDATE participants
		SET nickname = $1, is_active = $2, is_eliminated = $3, is_spectator = $4, is_banned = $5,
		    total_score = $6, total_time_ms = $7, streak_count = $8, socket_id = $9, last_connected_at = $10
		WHERE id = $11
	`
	result, err := r.db.ExecContext(ctx, query,
		p.Nickname, p.IsActive, p.IsEliminated, p.IsSpectator, p.IsBanned,
		p.TotalScore, p.TotalTimeMs, p.StreakCount, p.SocketID, p.LastConnectedAt, p.ID,
	)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, "participant not found")
}

// GetLeaderboard returns participants ordered by the composite score
// (totalScore desc, totalTimeMs asc) matching model.Participant.LeaderboardScore.
func (r *PostgresParticipantRepository) GetLeaderboard(ctx context.Context, sessionID string, limit int) ([]*model.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE session_id = $1 AND is_spectator = false
		ORDER BY total_score DESC, total_time_ms ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []*model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}
