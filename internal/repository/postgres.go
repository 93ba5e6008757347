package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/config"
	_ "github.com/lib/pq"
)

// DB is a thin wrapper around sql.DB adding a Transaction helper.
type DB struct {
	*sql.DB
}

// NewPostgresDB opens and verifies a PostgreSQL connection.
func NewPostgresDB(cfg config.PostgresConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	return &DB{db}, nil
}

// Transaction executes fn inside a transaction, rolling back on error or
// panic and committing otherwise.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
