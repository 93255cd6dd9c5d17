package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	UpdateTaskStatus(ctx context.Context, taskID, status, errorKind, errMsg string) error
	CompleteTask(ctx context.Context, taskID, resultPath string) error
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) UpdateTaskStatus(ctx context.Context, taskID, status, errorKind, errMsg string) error {
	query := `UPDATE tasks SET status = $1, error_kind = $2, error_message = $3, updated_at = NOW()`
	if status == "completed" || status == "failed" {
		query += `, completed_at = NOW()`
	}
	query += ` WHERE id = $4`

	_, err := r.db.Exec(ctx, query, status, errorKind, errMsg, taskID)
	return err
}

func (r *PostgresRepo) CompleteTask(ctx context.Context, taskID, resultPath string) error {
	query := `UPDATE tasks
		SET status = 'completed', result_path = $1, error_kind = '', error_message = '',
		    updated_at = NOW(), completed_at = NOW()
		WHERE id = $2`

	_, err := r.db.Exec(ctx, query, resultPath, taskID)
	return err
}
