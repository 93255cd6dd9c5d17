package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"cadconverter/api/database"
	"cadconverter/api/models"
)

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) Repository {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateTask(ctx context.Context, task *models.Task) error {
	options, err := json.Marshal(task.Options)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (trace_id, original_filename, file_path, source_format, target_format, options, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	return r.db.Pool.QueryRow(ctx, query,
		task.TraceID,
		task.OriginalFilename,
		task.FilePath,
		task.SourceFormat,
		task.TargetFormat,
		options,
		task.Status,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

func (r *PostgresRepo) FailTask(ctx context.Context, taskID, errorKind, errMsg string) error {
	query := `UPDATE tasks
		SET status = 'failed', error_kind = $1, error_message = $2, updated_at = NOW(), completed_at = NOW()
		WHERE id = $3`

	_, err := r.db.Pool.Exec(ctx, query, errorKind, errMsg, taskID)
	return err
}

const selectTask = `
	SELECT id, trace_id, original_filename, file_path, source_format, target_format, options,
	       status, error_kind, error_message, result_path, created_at, updated_at, completed_at
	FROM tasks
`

func (r *PostgresRepo) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return r.scanTask(r.db.Pool.QueryRow(ctx, selectTask+` WHERE id = $1`, id))
}

func (r *PostgresRepo) GetTaskByTraceID(ctx context.Context, traceID string) (*models.Task, error) {
	return r.scanTask(r.db.Pool.QueryRow(ctx, selectTask+` WHERE trace_id = $1`, traceID))
}

func (r *PostgresRepo) scanTask(row pgx.Row) (*models.Task, error) {
	var task models.Task
	var options []byte

	err := row.Scan(
		&task.ID,
		&task.TraceID,
		&task.OriginalFilename,
		&task.FilePath,
		&task.SourceFormat,
		&task.TargetFormat,
		&options,
		&task.Status,
		&task.ErrorKind,
		&task.ErrorMessage,
		&task.ResultPath,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	if len(options) > 0 {
		if err := json.Unmarshal(options, &task.Options); err != nil {
			return nil, err
		}
	}
	return &task, nil
}
