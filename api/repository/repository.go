package repository

import (
	"context"
	"errors"

	"cadconverter/api/models"
)

var (
	ErrTaskNotFound = errors.New("task not found")
)

type Repository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	GetTaskByTraceID(ctx context.Context, traceID string) (*models.Task, error)
	FailTask(ctx context.Context, taskID, errorKind, errMsg string) error
}
