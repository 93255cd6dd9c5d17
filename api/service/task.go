package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"cadconverter/api/cache"
	"cadconverter/api/dto"
	"cadconverter/api/kafka"
	"cadconverter/api/models"
	"cadconverter/api/repository"
	"cadconverter/conversion"
)

// StatusCache is the status-cache surface the service needs; tests
// substitute a mock.
type StatusCache interface {
	Get(ctx context.Context, taskID string) (*cache.StatusEntry, error)
	Set(ctx context.Context, taskID string, entry cache.StatusEntry) error
	Delete(ctx context.Context, taskID string) error
}

type TaskService struct {
	repo     repository.Repository
	cache    StatusCache
	producer kafka.Producer
	topic    string
	logger   *zap.Logger
}

func NewTaskService(repo repository.Repository, cache StatusCache, producer kafka.Producer, topic string, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		repo:     repo,
		cache:    cache,
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// CreateTask persists the staged upload as a pending task and queues it
// for the worker.
func (s *TaskService) CreateTask(ctx context.Context, traceID string, req *dto.CreateTaskRequest) (*dto.TaskResponse, error) {
	task := &models.Task{
		TraceID:          traceID,
		OriginalFilename: req.OriginalFilename,
		FilePath:         req.FilePath,
		SourceFormat:     req.SourceFormat,
		TargetFormat:     req.TargetFormat,
		Options:          req.Options,
		Status:           models.StatusPending,
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	// Cache failures degrade to a Postgres read on the next poll.
	if err := s.cache.Set(ctx, task.ID, cache.StatusEntry{Status: models.StatusPending}); err != nil {
		s.logger.Warn("status cache set failed",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}

	msg := &kafka.TaskMessage{
		TaskID:       task.ID,
		TraceID:      traceID,
		FilePath:     req.FilePath,
		Filename:     req.OriginalFilename,
		SourceFormat: req.SourceFormat,
		TargetFormat: req.TargetFormat,
		Options:      req.Options,
	}
	if err := s.producer.SendTaskMessage(ctx, s.topic, msg); err != nil {
		// The row already exists; without a queue message no worker will
		// ever pick it up, so mark it failed rather than leave it pending.
		failEntry := cache.StatusEntry{
			Status:       models.StatusFailed,
			ErrorKind:    string(conversion.KindInternal),
			ErrorMessage: "failed to queue task",
		}
		if failErr := s.repo.FailTask(ctx, task.ID, failEntry.ErrorKind, failEntry.ErrorMessage); failErr != nil {
			s.logger.Error("failed to mark unqueued task failed",
				zap.String("task_id", task.ID),
				zap.Error(failErr),
			)
		}
		if cacheErr := s.cache.Set(ctx, task.ID, failEntry); cacheErr != nil {
			s.logger.Warn("status cache set failed",
				zap.String("task_id", task.ID),
				zap.Error(cacheErr),
			)
		}
		return nil, err
	}

	return s.toResponse(task), nil
}

// GetTaskStatus answers a status poll from the cache when possible,
// falling back to Postgres and repopulating the cache.
func (s *TaskService) GetTaskStatus(ctx context.Context, taskID string) (*dto.TaskResponse, error) {
	if entry, err := s.cache.Get(ctx, taskID); err == nil {
		return &dto.TaskResponse{
			ID:           taskID,
			Status:       string(entry.Status),
			ErrorKind:    entry.ErrorKind,
			ErrorMessage: entry.ErrorMessage,
		}, nil
	}

	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, dto.ErrTaskNotFound
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, task.ID, cache.StatusEntry{
		Status:       task.Status,
		ErrorKind:    task.ErrorKind,
		ErrorMessage: task.ErrorMessage,
	}); err != nil {
		s.logger.Warn("status cache set failed",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}

	return s.toResponse(task), nil
}

// GetTaskResult returns the completed task including where its output
// landed; only completed tasks have a result to stream.
func (s *TaskService) GetTaskResult(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, dto.ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *TaskService) toResponse(task *models.Task) *dto.TaskResponse {
	var completedAt *string
	if task.CompletedAt != nil {
		formatted := task.CompletedAt.Format(time.RFC3339)
		completedAt = &formatted
	}

	return &dto.TaskResponse{
		ID:               task.ID,
		TraceID:          task.TraceID,
		OriginalFilename: task.OriginalFilename,
		SourceFormat:     task.SourceFormat,
		TargetFormat:     task.TargetFormat,
		Status:           string(task.Status),
		ErrorKind:        task.ErrorKind,
		ErrorMessage:     task.ErrorMessage,
		CreatedAt:        task.CreatedAt.Format(time.RFC3339),
		CompletedAt:      completedAt,
	}
}
