package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"cadconverter/conversion"
	"cadconverter/worker/cache"
	"cadconverter/worker/kafka"
	"cadconverter/worker/repository"
)

// Runner is the conversion entry point the processor drives. The
// pipeline coordinator satisfies it in production.
type Runner interface {
	Run(ctx context.Context, req *conversion.Request) *conversion.Result
}

// StatusWriter publishes task status transitions to the shared cache.
type StatusWriter interface {
	Set(ctx context.Context, taskID string, entry cache.StatusEntry) error
}

// Processor executes one queued task: mark it processing, run the
// conversion, persist the outcome, and clean up the staged upload.
type Processor struct {
	repo      repository.Repository
	cache     StatusWriter
	runner    Runner
	resultDir string
	logger    *zap.Logger
}

func NewProcessor(repo repository.Repository, cache StatusWriter, runner Runner, resultDir string, logger *zap.Logger) *Processor {
	return &Processor{
		repo:      repo,
		cache:     cache,
		runner:    runner,
		resultDir: resultDir,
		logger:    logger,
	}
}

func (p *Processor) Process(ctx context.Context, msg *kafka.TaskMessage) error {
	p.logger.Info("Processing task",
		zap.String("task_id", msg.TaskID),
		zap.String("trace_id", msg.TraceID),
		zap.String("source", msg.SourceFormat),
		zap.String("target", msg.TargetFormat),
	)

	if err := p.repo.UpdateTaskStatus(ctx, msg.TaskID, "processing", "", ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	p.setStatus(ctx, msg.TaskID, cache.StatusEntry{Status: "processing"})

	data, err := os.ReadFile(msg.FilePath)
	if err != nil {
		return p.fail(ctx, msg, string(conversion.KindInternal), "staged upload missing")
	}
	// The staged upload is consumed by this task; remove it whether the
	// conversion succeeds or not.
	defer os.Remove(msg.FilePath)

	result := p.runner.Run(ctx, &conversion.Request{
		ID:           msg.TaskID,
		Filename:     msg.Filename,
		Data:         data,
		SourceFormat: msg.SourceFormat,
		TargetFormat: msg.TargetFormat,
		Options:      msg.Options,
	})

	if !result.Succeeded {
		return p.fail(ctx, msg, string(result.Failure.Kind), result.Failure.Message)
	}

	resultPath := filepath.Join(p.resultDir, msg.TaskID+filepath.Ext(result.OutputName))
	if err := os.WriteFile(resultPath, result.Output, 0o644); err != nil {
		return p.fail(ctx, msg, string(conversion.KindInternal), "persist result")
	}

	if err := p.repo.CompleteTask(ctx, msg.TaskID, resultPath); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	p.setStatus(ctx, msg.TaskID, cache.StatusEntry{Status: "completed"})

	p.logger.Info("Task completed",
		zap.String("task_id", msg.TaskID),
		zap.String("result_path", resultPath),
		zap.Duration("duration", result.Duration),
	)
	return nil
}

func (p *Processor) fail(ctx context.Context, msg *kafka.TaskMessage, kind, message string) error {
	if err := p.repo.UpdateTaskStatus(ctx, msg.TaskID, "failed", kind, message); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	p.setStatus(ctx, msg.TaskID, cache.StatusEntry{
		Status:       "failed",
		ErrorKind:    kind,
		ErrorMessage: message,
	})
	return fmt.Errorf("task %s failed: %s: %s", msg.TaskID, kind, message)
}

// Cache writes are best effort; Postgres stays the source of truth.
func (p *Processor) setStatus(ctx context.Context, taskID string, entry cache.StatusEntry) {
	if err := p.cache.Set(ctx, taskID, entry); err != nil {
		p.logger.Warn("Failed to update status cache",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}
}
