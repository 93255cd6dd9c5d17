package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"cadconverter/worker/kafka"
)

// WorkerPool bounds how many task messages are processed at once. Do
// blocks until a slot frees up and runs the handler inline, so callers
// only acknowledge a message after its task actually finished.
type WorkerPool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

func NewWorkerPool(maxWorkers int, logger *zap.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		sem:    make(chan struct{}, maxWorkers),
		logger: logger,
	}
}

func (p *WorkerPool) Do(ctx context.Context, msg *kafka.TaskMessage, handler kafka.MessageHandler) error {
	p.wg.Add(1)
	defer p.wg.Done()

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
		if err := handler(ctx, msg); err != nil {
			p.logger.Error("Task processing failed",
				zap.String("task_id", msg.TaskID),
				zap.String("trace_id", msg.TraceID),
				zap.Error(err),
			)
			return err
		}
		return nil
	case <-ctx.Done():
		p.logger.Warn("Task skipped, shutting down",
			zap.String("task_id", msg.TaskID),
		)
		return ctx.Err()
	}
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
