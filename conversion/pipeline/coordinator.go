// Package pipeline orchestrates one conversion request end to end:
// admission, staging, invocation, result packaging, cleanup.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"cadconverter/conversion"
	"cadconverter/conversion/gate"
	"cadconverter/conversion/invoker"
	"cadconverter/conversion/workspace"
)

// Converter is the narrow capability the coordinator needs from the
// format registry. Tests substitute fakes that simulate success,
// timeout, and false success without spawning processes.
type Converter interface {
	Validate(source, target string, options map[string]string) error
	Convert(ctx context.Context, req invoker.Request) (*invoker.Record, error)
}

// Coordinator runs requests through the conversion state machine. One
// instance serves all requests; per-request state lives on the stack.
type Coordinator struct {
	workspaces *workspace.Manager
	converter  Converter
	gate       *gate.Gate
	timeout    time.Duration
	logger     *zap.Logger
}

func New(workspaces *workspace.Manager, converter Converter, g *gate.Gate, timeout time.Duration, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		workspaces: workspaces,
		converter:  converter,
		gate:       g,
		timeout:    timeout,
		logger:     logger,
	}
}

// Run processes req exactly once and always returns a result; taxonomy
// errors and panics alike are folded into the failure variant. Workspace
// and gate slot are released on every path.
func (c *Coordinator) Run(ctx context.Context, req *conversion.Request) (result *conversion.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("conversion panicked",
				zap.String("request_id", req.ID),
				zap.Any("panic", r),
			)
			result = conversion.Failed(req.ID, time.Since(start), fmt.Errorf("panic: %v", r))
		}
	}()

	// Unsupported pairs are rejected before any slot or directory is
	// allocated.
	if err := c.converter.Validate(req.SourceFormat, req.TargetFormat, req.Options); err != nil {
		return c.failed(req, start, err)
	}

	if err := c.gate.Acquire(ctx); err != nil {
		return c.failed(req, start, conversion.NewError(conversion.KindInternal, "request canceled while queued", err))
	}
	defer c.gate.Release()

	ws, err := c.workspaces.Acquire(req.ID)
	if err != nil {
		return c.failed(req, start, err)
	}
	defer ws.Release()

	inputPath, err := ws.Stage(req.Filename, req.Data)
	if err != nil {
		return c.failed(req, start, err)
	}

	rec, err := c.converter.Convert(ctx, invoker.Request{
		InputPath:    inputPath,
		OutputDir:    ws.Path,
		SourceFormat: req.SourceFormat,
		TargetFormat: req.TargetFormat,
		Options:      req.Options,
		Timeout:      c.timeout,
	})
	if err != nil {
		return c.failed(req, start, err)
	}

	output, err := os.ReadFile(rec.OutputPath)
	if err != nil {
		return c.failed(req, start, conversion.NewError(conversion.KindConversionFailed, "read output", err))
	}

	res := &conversion.Result{
		RequestID:    req.ID,
		Succeeded:    true,
		OutputName:   filepath.Base(rec.OutputPath),
		OutputFormat: req.TargetFormat,
		Output:       output,
		Size:         int64(len(output)),
		Duration:     time.Since(start),
	}

	c.logger.Info("conversion succeeded",
		zap.String("request_id", req.ID),
		zap.String("source", req.SourceFormat),
		zap.String("target", req.TargetFormat),
		zap.Int64("size", res.Size),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (c *Coordinator) failed(req *conversion.Request, start time.Time, err error) *conversion.Result {
	res := conversion.Failed(req.ID, time.Since(start), err)
	c.logger.Warn("conversion failed",
		zap.String("request_id", req.ID),
		zap.String("source", req.SourceFormat),
		zap.String("target", req.TargetFormat),
		zap.String("kind", string(res.Failure.Kind)),
		zap.Error(err),
	)
	return res
}
