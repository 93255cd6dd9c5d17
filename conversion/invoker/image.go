package invoker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"cadconverter/conversion"
)

// ImageInvoker converts raster formats in-process. It satisfies the same
// contract as the external tools so the pipeline treats both alike.
type ImageInvoker struct {
	logger *zap.Logger
}

func NewImageInvoker(logger *zap.Logger) *ImageInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageInvoker{logger: logger}
}

// Healthy always succeeds; there is no external binary to probe.
func (i *ImageInvoker) Healthy(ctx context.Context) error { return nil }

func (i *ImageInvoker) Convert(ctx context.Context, req Request) (*Record, error) {
	start := time.Now()
	outPath := filepath.Join(req.OutputDir, outputName(req.InputPath, req.TargetFormat))

	src, err := imaging.Open(req.InputPath)
	if err != nil {
		return i.record(start, outPath), &conversion.Error{
			Kind:    conversion.KindConversionFailed,
			Message: fmt.Sprintf("decode %s input", req.SourceFormat),
			Err:     err,
		}
	}

	if err := ctx.Err(); err != nil {
		return i.record(start, outPath), err
	}

	var opts []imaging.EncodeOption
	if req.TargetFormat == "jpg" || req.TargetFormat == "jpeg" {
		opts = append(opts, imaging.JPEGQuality(85))
	}
	if err := imaging.Save(src, outPath, opts...); err != nil {
		return i.record(start, outPath), &conversion.Error{
			Kind:    conversion.KindConversionFailed,
			Message: fmt.Sprintf("encode %s output", req.TargetFormat),
			Err:     err,
		}
	}

	return i.record(start, outPath), nil
}

func (i *ImageInvoker) record(start time.Time, outPath string) *Record {
	return &Record{
		Duration:   time.Since(start),
		OutputPath: outPath,
	}
}
