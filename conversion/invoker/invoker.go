// Package invoker runs format converters against staged input files.
// External command-line tools and the in-process raster backend share
// one contract so the pipeline never knows which it is talking to.
package invoker

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Request carries everything one invocation needs. Paths are passed as
// discrete values and end up as discrete argv entries, never as shell
// strings.
type Request struct {
	InputPath    string
	OutputDir    string
	SourceFormat string
	TargetFormat string
	Options      map[string]string
	Timeout      time.Duration
}

// Record captures the outcome of a single invocation.
type Record struct {
	ExitCode        int
	Stdout          string
	Stderr          string
	StdoutTruncated bool
	StderrTruncated bool
	Duration        time.Duration
	OutputPath      string
}

// Diagnostics merges captured output into one blob for error reporting.
func (r *Record) Diagnostics() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	if r.Stdout != "" {
		b.WriteString(r.Stdout)
	}
	if r.Stderr != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.Stderr)
	}
	return b.String()
}

// Invoker converts one staged input file into the output directory.
type Invoker interface {
	Convert(ctx context.Context, req Request) (*Record, error)
	Healthy(ctx context.Context) error
}

// outputName derives the output filename from the staged input and the
// target format: input.dwg converted to dxf becomes input.dxf.
func outputName(inputPath, targetFormat string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + targetFormat
}

const truncationMarker = "\n...[output truncated]"

// cappedBuffer collects process output up to a byte cap so a misbehaving
// tool cannot grow memory without bound.
type cappedBuffer struct {
	max       int
	buf       strings.Builder
	truncated bool
}

func newCappedBuffer(max int) *cappedBuffer {
	if max < 1 {
		max = 1
	}
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncationMarker
	}
	return b.buf.String()
}
