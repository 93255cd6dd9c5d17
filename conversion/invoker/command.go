package invoker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"cadconverter/conversion"
)

// CommandRule describes one external converter tool: which format pairs
// it serves, the argv template, and the options it accepts. Loaded from
// the format-rules file.
type CommandRule struct {
	Binary  string                `yaml:"binary"`
	Pairs   []string              `yaml:"pairs"`
	Args    []string              `yaml:"args"`
	Options map[string]OptionRule `yaml:"options"`
}

// OptionRule enumerates the values a conversion option may take.
type OptionRule struct {
	Allowed []string `yaml:"allowed"`
	Default string   `yaml:"default"`
}

// CommandInvoker runs one external converter binary per call. It holds
// no mutable state across calls; concurrent invocations only share the
// filesystem paths they are handed.
type CommandInvoker struct {
	rule    CommandRule
	maxDiag int
	logger  *zap.Logger
}

// NewCommandInvoker builds an invoker for rule, capping captured
// diagnostics at maxDiag bytes per stream.
func NewCommandInvoker(rule CommandRule, maxDiag int, logger *zap.Logger) *CommandInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandInvoker{rule: rule, maxDiag: maxDiag, logger: logger}
}

// Healthy reports whether the rule's binary is present and executable.
func (c *CommandInvoker) Healthy(ctx context.Context) error {
	path := c.rule.Binary
	if !strings.ContainsRune(path, os.PathSeparator) {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return fmt.Errorf("converter %s not found: %w", path, err)
		}
		path = resolved
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("converter %s: %w", path, err)
	}
	if info.Mode()&0o111 == 0 {
		return fmt.Errorf("converter %s is not executable", path)
	}
	return nil
}

// Convert stages the argv from the rule template and runs the binary
// under a hard wall-clock timeout. A zero exit status is not trusted on
// its own: the expected output file must exist and be non-empty.
func (c *CommandInvoker) Convert(ctx context.Context, req Request) (*Record, error) {
	outPath := filepath.Join(req.OutputDir, outputName(req.InputPath, req.TargetFormat))

	args, err := c.buildArgs(req, outPath)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, c.rule.Binary, args...)
	stdout := newCappedBuffer(c.maxDiag)
	stderr := newCappedBuffer(c.maxDiag)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessTree(cmd) }
	cmd.WaitDelay = 2 * time.Second

	c.logger.Debug("invoking converter",
		zap.String("binary", c.rule.Binary),
		zap.Strings("args", args),
	)

	start := time.Now()
	runErr := cmd.Run()

	rec := &Record{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.truncated,
		StderrTruncated: stderr.truncated,
		Duration:        time.Since(start),
		OutputPath:      outPath,
	}
	if cmd.ProcessState != nil {
		rec.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return rec, &conversion.Error{
			Kind:        conversion.KindTimeout,
			Message:     fmt.Sprintf("%s exceeded %s", c.rule.Binary, req.Timeout),
			Diagnostics: rec.Diagnostics(),
		}
	}
	if ctx.Err() != nil {
		return rec, ctx.Err()
	}
	if runErr != nil {
		return rec, &conversion.Error{
			Kind:        conversion.KindConversionFailed,
			Message:     fmt.Sprintf("%s exited %d", c.rule.Binary, rec.ExitCode),
			Diagnostics: rec.Diagnostics(),
			Err:         runErr,
		}
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return rec, &conversion.Error{
			Kind:        conversion.KindConversionFailed,
			Message:     fmt.Sprintf("%s exited 0 but produced no output", c.rule.Binary),
			Diagnostics: rec.Diagnostics(),
		}
	}

	return rec, nil
}

// buildArgs expands the rule's argv template. Recognized placeholders:
// {input}, {output}, {outdir}, {source}, {target}, and one per declared
// option name.
func (c *CommandInvoker) buildArgs(req Request, outPath string) ([]string, error) {
	pairs := []string{
		"{input}", req.InputPath,
		"{output}", outPath,
		"{outdir}", req.OutputDir,
		"{source}", req.SourceFormat,
		"{target}", req.TargetFormat,
	}

	for name, rule := range c.rule.Options {
		value, err := rule.resolve(name, req.Options[name])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, "{"+name+"}", value)
	}

	replacer := strings.NewReplacer(pairs...)
	args := make([]string, 0, len(c.rule.Args))
	for _, tmpl := range c.rule.Args {
		args = append(args, replacer.Replace(tmpl))
	}
	return args, nil
}

func (r OptionRule) resolve(name, value string) (string, error) {
	if value == "" {
		return r.Default, nil
	}
	for _, allowed := range r.Allowed {
		if value == allowed {
			return value, nil
		}
	}
	return "", conversion.NewError(conversion.KindUnsupportedFormat,
		fmt.Sprintf("option %s=%s is not supported", name, value), nil)
}
