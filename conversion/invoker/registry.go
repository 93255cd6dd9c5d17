package invoker

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"cadconverter/conversion"
)

// Rules is the on-disk format-rules file: one entry per external tool
// plus the raster pairs handled in-process.
type Rules struct {
	Commands []CommandRule `yaml:"commands"`
	Images   []string      `yaml:"images"`
}

// LoadRules parses the YAML format-rules file at path.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read format rules: %w", err)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse format rules: %w", err)
	}
	if len(rules.Commands) == 0 && len(rules.Images) == 0 {
		return nil, fmt.Errorf("format rules %s declare no conversions", path)
	}
	return &rules, nil
}

// Registry resolves (source, target) format pairs to their backend. It
// is the configuration-driven plugin point for adding converters.
type Registry struct {
	backends map[string]Invoker
	commands map[string]*CommandInvoker
}

// NewRegistry builds a registry from rules. Pairs are "source:target",
// lower-case.
func NewRegistry(rules *Rules, maxDiag int, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		backends: make(map[string]Invoker),
		commands: make(map[string]*CommandInvoker),
	}

	for _, rule := range rules.Commands {
		if rule.Binary == "" {
			return nil, fmt.Errorf("command rule with no binary")
		}
		inv := NewCommandInvoker(rule, maxDiag, logger)
		for _, pair := range rule.Pairs {
			key, err := normalizePair(pair)
			if err != nil {
				return nil, err
			}
			if _, dup := r.backends[key]; dup {
				return nil, fmt.Errorf("duplicate rule for pair %s", key)
			}
			r.backends[key] = inv
			r.commands[key] = inv
		}
	}

	img := NewImageInvoker(logger)
	for _, pair := range rules.Images {
		key, err := normalizePair(pair)
		if err != nil {
			return nil, err
		}
		if _, dup := r.backends[key]; dup {
			return nil, fmt.Errorf("duplicate rule for pair %s", key)
		}
		r.backends[key] = img
	}

	return r, nil
}

func normalizePair(pair string) (string, error) {
	source, target, ok := strings.Cut(pair, ":")
	if !ok || source == "" || target == "" {
		return "", fmt.Errorf("malformed format pair %q", pair)
	}
	return strings.ToLower(source) + ":" + strings.ToLower(target), nil
}

func pairKey(source, target string) string {
	return strings.ToLower(source) + ":" + strings.ToLower(target)
}

// Supported reports whether the pair has a backend.
func (r *Registry) Supported(source, target string) bool {
	_, ok := r.backends[pairKey(source, target)]
	return ok
}

// Validate rejects unsupported pairs and out-of-range option values
// before any staging happens. This is the cheapest failure path.
func (r *Registry) Validate(source, target string, options map[string]string) error {
	inv, ok := r.backends[pairKey(source, target)]
	if !ok {
		return conversion.NewError(conversion.KindUnsupportedFormat,
			fmt.Sprintf("conversion %s to %s is not supported", source, target), nil)
	}

	cmd, isCommand := inv.(*CommandInvoker)
	for name, value := range options {
		if !isCommand {
			return conversion.NewError(conversion.KindUnsupportedFormat,
				fmt.Sprintf("option %s is not supported for %s to %s", name, source, target), nil)
		}
		rule, declared := cmd.rule.Options[name]
		if !declared {
			return conversion.NewError(conversion.KindUnsupportedFormat,
				fmt.Sprintf("unknown option %s", name), nil)
		}
		if _, err := rule.resolve(name, value); err != nil {
			return err
		}
	}
	return nil
}

// Convert dispatches to the pair's backend.
func (r *Registry) Convert(ctx context.Context, req Request) (*Record, error) {
	inv, ok := r.backends[pairKey(req.SourceFormat, req.TargetFormat)]
	if !ok {
		return nil, conversion.NewError(conversion.KindUnsupportedFormat,
			fmt.Sprintf("conversion %s to %s is not supported", req.SourceFormat, req.TargetFormat), nil)
	}
	return inv.Convert(ctx, req)
}

// Healthy probes every external tool once; the in-process backend needs
// no probing. Feeds the liveness endpoint.
func (r *Registry) Healthy(ctx context.Context) error {
	seen := make(map[*CommandInvoker]bool)
	for _, inv := range r.commands {
		if seen[inv] {
			continue
		}
		seen[inv] = true
		if err := inv.Healthy(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Pairs lists the supported format pairs, for logging at startup.
func (r *Registry) Pairs() []string {
	pairs := make([]string, 0, len(r.backends))
	for key := range r.backends {
		pairs = append(pairs, key)
	}
	return pairs
}
