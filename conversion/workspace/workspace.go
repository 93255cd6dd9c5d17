// Package workspace manages per-request scratch directories. Every
// conversion gets an exclusively-owned directory under a fixed root,
// removed on release regardless of how the conversion ended.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"cadconverter/conversion"
)

// Manager allocates and tears down workspaces under a single scratch root.
type Manager struct {
	root   string
	logger *zap.Logger
}

// NewManager verifies root exists and is a writable directory.
func NewManager(root string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat scratch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scratch root %s is not a directory", root)
	}

	probe := filepath.Join(root, ".probe")
	if err := os.Mkdir(probe, 0o755); err != nil {
		return nil, fmt.Errorf("scratch root %s is not writable: %w", root, err)
	}
	os.Remove(probe)

	return &Manager{root: root, logger: logger}, nil
}

// Root returns the scratch root path.
func (m *Manager) Root() string { return m.root }

// Workspace is an isolated directory owned by exactly one request.
type Workspace struct {
	Path   string
	logger *zap.Logger
}

// Acquire creates the workspace directory for requestID. Request IDs are
// UUIDs, so directory names are collision-free by construction.
func (m *Manager) Acquire(requestID string) (*Workspace, error) {
	if requestID == "" {
		return nil, conversion.NewError(conversion.KindWorkspace, "empty request id", nil)
	}

	path := filepath.Join(m.root, filepath.Base(requestID))
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, conversion.NewError(conversion.KindWorkspace, "create workspace", err)
	}

	m.logger.Debug("workspace acquired", zap.String("path", path))
	return &Workspace{Path: path, logger: m.logger}, nil
}

// Release removes the workspace and everything in it. Safe to call from
// a defer on every exit path; errors are logged, not returned, because
// there is nothing a caller can do about them mid-unwind.
func (w *Workspace) Release() {
	if err := os.RemoveAll(w.Path); err != nil {
		w.logger.Error("workspace release failed",
			zap.String("path", w.Path),
			zap.Error(err),
		)
		return
	}
	w.logger.Debug("workspace released", zap.String("path", w.Path))
}

// Stage writes data to filename inside the workspace and returns the
// staged path.
func (w *Workspace) Stage(filename string, data []byte) (string, error) {
	path := filepath.Join(w.Path, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", conversion.NewError(conversion.KindStaging, "stage input", err)
	}
	return path, nil
}

// ReadOutput reads back a file produced inside the workspace.
func (w *Workspace) ReadOutput(filename string) ([]byte, error) {
	return os.ReadFile(filepath.Join(w.Path, filepath.Base(filename)))
}
