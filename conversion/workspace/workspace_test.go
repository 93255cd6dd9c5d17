package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"cadconverter/conversion"
)

func TestNewManager_MissingRoot(t *testing.T) {
	_, err := NewManager("/nonexistent/scratch", zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("Expected error for missing scratch root, got nil")
	}
}

func TestNewManager_RootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notadir")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	_, err := NewManager(path, zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("Expected error for non-directory root, got nil")
	}
}

func TestManager_AcquireCreatesDirectory(t *testing.T) {
	root := t.TempDir()
	mgr, err := NewManager(root, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ws, err := mgr.Acquire("req-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	info, err := os.Stat(ws.Path)
	if err != nil {
		t.Fatalf("Workspace directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("Workspace path is not a directory")
	}
	if filepath.Dir(ws.Path) != root {
		t.Errorf("Workspace %s not under root %s", ws.Path, root)
	}
}

func TestManager_AcquireDistinctPerRequest(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	a, err := mgr.Acquire("req-a")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	b, err := mgr.Acquire("req-b")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if a.Path == b.Path {
		t.Errorf("Expected distinct workspaces, both got %s", a.Path)
	}
}

func TestManager_AcquireEmptyID(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	_, err = mgr.Acquire("")
	if err == nil {
		t.Fatal("Expected error for empty request ID, got nil")
	}
	if conversion.KindOf(err) != conversion.KindWorkspace {
		t.Errorf("Expected workspace error kind, got %s", conversion.KindOf(err))
	}
}

func TestWorkspace_ReleaseRemovesEverything(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ws, err := mgr.Acquire("req-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := ws.Stage("input.dwg", []byte("AC1032 payload")); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	ws.Release()

	if _, err := os.Stat(ws.Path); !os.IsNotExist(err) {
		t.Errorf("Expected workspace to be removed, stat returned %v", err)
	}
}

func TestWorkspace_StageAndReadOutput(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ws, err := mgr.Acquire("req-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer ws.Release()

	path, err := ws.Stage("../evil.dwg", []byte("payload"))
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if filepath.Dir(path) != ws.Path {
		t.Errorf("Staged file %s escaped workspace %s", path, ws.Path)
	}

	data, err := ws.ReadOutput("evil.dwg")
	if err != nil {
		t.Fatalf("ReadOutput failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("Expected payload, got %s", data)
	}
}

func TestManager_AcquireUnwritableRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("Skipping test: root bypasses directory permissions")
	}

	root := t.TempDir()
	mgr, err := NewManager(root, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if err := os.Chmod(root, 0o555); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	defer os.Chmod(root, 0o755)

	_, err = mgr.Acquire("req-1")
	if err == nil {
		t.Fatal("Expected error on unwritable root, got nil")
	}
	if conversion.KindOf(err) != conversion.KindWorkspace {
		t.Errorf("Expected workspace error kind, got %s", conversion.KindOf(err))
	}
}
