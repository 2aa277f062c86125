package staging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"slate/internal/services"
)

func TestNewWorkspaceLayout(t *testing.T) {
	ws := NewWorkspace("/srv/staging", "job-123")

	if ws.Root != filepath.Join("/srv/staging", "job-123") {
		t.Errorf("Root = %q", ws.Root)
	}
	if ws.EncodedDir != filepath.Join(ws.Root, "encoded") {
		t.Errorf("EncodedDir = %q", ws.EncodedDir)
	}
	if ws.ThumbsDir != filepath.Join(ws.Root, "thumbs") {
		t.Errorf("ThumbsDir = %q", ws.ThumbsDir)
	}
}

func TestWorkspaceCreateAndRemove(t *testing.T) {
	ws := NewWorkspace(t.TempDir(), "job-xyz")

	if err := ws.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, dir := range []string{ws.Root, ws.EncodedDir, ws.ThumbsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", dir)
		}
	}

	// Populate so Remove has real content to clear.
	if err := os.WriteFile(filepath.Join(ws.EncodedDir, "out.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := ws.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Error("workspace root should be gone after Remove")
	}
}

func TestWorkspaceCreateFailureWrapsConfiguration(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	base := t.TempDir()
	if err := os.Chmod(base, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(base, 0o755) })

	ws := NewWorkspace(base, "job-denied")
	err := ws.Create()
	if err == nil {
		t.Fatal("expected error creating workspace in read-only root")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
