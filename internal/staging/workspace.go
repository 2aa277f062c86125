// Package staging manages per-job scratch directories under the staging
// root.
package staging

import (
	"os"
	"path/filepath"

	"slate/internal/services"
)

// Workspace is the scratch layout for one job. Encoded outputs and their
// parts live under EncodedDir, stills under ThumbsDir, and the whole tree
// is removed in one call.
type Workspace struct {
	Root       string
	EncodedDir string
	ThumbsDir  string
}

// NewWorkspace derives the workspace layout for a job without touching the
// filesystem.
func NewWorkspace(stagingRoot, jobID string) Workspace {
	root := filepath.Join(stagingRoot, jobID)
	return Workspace{
		Root:       root,
		EncodedDir: filepath.Join(root, "encoded"),
		ThumbsDir:  filepath.Join(root, "thumbs"),
	}
}

// Create materializes the workspace directories.
func (w Workspace) Create() error {
	for _, dir := range []string{w.EncodedDir, w.ThumbsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrConfiguration, "staging", "create workspace",
				"failed to create workspace directory; set staging_dir to a writable path", err)
		}
	}
	return nil
}

// Remove deletes the workspace tree.
func (w Workspace) Remove() error {
	return os.RemoveAll(w.Root)
}
