package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slate/internal/logging"
)

// CleanStaleResult contains the outcome of a stale workspace sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError records a workspace the sweep could not remove.
type CleanupError struct {
	Path  string
	Error error
}

func (r *CleanStaleResult) recordFailure(logger *slog.Logger, path string, err error) {
	r.Errors = append(r.Errors, CleanupError{Path: path, Error: err})
	if logger != nil {
		logging.WarnWithContext(logger, "failed to remove stale workspace", "cleanup_warning",
			logging.String("path", path),
			logging.Error(err),
		)
	}
}

func (r *CleanStaleResult) recordRemoval(logger *slog.Logger, path string, age time.Duration) {
	r.Removed = append(r.Removed, path)
	if logger != nil {
		logger.Info("removed stale workspace",
			logging.String("path", path),
			logging.Duration("age", age),
		)
	}
}

// CleanStale removes job workspaces older than maxAge. It returns the list
// of removed directories and any errors encountered; errors never abort the
// sweep.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	var result CleanStaleResult

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			result.recordFailure(logger, path, err)
			continue
		}
		result.recordRemoval(logger, path, time.Since(info.ModTime()))
	}

	return result
}

// DirInfo contains metadata about one staging workspace.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListDirectories returns all workspaces in the staging directory with
// their metadata. A missing staging directory yields an empty list.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if workspace, ok := statWorkspace(stagingDir, entry); ok {
			dirs = append(dirs, workspace)
		}
	}
	return dirs, nil
}

func statWorkspace(stagingDir string, entry os.DirEntry) (DirInfo, bool) {
	if !entry.IsDir() {
		return DirInfo{}, false
	}
	info, err := entry.Info()
	if err != nil {
		return DirInfo{}, false
	}
	path := filepath.Join(stagingDir, entry.Name())
	return DirInfo{
		Name:    entry.Name(),
		Path:    path,
		ModTime: info.ModTime(),
		Size:    dirSize(path),
	}, true
}

// dirSize totals the file bytes under path, best effort.
func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
