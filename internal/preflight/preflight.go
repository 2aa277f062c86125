// Package preflight verifies the pipeline's runtime prerequisites before any
// job starts: directory access and the external tools work shells out to.
package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"slate/internal/config"
	"slate/internal/deps"
)

// Result is one pass/fail line in the preflight report.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable checks for the given config: required
// binaries first, then every configured directory.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
			if status.Optional {
				result.Passed = true
				result.Detail = status.Detail + " (optional)"
			}
		}
		results = append(results, result)
	}

	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	if strings.TrimSpace(cfg.Paths.InboxDir) != "" {
		results = append(results, CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir))
	}
	if strings.TrimSpace(cfg.Paths.LibraryDir) != "" {
		results = append(results, CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir))
	}
	if strings.TrimSpace(cfg.Paths.ReviewDir) != "" {
		results = append(results, CheckDirectoryAccess("Review directory", cfg.Paths.ReviewDir))
	}

	results = append(results, CheckPreset(cfg.Pipeline.PresetPath))

	return results
}

// Failed reports whether any non-optional check failed.
func Failed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return true
		}
	}
	return false
}

// CheckDirectoryAccess verifies that the directory exists and is readable,
// writable, and traversable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckPreset reports how preset resolution will behave. A missing or empty
// preset path passes with the documented default preset; only an unreadable
// existing file is worth flagging, and even that never blocks processing.
func CheckPreset(path string) Result {
	const name = "Encoding preset"
	clean := strings.TrimSpace(path)
	if clean == "" {
		return Result{Name: name, Passed: true, Detail: "not configured (default preset)"}
	}
	if _, err := os.Stat(clean); err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s missing (default preset)", clean)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s unreadable (default preset): %v", clean, err)}
	}
	return Result{Name: name, Passed: true, Detail: clean}
}

// CheckSystemDeps evaluates the external binaries for the given config. The
// watch runtime and the CLI preflight command share this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Defaults(cfg))
}
