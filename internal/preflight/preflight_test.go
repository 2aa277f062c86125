package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slate/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := CheckDirectoryAccess("Staging directory", dir)
	if !result.Passed {
		t.Fatalf("expected writable directory to pass: %+v", result)
	}
	if !strings.Contains(result.Detail, "read/write ok") {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}

	result = CheckDirectoryAccess("Staging directory", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatal("expected missing directory to fail")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}

	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result = CheckDirectoryAccess("Staging directory", file)
	if result.Passed {
		t.Fatal("expected plain file to fail")
	}
	if !strings.Contains(result.Detail, "is not a directory") {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}
}

func TestCheckDirectoryAccessPermissions(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}

	dir := filepath.Join(t.TempDir(), "readonly")
	if err := os.Mkdir(dir, 0o500); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	result := CheckDirectoryAccess("Staging directory", dir)
	if result.Passed {
		t.Fatal("expected read-only directory to fail")
	}
	if !strings.Contains(result.Detail, "insufficient permissions") {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}
}

func TestCheckPreset(t *testing.T) {
	result := CheckPreset("")
	if !result.Passed || !strings.Contains(result.Detail, "not configured") {
		t.Fatalf("empty path should pass with default note: %+v", result)
	}

	result = CheckPreset(filepath.Join(t.TempDir(), "absent.toml"))
	if !result.Passed || !strings.Contains(result.Detail, "missing") {
		t.Fatalf("missing file should pass with default note: %+v", result)
	}

	path := filepath.Join(t.TempDir(), "preset.toml")
	if err := os.WriteFile(path, []byte("video_codec = \"h264\"\n"), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	result = CheckPreset(path)
	if !result.Passed || result.Detail != path {
		t.Fatalf("existing file should pass with its path: %+v", result)
	}
}

func TestRunAllPassesWithStubbedTools(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) == 0 {
		t.Fatal("expected check results")
	}
	if Failed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}

	names := make(map[string]bool, len(results))
	for _, result := range results {
		names[result.Name] = true
	}
	for _, want := range []string{"FFmpeg", "FFprobe", "Staging directory", "Inbox directory", "Library directory", "Review directory", "Encoding preset"} {
		if !names[want] {
			t.Errorf("missing check %q in %+v", want, results)
		}
	}
}

func TestRunAllFailsOnMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpegBinary = filepath.Join(testsupport.BaseDir(cfg), "missing-ffmpeg")
	cfg.Tools.FFprobeBinary = filepath.Join(testsupport.BaseDir(cfg), "missing-ffprobe")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if !Failed(results) {
		t.Fatalf("expected failure with missing binaries: %+v", results)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results for nil config, got %+v", results)
	}
}

func TestFailed(t *testing.T) {
	if Failed(nil) {
		t.Fatal("no results should not be a failure")
	}
	if Failed([]Result{{Name: "a", Passed: true}}) {
		t.Fatal("all-passed should not be a failure")
	}
	if !Failed([]Result{{Name: "a", Passed: true}, {Name: "b"}}) {
		t.Fatal("one failed check should fail the set")
	}
}
