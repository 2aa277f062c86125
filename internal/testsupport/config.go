package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"slate/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*builder)

type builder struct {
	t    testing.TB
	base string
	cfg  *config.Config
}

// NewConfig hands each test a ready-to-use config whose directories all live
// under a fresh t.TempDir. Options mutate the config before it is returned.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	b := &builder{t: t, base: t.TempDir()}
	cfg := config.Default()
	cfg.Paths = config.Paths{
		InboxDir:   filepath.Join(b.base, "inbox"),
		StagingDir: filepath.Join(b.base, "staging"),
		LibraryDir: filepath.Join(b.base, "library"),
		ReviewDir:  filepath.Join(b.base, "review"),
		LogDir:     filepath.Join(b.base, "logs"),
	}
	cfg.Metrics.Bind = "127.0.0.1:0"
	b.cfg = &cfg

	for _, opt := range opts {
		opt(b)
	}
	return b.cfg
}

// WithMaxPartSize sets the split ceiling in MB on the test config.
func WithMaxPartSize(mb int) ConfigOption {
	return func(b *builder) {
		b.cfg.Pipeline.MaxPartSizeMB = mb
	}
}

// WithStubbedBinaries writes always-succeeding stub executables for the
// given names and prepends their directory to PATH for the rest of the
// test. With no names, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *builder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.base, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			writeStub(b.t, filepath.Join(binDir, name))
		}
		prependPath(b.t, binDir)
	}
}

func writeStub(t testing.TB, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", filepath.Base(path), err)
	}
}

// prependPath puts dir at the front of PATH and restores the previous value
// when the test finishes.
func prependPath(t testing.TB, dir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir recovers the temp root a NewConfig-built config lives under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
