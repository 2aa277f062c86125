package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path (and any missing parent directories) holding exactly
// size bytes of filler. Sizes <= 0 produce a one-byte file so stat-based
// checks still see content.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	filler := bytes.Repeat([]byte{0x5a}, 64*1024)
	for written := int64(0); written < size; {
		chunk := size - written
		if chunk > int64(len(filler)) {
			chunk = int64(len(filler))
		}
		n, err := f.Write(filler[:chunk])
		if err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		written += int64(n)
	}
}
