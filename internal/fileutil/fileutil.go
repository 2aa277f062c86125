package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Stem returns the file name without its extension, or "output" when the
// path has no usable base.
func Stem(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "output"
	}
	return base
}

// CopyFile streams src to dst with 0o644 permissions on the destination.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}

// CopyFileVerified streams src to dst and verifies the copy by size and
// SHA256 digest. dst is removed when verification fails.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	written, readSum, writeSum, err := copyAndHash(src, dst)
	if err != nil {
		return err
	}

	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if !bytes.Equal(readSum, writeSum) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// copyAndHash copies src to dst while digesting both sides of the transfer,
// so a read that succeeded but wrote short or corrupt bytes is detectable.
func copyAndHash(src, dst string) (int64, []byte, []byte, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, nil, nil, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, nil, nil, err
	}

	readDigest := sha256.New()
	writeDigest := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, writeDigest), io.TeeReader(in, readDigest))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, nil, nil, err
	}
	return written, readDigest.Sum(nil), writeDigest.Sum(nil), nil
}

// MoveFile renames src to dst, falling back to a verified copy plus source
// removal when the rename crosses filesystems.
func MoveFile(src, dst string) error {
	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(renameErr, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return renameErr
	}

	if err := CopyFileVerified(src, dst); err != nil {
		return fmt.Errorf("cross-device copy: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}
