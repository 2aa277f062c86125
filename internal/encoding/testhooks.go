package encoding

import (
	"context"

	"slate/internal/media/ffprobe"
)

// SetInspectForTests overrides ffprobe inspection during tests.
func SetInspectForTests(fn func(ctx context.Context, binary, path string) (ffprobe.Result, error)) func() {
	prev := inspectMedia
	inspectMedia = fn
	return func() { inspectMedia = prev }
}
