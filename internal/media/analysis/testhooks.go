package analysis

import (
	"context"

	"slate/internal/media/ffprobe"
)

var inspectProbe = ffprobe.Inspect

// SetInspectForTests overrides ffprobe inspection during tests.
func SetInspectForTests(fn func(ctx context.Context, binary, path string) (ffprobe.Result, error)) func() {
	prev := inspectProbe
	inspectProbe = fn
	return func() { inspectProbe = prev }
}
