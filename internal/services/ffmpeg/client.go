// Package ffmpeg wraps the ffmpeg command line for encoding, frame capture,
// and stream-copy segmenting.
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// stderrTailLimit bounds how much diagnostic output is kept for error
// messages.
const stderrTailLimit = 4096

// Client defines the ffmpeg operations the pipeline depends on.
type Client interface {
	Encode(ctx context.Context, req EncodeRequest, progress func(ProgressUpdate)) error
	CaptureFrame(ctx context.Context, req FrameRequest) error
	CopySegment(ctx context.Context, req SegmentRequest) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI runs ffmpeg as a subprocess.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Encode runs a full transcode, reporting progress blocks to the callback
// as ffmpeg emits them. The process is killed when ctx ends; the returned
// error then carries the context cause so callers can distinguish timeouts.
func (c *CLI) Encode(ctx context.Context, req EncodeRequest, progress func(ProgressUpdate)) error {
	if err := req.Validate(); err != nil {
		return err
	}

	cmd := commandContext(ctx, c.binary, req.BuildArgs()...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{limit: stderrTailLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	parser := newProgressParser(req.DurationSeconds)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		update, complete := parser.Consume(scanner.Text())
		if complete && progress != nil {
			progress(update)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return commandError(ctx, "encode", err, stderr)
	}
	if scanErr != nil {
		return fmt.Errorf("read ffmpeg progress: %w", scanErr)
	}
	return nil
}

// CaptureFrame extracts a single still image.
func (c *CLI) CaptureFrame(ctx context.Context, req FrameRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return c.runQuiet(ctx, "capture frame", req.BuildArgs())
}

// CopySegment cuts one stream-copy segment out of the input.
func (c *CLI) CopySegment(ctx context.Context, req SegmentRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return c.runQuiet(ctx, "copy segment", req.BuildArgs())
}

func (c *CLI) runQuiet(ctx context.Context, verb string, args []string) error {
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	output := &tailBuffer{limit: stderrTailLimit}
	cmd.Stdout = output
	cmd.Stderr = output
	if err := cmd.Run(); err != nil {
		return commandError(ctx, verb, err, output)
	}
	return nil
}

// commandError shapes a subprocess failure, preferring the context cause so
// deadline and cancellation checks keep working up the stack, and appending
// whatever ffmpeg said on stderr.
func commandError(ctx context.Context, verb string, waitErr error, stderr *tailBuffer) error {
	cause := waitErr
	if ctxErr := ctx.Err(); ctxErr != nil {
		cause = ctxErr
	}
	if detail := stderr.String(); detail != "" {
		return fmt.Errorf("ffmpeg %s: %w: %s", verb, cause, detail)
	}
	return fmt.Errorf("ffmpeg %s: %w", verb, cause)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if len(b.data) > b.limit {
		b.data = b.data[len(b.data)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return strings.TrimSpace(string(b.data))
}

var _ Client = (*CLI)(nil)
