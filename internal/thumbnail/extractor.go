// Package thumbnail captures preview stills from video files.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"log/slog"

	"slate/internal/config"
	"slate/internal/logging"
	"slate/internal/media/analysis"
	"slate/internal/services"
	"slate/internal/services/ffmpeg"
	"slate/internal/stage"
)

const (
	stillWidth  = 1280
	stillHeight = 720

	// endOffsetSeconds is how far inside the end of the file an
	// out-of-range timestamp lands.
	endOffsetSeconds = 0.1
)

// Extractor captures one preview still per job.
type Extractor struct {
	cfg    *config.Config
	logger *slog.Logger
	client ffmpeg.Client
}

// NewExtractor constructs an Extractor backed by the configured ffmpeg
// binary.
func NewExtractor(cfg *config.Config, logger *slog.Logger) *Extractor {
	binary := "ffmpeg"
	if cfg != nil {
		binary = cfg.FFmpegBinary()
	}
	return NewExtractorWithClient(cfg, logger, ffmpeg.NewCLI(ffmpeg.WithBinary(binary)))
}

// NewExtractorWithClient allows injecting a custom ffmpeg client (used for
// tests).
func NewExtractorWithClient(cfg *config.Config, logger *slog.Logger, client ffmpeg.Client) *Extractor {
	e := &Extractor{cfg: cfg, client: client}
	e.SetLogger(logger)
	return e
}

// SetLogger updates the extractor's logging destination while preserving
// component labeling.
func (e *Extractor) SetLogger(logger *slog.Logger) {
	e.logger = logging.NewComponentLogger(logger, "thumbnail")
}

// ClampTimestamp returns the capture point used for a requested timestamp.
// Negative values capture the first frame; values at or past the end of the
// file land endOffsetSeconds before it. A timestamp is never a reason to
// fail.
func ClampTimestamp(requested, duration float64) float64 {
	if duration <= 0 || requested < 0 {
		return 0
	}
	if requested >= duration {
		adjusted := duration - endOffsetSeconds
		if adjusted < 0 {
			return 0
		}
		return adjusted
	}
	return requested
}

// Extract captures a single 1280x720 still from source at the requested
// timestamp, writing it to outputPath. Out-of-range timestamps are clamped,
// never rejected; only subprocess failures produce an error.
func (e *Extractor) Extract(ctx context.Context, source, outputPath string, meta analysis.VideoMetadata, requestedSeconds float64) error {
	logger := logging.WithContext(ctx, e.logger)

	if e.client == nil {
		return services.Wrap(services.ErrThumbnail, "thumbnail", "check client", "ffmpeg client unavailable", nil)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrThumbnail, "thumbnail", "ensure output dir", "failed to create output directory", err)
	}

	actual := ClampTimestamp(requestedSeconds, meta.DurationSeconds)
	if actual != requestedSeconds {
		logger.Debug("thumbnail timestamp adjusted",
			logging.Float64("requested_seconds", requestedSeconds),
			logging.Float64("actual_seconds", actual),
			logging.Float64("duration_seconds", meta.DurationSeconds),
		)
	}

	if e.cfg != nil {
		if timeout := e.cfg.ThumbnailTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	req := ffmpeg.FrameRequest{
		InputPath:        source,
		OutputPath:       outputPath,
		TimestampSeconds: actual,
		Width:            stillWidth,
		Height:           stillHeight,
	}
	if err := e.client.CaptureFrame(ctx, req); err != nil {
		e.removePartialOutput(logger, outputPath)
		return services.Wrap(services.ErrThumbnail, "thumbnail", "capture frame", "ffmpeg frame capture failed", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return services.Wrap(services.ErrThumbnail, "thumbnail", "validate output", "frame capture produced no file", err)
	}
	if info.Size() == 0 {
		e.removePartialOutput(logger, outputPath)
		return services.Wrap(services.ErrThumbnail, "thumbnail", "validate output", "frame capture produced an empty file", nil)
	}

	logger.Info("thumbnail captured",
		logging.String("output", outputPath),
		logging.Float64("timestamp_seconds", actual),
		logging.Int64("size_bytes", info.Size()),
	)
	return nil
}

func (e *Extractor) removePartialOutput(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to remove partial thumbnail", "cleanup_warning",
			logging.String("path", path),
			logging.Error(err))
	}
}

// HealthCheck verifies the extractor can reach its ffmpeg binary.
func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	const name = "thumbnail"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if e.client == nil {
		return stage.Unhealthy(name, "ffmpeg client unavailable")
	}
	binary := strings.TrimSpace(e.cfg.FFmpegBinary())
	if binary == "" {
		return stage.Unhealthy(name, "ffmpeg binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffmpeg binary %q not found", binary))
	}
	return stage.Healthy(name)
}
