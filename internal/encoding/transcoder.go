package encoding

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/dustin/go-humanize"

	"slate/internal/config"
	"slate/internal/logging"
	"slate/internal/media/analysis"
	"slate/internal/media/ffprobe"
	"slate/internal/preset"
	"slate/internal/services"
	"slate/internal/services/ffmpeg"
	"slate/internal/stage"
)

var inspectMedia = ffprobe.Inspect

// Transcoder runs ffmpeg encodes and validates their outputs.
type Transcoder struct {
	cfg    *config.Config
	logger *slog.Logger
	client ffmpeg.Client
}

// NewTranscoder constructs a Transcoder backed by the configured ffmpeg
// binary.
func NewTranscoder(cfg *config.Config, logger *slog.Logger) *Transcoder {
	binary := "ffmpeg"
	if cfg != nil {
		binary = cfg.FFmpegBinary()
	}
	return NewTranscoderWithClient(cfg, logger, ffmpeg.NewCLI(ffmpeg.WithBinary(binary)))
}

// NewTranscoderWithClient allows injecting a custom ffmpeg client (used for
// tests).
func NewTranscoderWithClient(cfg *config.Config, logger *slog.Logger, client ffmpeg.Client) *Transcoder {
	t := &Transcoder{cfg: cfg, client: client}
	t.SetLogger(logger)
	return t
}

// SetLogger updates the transcoder's logging destination while preserving
// component labeling.
func (t *Transcoder) SetLogger(logger *slog.Logger) {
	t.logger = logging.NewComponentLogger(logger, "transcoder")
}

// Transcode encodes source into outputPath according to the preset. The
// progress callback only observes the encode; it cannot influence or fail
// it. On any failure the partial output is removed before returning.
func (t *Transcoder) Transcode(ctx context.Context, source, outputPath string, meta analysis.VideoMetadata, p preset.ProcessingPreset, onProgress func(percent float64)) error {
	logger := logging.WithContext(ctx, t.logger)
	start := time.Now()

	if t.client == nil {
		return services.Wrap(services.ErrTranscode, "transcode", "check client", "ffmpeg client unavailable", nil)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrTranscode, "transcode", "ensure output dir", "failed to create output directory", err)
	}

	req := ffmpeg.EncodeRequest{
		InputPath:        source,
		OutputPath:       outputPath,
		VideoCodec:       p.VideoCodec,
		Resolution:       p.Resolution,
		VideoBitRateKbps: p.VideoBitRateKbps,
		FramesPerSecond:  p.FramesPerSecond,
		DurationSeconds:  meta.DurationSeconds,
	}
	// Only ask for audio encoding when the source actually carries audio.
	if meta.AudioCodec != "" {
		req.AudioCodec = p.AudioCodec
		req.AudioChannels = p.AudioChannels
		req.AudioSampleRateHz = p.AudioSampleRateHz
	}

	if t.cfg != nil {
		if timeout := t.cfg.TranscodeTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	logger.Info("starting transcode",
		logging.String("input", source),
		logging.String("output", outputPath),
		logging.String("video_codec", p.VideoCodec),
		logging.String("resolution", p.Resolution),
		logging.Int("video_bitrate_kbps", p.VideoBitRateKbps),
	)

	sampler := logging.NewProgressSampler(5)
	err := t.client.Encode(ctx, req, func(update ffmpeg.ProgressUpdate) {
		if sampler.ShouldLog("encoding", update.Percent) {
			attrs := []logging.Attr{logging.Float64("progress_percent", update.Percent)}
			if update.Speed > 0 {
				attrs = append(attrs, logging.Float64("progress_speed", update.Speed))
			}
			if strings.TrimSpace(update.Bitrate) != "" {
				attrs = append(attrs, logging.String("progress_bitrate", strings.TrimSpace(update.Bitrate)))
			}
			logger.Info("transcode progress", logging.Args(attrs...)...)
		}
		if onProgress != nil {
			onProgress(update.Percent)
		}
	})
	if err != nil {
		t.removePartialOutput(logger, outputPath)
		return services.Wrap(services.ErrTranscode, "transcode", "encode", "ffmpeg encode failed", err)
	}

	if err := t.validateOutput(ctx, outputPath, meta); err != nil {
		t.removePartialOutput(logger, outputPath)
		return err
	}

	outputBytes := int64(0)
	if info, statErr := os.Stat(outputPath); statErr == nil {
		outputBytes = info.Size()
	}
	var ratio float64
	if meta.SizeBytes > 0 {
		ratio = float64(outputBytes) / float64(meta.SizeBytes) * 100
	}
	logger.Info("transcode completed",
		logging.String("output", outputPath),
		logging.String("input_size", humanize.IBytes(uint64(meta.SizeBytes))),
		logging.String("output_size", humanize.IBytes(uint64(outputBytes))),
		logging.Float64("size_ratio_percent", ratio),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (t *Transcoder) removePartialOutput(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to remove partial transcode output", "cleanup_warning",
			logging.String("path", path),
			logging.Error(err))
	}
}

func (t *Transcoder) validateOutput(ctx context.Context, path string, meta analysis.VideoMetadata) error {
	logger := logging.WithContext(ctx, t.logger)

	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrTranscode, "transcode", "validate output", "failed to stat encoded file", err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrTranscode, "transcode", "validate output",
			fmt.Sprintf("encoded path %q is a directory", path), nil)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrTranscode, "transcode", "validate output", "encoded file is empty", nil)
	}

	binary := "ffprobe"
	if t.cfg != nil {
		binary = t.cfg.FFprobeBinary()
	}
	probe, err := inspectMedia(ctx, binary, path)
	if err != nil {
		return services.Wrap(services.ErrTranscode, "transcode", "probe output", "failed to inspect encoded file", err)
	}
	if probe.VideoStreamCount() == 0 {
		return services.Wrap(services.ErrTranscode, "transcode", "validate video stream", "encoded file has no video stream", nil)
	}
	if meta.AudioCodec != "" && probe.AudioStreamCount() == 0 {
		return services.Wrap(services.ErrTranscode, "transcode", "validate audio stream", "encoded file lost its audio stream", nil)
	}
	if probe.DurationSeconds() <= 0 {
		return services.Wrap(services.ErrTranscode, "transcode", "validate duration", "encoded file duration could not be determined", nil)
	}

	logger.Debug("transcode validation succeeded",
		logging.String("encoded_file", path),
		logging.Group("ffprobe",
			logging.Float64("duration_seconds", probe.DurationSeconds()),
			logging.Int("video_streams", probe.VideoStreamCount()),
			logging.Int("audio_streams", probe.AudioStreamCount()),
		),
	)
	return nil
}

// HealthCheck verifies the transcoder can reach its ffmpeg binary.
func (t *Transcoder) HealthCheck(ctx context.Context) stage.Health {
	const name = "transcoder"
	if t.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if t.client == nil {
		return stage.Unhealthy(name, "ffmpeg client unavailable")
	}
	binary := strings.TrimSpace(t.cfg.FFmpegBinary())
	if binary == "" {
		return stage.Unhealthy(name, "ffmpeg binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffmpeg binary %q not found", binary))
	}
	return stage.Healthy(name)
}
