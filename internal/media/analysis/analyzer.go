// Package analysis probes media files and derives the metadata the rest of
// the pipeline plans against.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"slate/internal/config"
	"slate/internal/logging"
	"slate/internal/services"
	"slate/internal/stage"
)

// VideoMetadata is the read-only result of probing one input file.
type VideoMetadata struct {
	DurationSeconds   float64
	SizeBytes         int64
	BitRate           int64
	VideoCodec        string
	AudioCodec        string
	Width             int
	Height            int
	FramesPerSecond   float64
	AudioChannels     int
	AudioSampleRateHz int
}

// Resolution renders the video dimensions as "WxH".
func (m VideoMetadata) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// Analyzer extracts VideoMetadata from local media files via ffprobe.
type Analyzer struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnalyzer constructs an Analyzer from configuration.
func NewAnalyzer(cfg *config.Config, logger *slog.Logger) *Analyzer {
	binary := "ffprobe"
	var timeout time.Duration
	if cfg != nil {
		binary = cfg.FFprobeBinary()
		timeout = cfg.ProbeTimeout()
	}
	return &Analyzer{
		binary:  binary,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "analyzer"),
	}
}

// Analyze probes the file at path and returns its metadata. It fails when the
// file cannot be probed, contains no video stream, or reports a non-positive
// duration. Audio-less inputs are legal; their audio fields stay zero.
func (a *Analyzer) Analyze(ctx context.Context, path string) (VideoMetadata, error) {
	if strings.TrimSpace(path) == "" {
		return VideoMetadata{}, services.Wrap(services.ErrAnalysis, "analysis", "probe", "input path is empty", nil)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	result, err := inspectProbe(ctx, a.binary, path)
	if err != nil {
		return VideoMetadata{}, services.Wrap(services.ErrAnalysis, "analysis", "probe", "unable to probe input", err)
	}

	video, ok := result.FirstVideoStream()
	if !ok {
		return VideoMetadata{}, services.Wrap(services.ErrAnalysis, "analysis", "inspect streams", "no decodable video stream", nil)
	}

	duration := result.DurationSeconds()
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return VideoMetadata{}, services.Wrap(services.ErrAnalysis, "analysis", "inspect format",
			fmt.Sprintf("non-positive duration %q", result.Format.Duration), nil)
	}

	fps, err := parseFrameRate(video.FrameRate())
	if err != nil {
		return VideoMetadata{}, services.Wrap(services.ErrAnalysis, "analysis", "parse frame rate", "invalid frame rate", err)
	}

	meta := VideoMetadata{
		DurationSeconds: duration,
		SizeBytes:       result.SizeBytes(),
		BitRate:         result.BitRate(),
		VideoCodec:      video.CodecName,
		Width:           video.Width,
		Height:          video.Height,
		FramesPerSecond: fps,
	}
	if meta.SizeBytes == 0 {
		if info, statErr := os.Stat(path); statErr == nil {
			meta.SizeBytes = info.Size()
		}
	}
	if audio, ok := result.FirstAudioStream(); ok {
		meta.AudioCodec = audio.CodecName
		meta.AudioChannels = audio.Channels
		meta.AudioSampleRateHz = audio.SampleRateHz()
	}

	contextLogger := logging.WithContext(ctx, a.logger)
	contextLogger.Debug("analysis completed",
		logging.String("source", path),
		logging.Float64("duration_seconds", meta.DurationSeconds),
		logging.Int64("size_bytes", meta.SizeBytes),
		logging.String("video_codec", meta.VideoCodec),
		logging.String("resolution", meta.Resolution()),
		logging.Float64("fps", meta.FramesPerSecond),
	)

	return meta, nil
}

// HealthCheck verifies the analyzer can reach its ffprobe binary.
func (a *Analyzer) HealthCheck(ctx context.Context) stage.Health {
	const name = "analyzer"
	binary := strings.TrimSpace(a.binary)
	if binary == "" {
		return stage.Unhealthy(name, "ffprobe binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffprobe binary %q not found", binary))
	}
	return stage.Healthy(name)
}

// parseFrameRate reduces a rational frame-rate string ("30000/1001") to a
// float. Plain decimals are accepted as well. Zero denominators and
// non-numeric parts are rejected.
func parseFrameRate(value string) (float64, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0, fmt.Errorf("frame rate is empty")
	}

	if !strings.Contains(cleaned, "/") {
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("frame rate %q is not numeric", cleaned)
		}
		if parsed <= 0 || math.IsInf(parsed, 0) || math.IsNaN(parsed) {
			return 0, fmt.Errorf("frame rate %q is not positive", cleaned)
		}
		return parsed, nil
	}

	parts := strings.SplitN(cleaned, "/", 2)
	numerator, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("frame rate numerator %q is not an integer", parts[0])
	}
	denominator, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("frame rate denominator %q is not an integer", parts[1])
	}
	if denominator == 0 {
		return 0, fmt.Errorf("frame rate %q has zero denominator", cleaned)
	}
	result := float64(numerator) / float64(denominator)
	if result <= 0 || math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, fmt.Errorf("frame rate %q is not positive", cleaned)
	}
	return result, nil
}
