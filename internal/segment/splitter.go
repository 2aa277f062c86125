package segment

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

	"github.com/dustin/go-humanize"

	"slate/internal/config"
	"slate/internal/logging"
	"slate/internal/services"
	"slate/internal/services/ffmpeg"
	"slate/internal/stage"
)

// Part is one delivery-ready piece of a split file.
type Part struct {
	Path      string
	Index     int
	Total     int
	SizeBytes int64
}

// Splitter cuts oversized encodes into parts with ffmpeg stream copy.
type Splitter struct {
	cfg    *config.Config
	logger *slog.Logger
	client ffmpeg.Client
}

// NewSplitter constructs a Splitter backed by the configured ffmpeg binary.
func NewSplitter(cfg *config.Config, logger *slog.Logger) *Splitter {
	binary := "ffmpeg"
	if cfg != nil {
		binary = cfg.FFmpegBinary()
	}
	return NewSplitterWithClient(cfg, logger, ffmpeg.NewCLI(ffmpeg.WithBinary(binary)))
}

// NewSplitterWithClient allows injecting a custom ffmpeg client (used for
// tests).
func NewSplitterWithClient(cfg *config.Config, logger *slog.Logger, client ffmpeg.Client) *Splitter {
	s := &Splitter{cfg: cfg, client: client}
	s.SetLogger(logger)
	return s
}

// SetLogger updates the splitter's logging destination while preserving
// component labeling.
func (s *Splitter) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "splitter")
}

// Split sizes the file at path against the configured ceiling. Files at or
// under it come back as a single part referencing the original file
// untouched. Oversized files are cut into equal-duration parts named
// <stem>_part<N><ext>; the pre-split file is deleted once every cut
// succeeds. A failed cut removes all parts already produced and aborts.
func (s *Splitter) Split(ctx context.Context, path string, totalDurationSeconds float64) ([]Part, error) {
	logger := logging.WithContext(ctx, s.logger)

	if s.client == nil {
		return nil, services.Wrap(services.ErrSplit, "split", "check client", "ffmpeg client unavailable", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrSplit, "split", "inspect input", "failed to stat encoded file", err)
	}

	maxPartSizeMB := 0
	if s.cfg != nil {
		maxPartSizeMB = s.cfg.Pipeline.MaxPartSizeMB
	}
	plan, err := ComputePlan(info.Size(), totalDurationSeconds, maxPartSizeMB)
	if err != nil {
		return nil, err
	}

	if !plan.NeedsSplit() {
		logger.Debug("file under part ceiling, passing through",
			logging.String("path", path),
			logging.String("size", humanize.IBytes(uint64(plan.SizeBytes))),
			logging.Int("max_part_size_mb", plan.MaxPartSizeMB),
		)
		return []Part{{Path: path, Index: 1, Total: 1, SizeBytes: plan.SizeBytes}}, nil
	}

	logger.Info("splitting oversized file",
		logging.String("path", path),
		logging.String("size", humanize.IBytes(uint64(plan.SizeBytes))),
		logging.Int("parts", plan.Parts),
		logging.Float64("part_duration_seconds", plan.PartDurationSeconds),
	)

	parts := make([]Part, 0, plan.Parts)
	for i := 0; i < plan.Parts; i++ {
		outputPath := partPath(path, i+1)
		req := ffmpeg.SegmentRequest{
			InputPath:       path,
			OutputPath:      outputPath,
			StartSeconds:    float64(i) * plan.PartDurationSeconds,
			DurationSeconds: plan.PartDurationSeconds,
		}
		if err := s.copySegment(ctx, req); err != nil {
			s.removeParts(logger, parts, outputPath)
			return nil, services.Wrap(services.ErrSplit, "split", "copy segment",
				fmt.Sprintf("cut %d of %d failed", i+1, plan.Parts), err)
		}

		partInfo, statErr := os.Stat(outputPath)
		if statErr != nil {
			s.removeParts(logger, parts, outputPath)
			return nil, services.Wrap(services.ErrSplit, "split", "inspect part",
				fmt.Sprintf("cut %d of %d produced no file", i+1, plan.Parts), statErr)
		}
		parts = append(parts, Part{Path: outputPath, Index: i + 1, Total: plan.Parts, SizeBytes: partInfo.Size()})
		logger.Debug("segment cut",
			logging.Int("part_index", i+1),
			logging.Int("part_count", plan.Parts),
			logging.String("part_size", humanize.IBytes(uint64(partInfo.Size()))),
		)
	}

	if err := os.Remove(path); err != nil {
		logging.WarnWithContext(logger, "failed to remove pre-split file", "cleanup_warning",
			logging.String("path", path),
			logging.Error(err))
	}

	logger.Info("split completed",
		logging.String("source", path),
		logging.Int("parts", len(parts)),
	)
	return parts, nil
}

func (s *Splitter) copySegment(ctx context.Context, req ffmpeg.SegmentRequest) error {
	if s.cfg != nil {
		if timeout := s.cfg.SegmentTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}
	return s.client.CopySegment(ctx, req)
}

// removeParts deletes every produced part plus the output of the failed
// cut, leaving the pre-split file in place for the caller's cleanup.
func (s *Splitter) removeParts(logger *slog.Logger, parts []Part, failedPath string) {
	targets := make([]string, 0, len(parts)+1)
	for _, part := range parts {
		targets = append(targets, part.Path)
	}
	targets = append(targets, failedPath)
	for _, target := range targets {
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(logger, "failed to remove partial segment", "cleanup_warning",
				logging.String("path", target),
				logging.Error(err))
		}
	}
}

// partPath derives the output name for one part: movie.mp4 -> movie_part2.mp4.
func partPath(path string, index int) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_part%d%s", stem, index, ext))
}

// HealthCheck verifies the splitter can reach its ffmpeg binary.
func (s *Splitter) HealthCheck(ctx context.Context) stage.Health {
	const name = "splitter"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if s.client == nil {
		return stage.Unhealthy(name, "ffmpeg client unavailable")
	}
	if s.cfg.Pipeline.MaxPartSizeMB <= 0 {
		return stage.Unhealthy(name, "max part size not configured")
	}
	binary := strings.TrimSpace(s.cfg.FFmpegBinary())
	if binary == "" {
		return stage.Unhealthy(name, "ffmpeg binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffmpeg binary %q not found", binary))
	}
	return stage.Healthy(name)
}
