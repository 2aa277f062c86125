// Package organizer delivers finished artifacts into the library tree and
// retires their job workspaces.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"slate/internal/config"
	"slate/internal/fileutil"
	"slate/internal/logging"
	"slate/internal/pipeline"
	"slate/internal/services"
	"slate/internal/stage"
)

// Organizer moves job deliverables into the library directory.
type Organizer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs an Organizer.
func New(cfg *config.Config, logger *slog.Logger) *Organizer {
	o := &Organizer{cfg: cfg}
	o.SetLogger(logger)
	return o
}

// SetLogger updates the organizer's logging destination while preserving
// component labeling.
func (o *Organizer) SetLogger(logger *slog.Logger) {
	o.logger = logging.NewComponentLogger(logger, "organizer")
}

// Deliver moves every artifact of a finished job into
// <library>/<source stem>/ in artifact order, then removes the job
// workspace. Moves prefer rename and fall back to a verified copy when the
// library sits on another filesystem. A failed move aborts delivery and
// leaves the remaining artifacts in the workspace for inspection.
func (o *Organizer) Deliver(ctx context.Context, result pipeline.Result) ([]string, error) {
	logger := logging.WithContext(ctx, o.logger)

	if o.cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "organize", "check config", "configuration is required", nil)
	}
	libraryDir := strings.TrimSpace(o.cfg.Paths.LibraryDir)
	if libraryDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "organize", "resolve library dir", "library directory not configured; set library_dir", nil)
	}
	if len(result.Artifacts) == 0 {
		return nil, services.Wrap(services.ErrValidation, "organize", "validate inputs", "job produced no artifacts", nil)
	}

	targetDir := filepath.Join(libraryDir, fileutil.Stem(result.Source))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "organize", "ensure target dir", "failed to create library directory", err)
	}

	delivered := make([]string, 0, len(result.Artifacts))
	var deliveredBytes int64
	for _, artifact := range result.Artifacts {
		target := filepath.Join(targetDir, artifact.Name)
		if err := fileutil.MoveFile(artifact.Path, target); err != nil {
			return delivered, services.Wrap(services.ErrDelivery, "organize", "move artifact",
				fmt.Sprintf("failed to deliver %q", artifact.Name), err)
		}
		delivered = append(delivered, target)
		deliveredBytes += artifact.SizeBytes
		logger.Debug("artifact delivered",
			logging.String("artifact", artifact.Name),
			logging.String("kind", string(artifact.Kind)),
			logging.String("target", target),
		)
	}

	if err := result.Workspace.Remove(); err != nil {
		logging.WarnWithContext(logger, "failed to remove delivered workspace", "cleanup_warning",
			logging.String("workspace", result.Workspace.Root),
			logging.Error(err),
		)
	}

	logger.Info("delivery completed",
		logging.String(logging.FieldEventType, "delivery_complete"),
		logging.String("library_dir", targetDir),
		logging.Int("artifacts", len(delivered)),
		logging.String("total_size", humanize.IBytes(uint64(deliveredBytes))),
	)
	return delivered, nil
}

// MoveToReview relocates a failed source file into the review directory so
// watch mode never reprocesses it. Name collisions get a numeric suffix.
func (o *Organizer) MoveToReview(ctx context.Context, source string) (string, error) {
	logger := logging.WithContext(ctx, o.logger)

	if o.cfg == nil {
		return "", services.Wrap(services.ErrConfiguration, "organize", "check config", "configuration is required", nil)
	}
	reviewDir := strings.TrimSpace(o.cfg.Paths.ReviewDir)
	if reviewDir == "" {
		return "", services.Wrap(services.ErrConfiguration, "organize", "resolve review dir", "review directory not configured; set review_dir", nil)
	}
	if err := os.MkdirAll(reviewDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "organize", "ensure review dir", "failed to create review directory", err)
	}

	target, err := nextReviewPath(reviewDir, filepath.Base(source))
	if err != nil {
		return "", services.Wrap(services.ErrDelivery, "organize", "allocate review name", "unable to allocate review filename", err)
	}
	if err := fileutil.MoveFile(source, target); err != nil {
		return "", services.Wrap(services.ErrDelivery, "organize", "move to review", "failed to move source into review directory", err)
	}

	logger.Info("source moved to review",
		logging.String(logging.FieldEventType, "review_routed"),
		logging.String("source", source),
		logging.String("review_file", target),
	)
	return target, nil
}

// nextReviewPath returns the plain name when free, then numbered variants.
func nextReviewPath(dir, base string) (string, error) {
	const maxAttempts = 10000

	candidate := filepath.Join(dir, base)
	_, err := os.Stat(candidate)
	if errors.Is(err, os.ErrNotExist) {
		return candidate, nil
	}
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		name := fmt.Sprintf("%s-%d%s", stem, attempt, ext)
		candidate := filepath.Join(dir, name)
		_, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted review filename slots in %s", dir)
}

// HealthCheck verifies the organizer's delivery target is configured.
func (o *Organizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "organizer"
	if o.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(o.cfg.Paths.LibraryDir) == "" {
		return stage.Unhealthy(name, "library directory not configured")
	}
	return stage.Healthy(name)
}
