// Package pipeline runs the per-job control flow: analyze the source,
// resolve the preset, transcode, capture the thumbnail, split oversized
// output, and hand back an ordered artifact list.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"slate/internal/config"
	"slate/internal/encoding"
	"slate/internal/fileutil"
	"slate/internal/logging"
	"slate/internal/media/analysis"
	"slate/internal/metrics"
	"slate/internal/preset"
	"slate/internal/segment"
	"slate/internal/services"
	"slate/internal/stage"
	"slate/internal/staging"
	"slate/internal/thumbnail"
)

// Analyzer probes source media.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (analysis.VideoMetadata, error)
}

// PresetSource resolves the encoding parameters for a job.
type PresetSource interface {
	Resolve(ctx context.Context, path string) preset.ProcessingPreset
}

// Transcoder re-encodes source media into the delivery encode.
type Transcoder interface {
	Transcode(ctx context.Context, source, outputPath string, meta analysis.VideoMetadata, p preset.ProcessingPreset, onProgress func(percent float64)) error
}

// Thumbnailer captures the representative still for a job.
type Thumbnailer interface {
	Extract(ctx context.Context, source, outputPath string, meta analysis.VideoMetadata, requestedSeconds float64) error
}

// Splitter divides oversized encodes into playable parts.
type Splitter interface {
	Split(ctx context.Context, path string, totalDurationSeconds float64) ([]segment.Part, error)
}

// Components bundles the stage implementations behind a Pipeline.
type Components struct {
	Analyzer    Analyzer
	Presets     PresetSource
	Transcoder  Transcoder
	Thumbnailer Thumbnailer
	Splitter    Splitter
}

// Pipeline executes one job at a time per Run call. Concurrent Run calls on
// the same Pipeline are safe: each job works inside its own workspace and no
// state is shared across jobs.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
	comps  Components
}

// New builds a Pipeline wired to the ffmpeg/ffprobe backed components.
func New(cfg *config.Config, logger *slog.Logger) *Pipeline {
	return NewWithComponents(cfg, logger, Components{
		Analyzer:    analysis.NewAnalyzer(cfg, logger),
		Presets:     preset.NewResolver(logger),
		Transcoder:  encoding.NewTranscoder(cfg, logger),
		Thumbnailer: thumbnail.NewExtractor(cfg, logger),
		Splitter:    segment.NewSplitter(cfg, logger),
	})
}

// NewWithComponents builds a Pipeline over caller-supplied stage
// implementations (used for tests).
func NewWithComponents(cfg *config.Config, logger *slog.Logger, comps Components) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		comps:  comps,
	}
}

// SetLogger replaces the pipeline logger and pushes it down to every stage
// implementation that accepts one. Call before the first Run.
func (p *Pipeline) SetLogger(logger *slog.Logger) {
	p.logger = logging.NewComponentLogger(logger, "pipeline")
	for _, impl := range p.stageImpls() {
		if aware, ok := impl.(stage.LoggerAware); ok {
			aware.SetLogger(logger)
		}
	}
}

// HealthChecks reports the readiness of every stage implementation that can
// describe itself.
func (p *Pipeline) HealthChecks(ctx context.Context) []stage.Health {
	var checks []stage.Health
	for _, impl := range p.stageImpls() {
		if reporter, ok := impl.(stage.Reporter); ok {
			checks = append(checks, reporter.HealthCheck(ctx))
		}
	}
	return checks
}

func (p *Pipeline) stageImpls() []any {
	return []any{p.comps.Analyzer, p.comps.Presets, p.comps.Transcoder, p.comps.Thumbnailer, p.comps.Splitter}
}

// RunOption adjusts one Run invocation.
type RunOption func(*runOptions)

type runOptions struct {
	onProgress func(percent float64)
}

// WithEncodeProgress registers a hook receiving 0-100 transcode progress.
// Progress is observability only and never affects control flow.
func WithEncodeProgress(fn func(percent float64)) RunOption {
	return func(o *runOptions) { o.onProgress = fn }
}

// Run processes one source file through the full stage sequence and returns
// the ordered artifact list: video parts ascending, then the thumbnail. On
// failure every artifact produced so far is removed together with the job
// workspace; the source file is never touched.
func (p *Pipeline) Run(ctx context.Context, source string, opts ...RunOption) (Result, error) {
	var options runOptions
	for _, opt := range opts {
		opt(&options)
	}

	if p.cfg == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "pipeline", "run", "configuration is required", nil)
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return Result{}, services.Wrap(services.ErrValidation, "pipeline", "run", "source path is required", nil)
	}
	if err := p.checkComponents(); err != nil {
		return Result{}, err
	}

	jobID := uuid.NewString()
	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, p.logger)

	started := time.Now()
	metrics.JobsStarted.Inc()
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	workspace := staging.NewWorkspace(p.cfg.Paths.StagingDir, jobID)
	if err := workspace.Create(); err != nil {
		metrics.JobsFailed.WithLabelValues("staging").Inc()
		return Result{}, err
	}

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source", source),
		logging.String("workspace", workspace.Root),
	)

	result := Result{
		JobID:          jobID,
		Source:         source,
		Workspace:      workspace,
		StageDurations: make(map[string]time.Duration),
	}

	stem := fileutil.Stem(source)
	encodedPath := filepath.Join(workspace.EncodedDir, stem+".mp4")
	thumbPath := filepath.Join(workspace.ThumbsDir, stem+".jpg")

	err := p.runStage(ctx, &result, "analyze", func(stageCtx context.Context) error {
		meta, analyzeErr := p.comps.Analyzer.Analyze(stageCtx, source)
		if analyzeErr != nil {
			return analyzeErr
		}
		result.Metadata = meta
		return nil
	})
	if err != nil {
		return Result{}, p.failJob(logger, workspace, "analyze", started, err)
	}

	// Preset resolution never fails; problems fall back to the default.
	result.Preset = p.comps.Presets.Resolve(services.WithStage(ctx, "preset"), p.cfg.Pipeline.PresetPath)

	err = p.runStage(ctx, &result, "transcode", func(stageCtx context.Context) error {
		return p.comps.Transcoder.Transcode(stageCtx, source, encodedPath, result.Metadata, result.Preset, options.onProgress)
	})
	if err != nil {
		return Result{}, p.failJob(logger, workspace, "transcode", started, err)
	}

	err = p.runStage(ctx, &result, "thumbnail", func(stageCtx context.Context) error {
		return p.comps.Thumbnailer.Extract(stageCtx, source, thumbPath, result.Metadata, p.cfg.Pipeline.ThumbnailTimestampSeconds)
	})
	if err != nil {
		return Result{}, p.failJob(logger, workspace, "thumbnail", started, err)
	}

	var parts []segment.Part
	err = p.runStage(ctx, &result, "split", func(stageCtx context.Context) error {
		split, splitErr := p.comps.Splitter.Split(stageCtx, encodedPath, result.Metadata.DurationSeconds)
		if splitErr != nil {
			return splitErr
		}
		parts = split
		return nil
	})
	if err != nil {
		return Result{}, p.failJob(logger, workspace, "split", started, err)
	}

	artifacts := make([]Artifact, 0, len(parts)+1)
	for _, part := range parts {
		artifact := Artifact{
			Path:      part.Path,
			Name:      filepath.Base(part.Path),
			Kind:      ArtifactVideo,
			SizeBytes: part.SizeBytes,
		}
		if part.Total > 1 {
			artifact.PartIndex = part.Index
			artifact.TotalParts = part.Total
		}
		artifacts = append(artifacts, artifact)
	}

	thumbInfo, err := os.Stat(thumbPath)
	if err != nil {
		wrapped := services.Wrap(services.ErrThumbnail, "pipeline", "collect artifacts", "thumbnail missing after capture", err)
		return Result{}, p.failJob(logger, workspace, "thumbnail", started, wrapped)
	}
	artifacts = append(artifacts, Artifact{
		Path:      thumbPath,
		Name:      filepath.Base(thumbPath),
		Kind:      ArtifactThumbnail,
		SizeBytes: thumbInfo.Size(),
	})

	result.Artifacts = artifacts
	result.Elapsed = time.Since(started)

	metrics.PartsProduced.Add(float64(len(parts)))
	metrics.JobsSucceeded.Inc()
	metrics.JobDuration.Observe(result.Elapsed.Seconds())

	var deliverableBytes int64
	for _, artifact := range artifacts {
		deliverableBytes += artifact.SizeBytes
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int("video_parts", len(parts)),
		logging.Int("artifacts", len(artifacts)),
		logging.String("total_size", humanize.IBytes(uint64(deliverableBytes))),
		logging.Duration("elapsed", result.Elapsed),
	)

	return result, nil
}

// runStage annotates the context with the stage name, times the stage, and
// records its boundary logs.
func (p *Pipeline) runStage(ctx context.Context, result *Result, name string, fn func(context.Context) error) error {
	stageCtx := services.WithStage(ctx, name)
	stageLogger := logging.WithContext(stageCtx, p.logger)

	stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	stageStarted := time.Now()
	err := fn(stageCtx)
	elapsed := time.Since(stageStarted)
	result.StageDurations[name] = elapsed
	metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		stageLogger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
		)
		return err
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", elapsed),
	)
	return nil
}

// failJob removes the job workspace and everything produced inside it, then
// returns the stage error unchanged. Cleanup problems are logged, never
// propagated.
func (p *Pipeline) failJob(logger *slog.Logger, workspace staging.Workspace, stageName string, started time.Time, err error) error {
	metrics.JobsFailed.WithLabelValues(stageName).Inc()
	metrics.JobDuration.Observe(time.Since(started).Seconds())

	if removeErr := workspace.Remove(); removeErr != nil {
		logging.WarnWithContext(logger, "failed to remove job workspace", "cleanup_warning",
			logging.String("workspace", workspace.Root),
			logging.Error(removeErr),
		)
	}

	logger.Error("job failed",
		logging.String(logging.FieldEventType, "job_failure"),
		logging.String("failed_stage", stageName),
		logging.Duration("elapsed", time.Since(started)),
		logging.Error(err),
	)
	return err
}

func (p *Pipeline) checkComponents() error {
	missing := ""
	switch {
	case p.comps.Analyzer == nil:
		missing = "analyzer"
	case p.comps.Presets == nil:
		missing = "preset resolver"
	case p.comps.Transcoder == nil:
		missing = "transcoder"
	case p.comps.Thumbnailer == nil:
		missing = "thumbnail extractor"
	case p.comps.Splitter == nil:
		missing = "splitter"
	}
	if missing == "" {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "pipeline", "check components", missing+" unavailable", nil)
}
