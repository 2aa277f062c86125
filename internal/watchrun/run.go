// Package watchrun hosts the watch-mode process runtime: run-scoped log
// files, single-instance locking, preflight gating, the optional metrics
// endpoint, and the watcher-to-pipeline job loop.
package watchrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"slate/internal/config"
	"slate/internal/logging"
	"slate/internal/metrics"
	"slate/internal/notifications"
	"slate/internal/organizer"
	"slate/internal/pipeline"
	"slate/internal/preflight"
	"slate/internal/services"
	"slate/internal/staging"
	"slate/internal/watch"
)

// Options configures watch-mode runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the slate watch runtime and blocks until the context ends or a
// termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("slate-%s.log", runID))

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update slate.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "slate-*.log", Exclude: []string{logPath}},
	)
	logDependencySnapshot(logger, cfg)

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "slate.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return errors.New("another slate watch instance is already running")
	}
	defer func() {
		_ = lock.Unlock()
	}()

	pidPath := filepath.Join(cfg.Paths.LogDir, "slate.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	if err := runPreflight(signalCtx, cfg, logger); err != nil {
		return err
	}

	if retention := cfg.WorkspaceRetention(); retention > 0 {
		swept := staging.CleanStale(signalCtx, cfg.Paths.StagingDir, retention, logger)
		if len(swept.Removed) > 0 {
			logger.Info("startup staging sweep completed",
				logging.String(logging.FieldEventType, "staging_sweep"),
				logging.Int("removed", len(swept.Removed)),
			)
		}
	}

	stopMetrics, err := startMetricsServer(logger, cfg.Metrics.Bind)
	if err != nil {
		logging.WarnWithContext(logger, "metrics endpoint unavailable", "metrics_start_failed",
			logging.String("bind", cfg.Metrics.Bind),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "adjust metrics.bind or free the port"),
			logging.String(logging.FieldImpact, "metrics are not exported for this run"),
		)
	}
	if stopMetrics != nil {
		defer stopMetrics()
	}

	rt := &runtime{
		logger:    logger,
		pipe:      pipeline.New(cfg, logger),
		organizer: organizer.New(cfg, logger),
		notifier:  notifications.NewService(cfg),
	}

	watcher, err := watch.New(cfg, logger, rt.processFile)
	if err != nil {
		return err
	}

	started := time.Now()
	if err := rt.notifier.NotifyWatchStarted(signalCtx, cfg.Paths.InboxDir); err != nil {
		logging.WarnWithContext(logger, "failed to send watch started notification", "notification_failed",
			logging.Error(err),
		)
	}

	runErr := watcher.Run(signalCtx)

	processed := int(rt.processed.Load())
	failed := int(rt.failed.Load())
	uptime := time.Since(started)

	// The signal context is already done here, so the farewell notification
	// gets its own deadline.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := rt.notifier.NotifyWatchStopped(stopCtx, processed, failed, uptime); err != nil {
		logging.WarnWithContext(logger, "failed to send watch stopped notification", "notification_failed",
			logging.Error(err),
		)
	}

	logger.Info("slate watch stopped",
		logging.String(logging.FieldEventType, "watch_runtime_stopped"),
		logging.Int("processed", processed),
		logging.Int("failed", failed),
		logging.Duration("uptime", uptime),
	)
	return runErr
}

// runtime carries the per-run state shared by every dispatched job.
type runtime struct {
	logger    *slog.Logger
	pipe      *pipeline.Pipeline
	organizer *organizer.Organizer
	notifier  notifications.Service

	processed atomic.Int64
	failed    atomic.Int64
}

// processFile runs one settled inbox file through the pipeline. Successful
// jobs are delivered to the library and their source removed; failed jobs
// route the source to the review directory so it is never retried blindly.
func (r *runtime) processFile(ctx context.Context, path string) {
	result, jobErr := r.pipe.Run(ctx, path)
	if jobErr == nil {
		_, jobErr = r.organizer.Deliver(ctx, result)
	}

	if jobErr != nil {
		if ctx.Err() != nil {
			// Shutdown interrupted the job. Leave the source in the inbox so
			// the next run picks it up.
			r.logger.Info("job interrupted by shutdown",
				logging.String(logging.FieldEventType, "job_interrupted"),
				logging.String("source", path),
			)
			return
		}
		r.failed.Add(1)
		if _, reviewErr := r.organizer.MoveToReview(ctx, path); reviewErr != nil {
			logging.WarnWithContext(r.logger, "failed to move source to review", "review_move_failed",
				logging.String("source", path),
				logging.Error(reviewErr),
				logging.String(logging.FieldErrorHint, "move the file out of the inbox manually"),
				logging.String(logging.FieldImpact, "the source remains in the inbox and may be retried"),
			)
		}
		if err := r.notifier.NotifyJobFailed(ctx, path, services.FailedStage(jobErr), jobErr); err != nil {
			logging.WarnWithContext(r.logger, "failed to send failure notification", "notification_failed",
				logging.Error(err),
			)
		}
		return
	}

	if err := os.Remove(path); err != nil {
		logging.WarnWithContext(r.logger, "failed to remove delivered source", "cleanup_warning",
			logging.String("source", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the file manually"),
			logging.String(logging.FieldImpact, "the source remains in the inbox and may be processed again"),
		)
	}
	r.processed.Add(1)

	if err := r.notifier.NotifyJobCompleted(ctx, path, len(result.VideoArtifacts()), result.Elapsed); err != nil {
		logging.WarnWithContext(r.logger, "failed to send completion notification", "notification_failed",
			logging.Error(err),
		)
	}
}

// runPreflight logs every check result and fails the run when any required
// check did not pass.
func runPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "fix the reported dependency or directory before starting watch mode"),
		)
	}
	if preflight.Failed(results) {
		return errors.New("preflight checks failed; run 'slate preflight' for details")
	}
	return nil
}

// startMetricsServer exposes the Prometheus registry on bind when configured.
// The returned stop function drains the server; both return values are nil
// when no bind address is set.
func startMetricsServer(logger *slog.Logger, bind string) (func(), error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}

	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Handler: mux}

	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logging.WarnWithContext(logger, "metrics endpoint stopped unexpectedly", "metrics_serve_failed",
				logging.Error(serveErr),
				logging.String(logging.FieldImpact, "metrics are no longer exported"),
			)
		}
	}()

	logger.Info("metrics endpoint listening",
		logging.String(logging.FieldEventType, "metrics_started"),
		logging.String("address", listener.Addr().String()),
	)

	return func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}, nil
}

// ensureCurrentLogPointer keeps <log dir>/slate.log pointing at the current
// run's log file, falling back to a hard link on filesystems without symlink
// support.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "slate.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpeg := cfg.FFmpegBinary()
	ffprobe := cfg.FFprobeBinary()
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.Bool("ffprobe_available", binaryAvailable(ffprobe)),
		logging.String("ffprobe_binary", ffprobe),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("metrics_configured", strings.TrimSpace(cfg.Metrics.Bind) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
