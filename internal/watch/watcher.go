// Package watch ingests video files dropped into the inbox directory.
//
// Files are picked up from fsnotify create/write events and debounced with a
// per-file settle timer, so a file still being copied in only dispatches once
// its writes go quiet. Dispatches run the handler on a bounded number of
// goroutines; everything else about a job belongs to the handler.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	"slate/internal/config"
	"slate/internal/logging"
	"slate/internal/services"
)

// Handler processes one settled inbox file. It is invoked on its own
// goroutine and must honor ctx cancellation.
type Handler func(ctx context.Context, path string)

// Watcher turns inbox filesystem events into handler invocations.
type Watcher struct {
	cfg        *config.Config
	logger     *slog.Logger
	handler    Handler
	extensions []string
	settle     time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer

	slots chan struct{}
	jobs  sync.WaitGroup
}

// New constructs a Watcher over the configured inbox directory.
func New(cfg *config.Config, logger *slog.Logger, handler Handler) (*Watcher, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "watch", "check config", "configuration is required", nil)
	}
	if handler == nil {
		return nil, services.Wrap(services.ErrConfiguration, "watch", "check handler", "handler is required", nil)
	}
	if strings.TrimSpace(cfg.Paths.InboxDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "watch", "resolve inbox", "inbox directory not configured; set inbox_dir", nil)
	}

	settle := cfg.SettleWindow()
	if settle <= 0 {
		settle = time.Second
	}
	maxConcurrent := cfg.Watch.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	extensions := make([]string, 0, len(cfg.Watch.Extensions))
	for _, ext := range cfg.Watch.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions = append(extensions, ext)
	}

	w := &Watcher{
		cfg:        cfg,
		handler:    handler,
		extensions: extensions,
		settle:     settle,
		timers:     make(map[string]*time.Timer),
		slots:      make(chan struct{}, maxConcurrent),
	}
	w.SetLogger(logger)
	return w, nil
}

// SetLogger updates the watcher's logging destination while preserving
// component labeling.
func (w *Watcher) SetLogger(logger *slog.Logger) {
	w.logger = logging.NewComponentLogger(logger, "watcher")
}

// Run watches the inbox until ctx ends, then waits for in-flight jobs to
// finish. The error return covers watcher setup only; per-file failures are
// the handler's concern.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "watch", "create watcher", "failed to initialize filesystem watcher", err)
	}
	defer fsWatcher.Close()

	inbox := w.cfg.Paths.InboxDir
	if err := fsWatcher.Add(inbox); err != nil {
		return services.Wrap(services.ErrConfiguration, "watch", "watch inbox",
			"failed to watch inbox directory; verify inbox_dir exists", err)
	}

	w.logger.Info("watching inbox",
		logging.String(logging.FieldEventType, "watch_started"),
		logging.String("inbox_dir", inbox),
		logging.String("extensions", strings.Join(w.extensions, ",")),
		logging.Duration("settle_window", w.settle),
		logging.Int("max_concurrent", cap(w.slots)),
	)

	if w.cfg.Watch.ScanOnStart {
		w.rescan(ctx, inbox)
	}

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				w.shutdown()
				return nil
			}
			w.handleEvent(ctx, event)
		case watchErr, ok := <-fsWatcher.Errors:
			if !ok {
				w.shutdown()
				return nil
			}
			logging.WarnWithContext(w.logger, "inbox watcher error", "watch_error",
				logging.Error(watchErr),
				logging.String(logging.FieldErrorHint, "check inbox filesystem health"),
				logging.String(logging.FieldImpact, "some inbox events may have been missed"),
			)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		if !w.accepts(event.Name) {
			return
		}
		w.logger.Debug("inbox activity", logging.String("path", event.Name), logging.String("op", event.Op.String()))
		w.scheduleSettle(ctx, event.Name)
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.cancelSettle(event.Name)
	}
}

// accepts reports whether the path carries one of the watched extensions.
func (w *Watcher) accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, allowed := range w.extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// scheduleSettle arms (or re-arms) the per-file settle timer. Each write
// burst pushes the dispatch out by one settle window.
func (w *Watcher) scheduleSettle(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.timers[path]; exists {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.dispatch(ctx, path)
	})
}

func (w *Watcher) cancelSettle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, exists := w.timers[path]; exists {
		timer.Stop()
		delete(w.timers, path)
	}
}

// dispatch hands a settled file to the handler once a concurrency slot is
// free. Files that vanished or stayed empty during the settle window are
// skipped.
func (w *Watcher) dispatch(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		w.logger.Debug("skipping vanished inbox entry", logging.String("path", path))
		return
	}
	if info.Size() == 0 {
		logging.WarnWithContext(w.logger, "skipping empty inbox file", "empty_file_skipped",
			logging.String("path", path),
			logging.String(logging.FieldErrorHint, "verify the upload completed"),
			logging.String(logging.FieldImpact, "file will not be processed until written again"),
		)
		return
	}

	select {
	case w.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}

	w.logger.Info("inbox file settled",
		logging.String(logging.FieldEventType, "file_settled"),
		logging.String("path", path),
		logging.Int64("size_bytes", info.Size()),
	)

	w.jobs.Add(1)
	go func() {
		defer w.jobs.Done()
		defer func() { <-w.slots }()
		w.handler(ctx, path)
	}()
}

// rescan schedules settle timers for files already sitting in the inbox so a
// restart does not strand earlier drops.
func (w *Watcher) rescan(ctx context.Context, inbox string) {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		logging.WarnWithContext(w.logger, "inbox rescan failed", "rescan_failed",
			logging.String("inbox_dir", inbox),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check inbox_dir permissions"),
			logging.String(logging.FieldImpact, "files already in the inbox will not be processed"),
		)
		return
	}

	found := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(inbox, entry.Name())
		if !w.accepts(path) {
			continue
		}
		found++
		w.scheduleSettle(ctx, path)
	}
	if found > 0 {
		w.logger.Info("queued existing inbox files",
			logging.String(logging.FieldEventType, "rescan_complete"),
			logging.Int("files", found),
		)
	}
}

// shutdown stops pending settle timers and waits for running jobs.
func (w *Watcher) shutdown() {
	w.mu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.jobs.Wait()
	w.logger.Info("inbox watcher stopped", logging.String(logging.FieldEventType, "watch_stopped"))
}
