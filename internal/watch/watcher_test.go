package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"slate/internal/logging"
	"slate/internal/testsupport"
)

type recordingHandler struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingHandler) handle(ctx context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recordingHandler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func (r *recordingHandler) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func TestNewRequiresHandler(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, logging.NewNop(), nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestNewRequiresInboxDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.InboxDir = ""
	if _, err := New(cfg, logging.NewNop(), func(context.Context, string) {}); err == nil {
		t.Fatal("expected error for missing inbox dir")
	}
}

func TestWatcherDebouncesWriteBursts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Watch.ScanOnStart = false
	if err := os.MkdirAll(cfg.Paths.InboxDir, 0o755); err != nil {
		t.Fatalf("mkdir inbox: %v", err)
	}

	handler := &recordingHandler{}
	w, err := New(cfg, logging.NewNop(), handler.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.settle = 100 * time.Millisecond

	startWatcher(t, w)
	// Give the fsnotify watch a moment to attach before generating events.
	time.Sleep(50 * time.Millisecond)

	target := filepath.Join(cfg.Paths.InboxDir, "burst.mp4")
	for i := 0; i < 4; i++ {
		if err := os.WriteFile(target, []byte("chunk chunk chunk"), 0o644); err != nil {
			t.Fatalf("write burst %d: %v", i, err)
		}
		time.Sleep(30 * time.Millisecond)
	}

	if !waitFor(t, 3*time.Second, func() bool { return handler.count() == 1 }) {
		t.Fatalf("expected exactly one dispatch, got %d", handler.count())
	}
	// A second dispatch would arrive within another settle window.
	time.Sleep(300 * time.Millisecond)
	if got := handler.count(); got != 1 {
		t.Fatalf("burst dispatched %d times, want 1", got)
	}
	if handler.last() != target {
		t.Fatalf("dispatched %q, want %q", handler.last(), target)
	}
}

func TestWatcherIgnoresUnwatchedExtensions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Watch.ScanOnStart = false
	if err := os.MkdirAll(cfg.Paths.InboxDir, 0o755); err != nil {
		t.Fatalf("mkdir inbox: %v", err)
	}

	handler := &recordingHandler{}
	w, err := New(cfg, logging.NewNop(), handler.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.settle = 50 * time.Millisecond

	startWatcher(t, w)
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(cfg.Paths.InboxDir, "notes.txt"), []byte("not a video"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if got := handler.count(); got != 0 {
		t.Fatalf("expected no dispatches for .txt, got %d", got)
	}
}

func TestWatcherSkipsEmptyFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Watch.ScanOnStart = false
	if err := os.MkdirAll(cfg.Paths.InboxDir, 0o755); err != nil {
		t.Fatalf("mkdir inbox: %v", err)
	}

	handler := &recordingHandler{}
	w, err := New(cfg, logging.NewNop(), handler.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.settle = 50 * time.Millisecond

	startWatcher(t, w)
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(cfg.Paths.InboxDir, "empty.mp4"), nil, 0o644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if got := handler.count(); got != 0 {
		t.Fatalf("expected no dispatches for empty file, got %d", got)
	}
}

func TestWatcherScanOnStartQueuesExistingFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Watch.ScanOnStart = true
	if err := os.MkdirAll(cfg.Paths.InboxDir, 0o755); err != nil {
		t.Fatalf("mkdir inbox: %v", err)
	}

	existing := filepath.Join(cfg.Paths.InboxDir, "earlier.mkv")
	if err := os.WriteFile(existing, []byte("dropped before startup"), 0o644); err != nil {
		t.Fatalf("write existing file: %v", err)
	}

	handler := &recordingHandler{}
	w, err := New(cfg, logging.NewNop(), handler.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.settle = 50 * time.Millisecond

	startWatcher(t, w)

	if !waitFor(t, 3*time.Second, func() bool { return handler.count() == 1 }) {
		t.Fatalf("expected rescan dispatch, got %d", handler.count())
	}
	if handler.last() != existing {
		t.Fatalf("dispatched %q, want %q", handler.last(), existing)
	}
}

func TestWatcherStopsCleanly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Watch.ScanOnStart = false
	if err := os.MkdirAll(cfg.Paths.InboxDir, 0o755); err != nil {
		t.Fatalf("mkdir inbox: %v", err)
	}

	w, err := New(cfg, logging.NewNop(), func(context.Context, string) {})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestAcceptsNormalizesExtensions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Watch.Extensions = []string{"MP4", ".MKV"}

	w, err := New(cfg, logging.NewNop(), func(context.Context, string) {})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		path string
		want bool
	}{
		{"/inbox/movie.mp4", true},
		{"/inbox/MOVIE.MP4", true},
		{"/inbox/show.mkv", true},
		{"/inbox/clip.mov", false},
		{"/inbox/noext", false},
	}
	for _, tc := range cases {
		if got := w.accepts(tc.path); got != tc.want {
			t.Errorf("accepts(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
