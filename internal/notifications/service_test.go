package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"slate/internal/config"
	"slate/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobCompleted(context.Background(), "/inbox/example.mp4", 1, time.Minute); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop test notification to return nil, got %v", err)
	}
}

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, captured *[]capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		*captured = append(*captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
}

func newTestService(server *httptest.Server) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyServer = server.URL
	cfg.Notifications.NtfyTopic = "slate-test"
	cfg.Notifications.RequestTimeout = 5
	return notifications.NewService(&cfg)
}

func TestNtfyServiceFormatsJobEvents(t *testing.T) {
	var captured []capturedRequest
	server := newCaptureServer(t, &captured)
	defer server.Close()

	svc := newTestService(server)
	ctx := context.Background()

	if err := svc.NotifyWatchStarted(ctx, "/srv/inbox"); err != nil {
		t.Fatalf("NotifyWatchStarted: %v", err)
	}
	if err := svc.NotifyJobCompleted(ctx, "/srv/inbox/talk.mp4", 3, 95*time.Second); err != nil {
		t.Fatalf("NotifyJobCompleted: %v", err)
	}
	if err := svc.NotifyJobFailed(ctx, "/srv/inbox/talk.mp4", "transcode", errors.New("encoder exited 1")); err != nil {
		t.Fatalf("NotifyJobFailed: %v", err)
	}
	if err := svc.NotifyWatchStopped(ctx, 4, 1, 3*time.Hour); err != nil {
		t.Fatalf("NotifyWatchStopped: %v", err)
	}

	if len(captured) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(captured))
	}

	started := captured[0]
	if started.title != "Slate - Watching" {
		t.Fatalf("unexpected watch started title %q", started.title)
	}
	if !strings.Contains(started.body, "/srv/inbox") {
		t.Fatalf("watch started message missing inbox dir: %q", started.body)
	}

	completed := captured[1]
	if completed.title != "Slate - Complete" {
		t.Fatalf("unexpected completion title %q", completed.title)
	}
	if !strings.Contains(completed.body, "talk.mp4") || !strings.Contains(completed.body, "3 video parts") {
		t.Fatalf("unexpected completion message %q", completed.body)
	}
	if completed.tags != "slate,job,completed" {
		t.Fatalf("unexpected completion tags %q", completed.tags)
	}

	failed := captured[2]
	if failed.priority != "high" {
		t.Fatalf("expected high priority failure, got %q", failed.priority)
	}
	if !strings.Contains(failed.body, "transcode") || !strings.Contains(failed.body, "encoder exited 1") {
		t.Fatalf("unexpected failure message %q", failed.body)
	}

	stopped := captured[3]
	if stopped.title != "Slate - Stopped (with errors)" {
		t.Fatalf("unexpected stop title %q", stopped.title)
	}
	if !strings.Contains(stopped.body, "4 succeeded, 1 failed") {
		t.Fatalf("unexpected stop message %q", stopped.body)
	}
}

func TestNtfyServiceSingleVideoMessage(t *testing.T) {
	var captured []capturedRequest
	server := newCaptureServer(t, &captured)
	defer server.Close()

	svc := newTestService(server)
	if err := svc.NotifyJobCompleted(context.Background(), "clip.mov", 1, 10*time.Second); err != nil {
		t.Fatalf("NotifyJobCompleted: %v", err)
	}

	if len(captured) != 1 {
		t.Fatalf("expected 1 request, got %d", len(captured))
	}
	if !strings.Contains(captured[0].body, "1 video") || strings.Contains(captured[0].body, "parts") {
		t.Fatalf("expected singular video message, got %q", captured[0].body)
	}
}

func TestNtfyServiceReportsHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	defer server.Close()

	svc := newTestService(server)
	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic rejected") {
		t.Fatalf("expected status detail in error, got %v", err)
	}
}

func TestNtfyServiceEndpointJoinsServerAndTopic(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyServer = server.URL + "/"
	cfg.Notifications.NtfyTopic = "jobs"
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if path != "/jobs" {
		t.Fatalf("expected request against /jobs, got %q", path)
	}
}
