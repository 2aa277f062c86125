package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"slate/internal/config"
)

const userAgent = "slate/0.1.0"

// Service defines the notification surface exposed to the pipeline runtime.
type Service interface {
	NotifyWatchStarted(ctx context.Context, inboxDir string) error
	NotifyWatchStopped(ctx context.Context, processed, failed int, uptime time.Duration) error
	NotifyJobCompleted(ctx context.Context, source string, videoParts int, elapsed time.Duration) error
	NotifyJobFailed(ctx context.Context, source, stageName string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService returns an ntfy-backed Service when a topic is configured and a
// silent no-op otherwise, so callers need not guard their notify calls.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: ntfyEndpoint(cfg.Notifications.NtfyServer, topic),
		client:   &http.Client{Timeout: timeout},
	}
}

// ntfyEndpoint joins the server base URL and topic, defaulting to the public
// ntfy.sh instance when no server is configured.
func ntfyEndpoint(server, topic string) string {
	server = strings.TrimSpace(server)
	if server == "" {
		server = "https://ntfy.sh"
	}
	return strings.TrimRight(server, "/") + "/" + topic
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// apply sets the ntfy publish headers this payload carries.
func (p payload) apply(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if p.title != "" {
		req.Header.Set("Title", p.title)
	}
	if len(p.tags) > 0 {
		req.Header.Set("Tags", strings.Join(p.tags, ","))
	}
	if p.priority != "" && p.priority != "default" {
		req.Header.Set("Priority", p.priority)
	}
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyWatchStarted(ctx context.Context, inboxDir string) error {
	return n.send(ctx, payload{
		title:   "Slate - Watching",
		message: fmt.Sprintf("Watching %s for new videos", strings.TrimSpace(inboxDir)),
		tags:    []string{"slate", "watch", "started"},
	})
}

func (n *ntfyService) NotifyWatchStopped(ctx context.Context, processed, failed int, uptime time.Duration) error {
	uptime = uptime.Round(time.Second)
	if uptime < 0 {
		uptime = 0
	}

	data := payload{tags: []string{"slate", "watch", "stopped"}}
	if failed == 0 {
		data.title = "Slate - Stopped"
		data.message = fmt.Sprintf("Watch stopped: %d jobs processed in %s", processed, uptime)
	} else {
		data.title = "Slate - Stopped (with errors)"
		data.message = fmt.Sprintf("Watch stopped: %d succeeded, %d failed in %s", processed, failed, uptime)
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, source string, videoParts int, elapsed time.Duration) error {
	name := filepath.Base(strings.TrimSpace(source))
	partText := "1 video"
	if videoParts > 1 {
		partText = fmt.Sprintf("%d video parts", videoParts)
	}
	return n.send(ctx, payload{
		title:   "Slate - Complete",
		message: fmt.Sprintf("✅ %s ready: %s + thumbnail in %s", name, partText, elapsed.Round(time.Second)),
		tags:    []string{"slate", "job", "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, source, stageName string, err error) error {
	name := filepath.Base(strings.TrimSpace(source))
	message := "❌ " + name + " failed"
	if stage := strings.TrimSpace(stageName); stage != "" {
		message += " during " + stage
	}
	message += ": " + errorText(err)

	return n.send(ctx, payload{
		title:    "Slate - Failed",
		message:  message,
		tags:     []string{"slate", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Slate - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"slate", "test"},
		priority: "low",
	})
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return strings.TrimSpace(err.Error())
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	data.apply(req)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	return drainResponse(resp)
}

func drainResponse(resp *http.Response) error {
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyWatchStarted(context.Context, string) error                     { return nil }
func (noopService) NotifyWatchStopped(context.Context, int, int, time.Duration) error    { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, int, time.Duration) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string, error) error         { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
