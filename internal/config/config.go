package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	InboxDir   string `toml:"inbox_dir"`
	StagingDir string `toml:"staging_dir"`
	LibraryDir string `toml:"library_dir"`
	ReviewDir  string `toml:"review_dir"`
	LogDir     string `toml:"log_dir"`
}

// Pipeline contains the knobs consumed by the processing pipeline itself.
type Pipeline struct {
	PresetPath                string  `toml:"preset_path"`
	MaxPartSizeMB             int     `toml:"max_part_size_mb"`
	ThumbnailTimestampSeconds float64 `toml:"thumbnail_timestamp_seconds"`
	WorkspaceRetentionHours   int     `toml:"workspace_retention_hours"`
}

// Tools contains external tool binaries and per-invocation timeouts (seconds).
type Tools struct {
	FFmpegBinary            string `toml:"ffmpeg_binary"`
	FFprobeBinary           string `toml:"ffprobe_binary"`
	ProbeTimeoutSeconds     int    `toml:"probe_timeout_seconds"`
	TranscodeTimeoutSeconds int    `toml:"transcode_timeout_seconds"`
	ThumbnailTimeoutSeconds int    `toml:"thumbnail_timeout_seconds"`
	SegmentTimeoutSeconds   int    `toml:"segment_timeout_seconds"`
}

// Watch contains configuration for the inbox watcher.
type Watch struct {
	Extensions    []string `toml:"extensions"`
	SettleSeconds int      `toml:"settle_seconds"`
	MaxConcurrent int      `toml:"max_concurrent"`
	ScanOnStart   bool     `toml:"scan_on_start"`
}

// Logging selects log format, verbosity, and retention.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics contains configuration for the optional Prometheus endpoint.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Notifications carries the ntfy publishing settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	NtfyServer     string `toml:"ntfy_server"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for slate, one section per
// subsystem:
//
//   - Paths: inbox, staging, library, review, and log directories
//   - Pipeline: preset location, split ceiling, thumbnail timestamp
//   - Tools: ffmpeg/ffprobe binaries and invocation timeouts
//   - Watch: inbox watcher extensions, debounce, and concurrency
//   - Logging: output format, verbosity, retention window
//   - Metrics: optional Prometheus bind address
//   - Notifications: ntfy server, topic, and request timeout
type Config struct {
	Paths         Paths         `toml:"paths"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Tools         Tools         `toml:"tools"`
	Watch         Watch         `toml:"watch"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath reports where slate looks for its config file by default.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/slate/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. When no file exists at
// the resolved location, built-in defaults are used and exists reports false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		raw, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// resolveConfigPath decides which file Load should read. An explicit path
// wins even when absent; otherwise the XDG location and ./slate.toml are
// tried in that order.
func resolveConfigPath(path string) (string, bool, error) {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		expanded, err := expandPath(trimmed)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}
	return defaultConfigLocation()
}

func defaultConfigLocation() (string, bool, error) {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("slate.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if isRegularFile(candidate) {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureDirectories creates the directories required for pipeline operation.
// LibraryDir is created on a best-effort basis so one-shot commands can run
// when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	required := []string{c.Paths.InboxDir, c.Paths.StagingDir, c.Paths.LogDir, c.Paths.ReviewDir}
	for _, dir := range required {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	// The library may live on a network mount that is offline right now.
	if library := strings.TrimSpace(c.Paths.LibraryDir); library != "" {
		_ = os.MkdirAll(library, 0o755)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name or path.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.Tools.FFmpegBinary); v != "" {
		return v
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name or path.
func (c *Config) FFprobeBinary() string {
	if v := strings.TrimSpace(c.Tools.FFprobeBinary); v != "" {
		return v
	}
	return defaultFFprobeBinary
}

// ProbeTimeout bounds a single ffprobe invocation.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Tools.ProbeTimeoutSeconds) * time.Second
}

// TranscodeTimeout bounds a single encode invocation.
func (c *Config) TranscodeTimeout() time.Duration {
	return time.Duration(c.Tools.TranscodeTimeoutSeconds) * time.Second
}

// ThumbnailTimeout bounds a single frame capture invocation.
func (c *Config) ThumbnailTimeout() time.Duration {
	return time.Duration(c.Tools.ThumbnailTimeoutSeconds) * time.Second
}

// SegmentTimeout bounds a single stream-copy cut invocation.
func (c *Config) SegmentTimeout() time.Duration {
	return time.Duration(c.Tools.SegmentTimeoutSeconds) * time.Second
}

// SettleWindow is the quiet period the watcher waits after the last write
// event before treating an inbox file as complete.
func (c *Config) SettleWindow() time.Duration {
	return time.Duration(c.Watch.SettleSeconds) * time.Second
}

// WorkspaceRetention is the age beyond which abandoned staging workspaces are
// swept.
func (c *Config) WorkspaceRetention() time.Duration {
	return time.Duration(c.Pipeline.WorkspaceRetentionHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		expanded, err := expandHome(pathValue)
		if err != nil {
			return "", err
		}
		pathValue = expanded
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// expandHome rewrites a leading ~ to the current user's home directory. A
// name like ~other is passed through untouched.
func expandHome(pathValue string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if pathValue == "~" {
		return home, nil
	}
	if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
		return filepath.Join(home, pathValue[2:]), nil
	}
	return pathValue, nil
}

// ExpandPath applies the same tilde and absolute-path expansion Load uses, so
// other packages resolve user-supplied paths identically.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the annotated sample config to path, creating parent
// directories as needed.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
