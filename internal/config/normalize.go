package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizePipeline(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeWatch()
	c.normalizeLogging()
	c.normalizeMetrics()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.inbox_dir", &c.Paths.InboxDir},
		{"paths.staging_dir", &c.Paths.StagingDir},
		{"paths.library_dir", &c.Paths.LibraryDir},
		{"paths.review_dir", &c.Paths.ReviewDir},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizePipeline() error {
	expanded, err := expandPath(fallbackIfEmpty(c.Pipeline.PresetPath, defaultPresetPath))
	if err != nil {
		return fmt.Errorf("pipeline.preset_path: %w", err)
	}
	c.Pipeline.PresetPath = expanded
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpegBinary = fallbackIfEmpty(c.Tools.FFmpegBinary, defaultFFmpegBinary)
	c.Tools.FFprobeBinary = fallbackIfEmpty(c.Tools.FFprobeBinary, defaultFFprobeBinary)
}

func (c *Config) normalizeWatch() {
	seen := make(map[string]struct{}, len(c.Watch.Extensions))
	cleaned := make([]string, 0, len(c.Watch.Extensions))
	for _, raw := range c.Watch.Extensions {
		ext := normalizeExtension(raw)
		if ext == "" {
			continue
		}
		if _, dup := seen[ext]; dup {
			continue
		}
		seen[ext] = struct{}{}
		cleaned = append(cleaned, ext)
	}
	if len(cleaned) == 0 {
		cleaned = defaultWatchExtensions()
	}
	c.Watch.Extensions = cleaned
}

// normalizeExtension lowercases an extension and guarantees a leading dot.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(fallbackIfEmpty(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(fallbackIfEmpty(c.Logging.Level, defaultLogLevel))
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	server := strings.TrimRight(strings.TrimSpace(c.Notifications.NtfyServer), "/")
	if server == "" {
		server = defaultNtfyServer
	}
	c.Notifications.NtfyServer = server
}

func fallbackIfEmpty(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
