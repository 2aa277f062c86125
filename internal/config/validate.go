package config

import (
	"errors"
	"fmt"
)

// Validate rejects configurations the pipeline cannot run with, reporting the
// first offending field.
func (c *Config) Validate() error {
	for _, validate := range []func() error{
		c.validatePipeline,
		c.validateTools,
		c.validateWatch,
		c.validateLogging,
		c.validateNotifications,
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxPartSizeMB <= 0 {
		return errors.New("pipeline.max_part_size_mb must be positive")
	}
	if c.Pipeline.ThumbnailTimestampSeconds < 0 {
		return errors.New("pipeline.thumbnail_timestamp_seconds must not be negative")
	}
	if c.Pipeline.WorkspaceRetentionHours < 0 {
		return errors.New("pipeline.workspace_retention_hours must not be negative")
	}
	return nil
}

func (c *Config) validateTools() error {
	timeouts := []struct {
		name  string
		value int
	}{
		{"tools.probe_timeout_seconds", c.Tools.ProbeTimeoutSeconds},
		{"tools.transcode_timeout_seconds", c.Tools.TranscodeTimeoutSeconds},
		{"tools.thumbnail_timeout_seconds", c.Tools.ThumbnailTimeoutSeconds},
		{"tools.segment_timeout_seconds", c.Tools.SegmentTimeoutSeconds},
	}
	for _, timeout := range timeouts {
		if timeout.value <= 0 {
			return fmt.Errorf("%s must be positive", timeout.name)
		}
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.SettleSeconds <= 0 {
		return errors.New("watch.settle_seconds must be positive")
	}
	if c.Watch.MaxConcurrent <= 0 {
		return errors.New("watch.max_concurrent must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive when ntfy_topic is set")
	}
	return nil
}
