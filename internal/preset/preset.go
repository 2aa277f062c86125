// Package preset loads per-library encode presets with safe defaults.
package preset

import (
	"fmt"
	"math"
	"regexp"
)

// ProcessingPreset describes the encode target for one job.
type ProcessingPreset struct {
	VideoCodec        string  `toml:"video_codec"`
	AudioCodec        string  `toml:"audio_codec"`
	Resolution        string  `toml:"resolution"`
	VideoBitRateKbps  int     `toml:"video_bitrate_kbps"`
	FramesPerSecond   float64 `toml:"frames_per_second"`
	AudioChannels     int     `toml:"audio_channels"`
	AudioSampleRateHz int     `toml:"audio_sample_rate_hz"`
}

// Default returns the preset used whenever no usable preset file exists:
// h264/aac at 1920x1080, 974 kbps video, 29.97 fps, stereo 48 kHz audio.
func Default() ProcessingPreset {
	return ProcessingPreset{
		VideoCodec:        "h264",
		AudioCodec:        "aac",
		Resolution:        "1920x1080",
		VideoBitRateKbps:  974,
		FramesPerSecond:   29.97,
		AudioChannels:     2,
		AudioSampleRateHz: 48000,
	}
}

var resolutionPattern = regexp.MustCompile(`^[0-9]+x[0-9]+$`)

// Validate reports the first problem that would make the preset unusable
// for building encoder arguments.
func (p ProcessingPreset) Validate() error {
	if p.VideoCodec == "" {
		return fmt.Errorf("video_codec must not be empty")
	}
	if p.AudioCodec == "" {
		return fmt.Errorf("audio_codec must not be empty")
	}
	if !resolutionPattern.MatchString(p.Resolution) {
		return fmt.Errorf("resolution %q must match WIDTHxHEIGHT", p.Resolution)
	}
	if p.VideoBitRateKbps <= 0 {
		return fmt.Errorf("video_bitrate_kbps must be positive, got %d", p.VideoBitRateKbps)
	}
	if p.FramesPerSecond <= 0 || math.IsInf(p.FramesPerSecond, 0) || math.IsNaN(p.FramesPerSecond) {
		return fmt.Errorf("frames_per_second must be positive and finite, got %v", p.FramesPerSecond)
	}
	if p.AudioChannels <= 0 {
		return fmt.Errorf("audio_channels must be positive, got %d", p.AudioChannels)
	}
	if p.AudioSampleRateHz <= 0 {
		return fmt.Errorf("audio_sample_rate_hz must be positive, got %d", p.AudioSampleRateHz)
	}
	return nil
}
