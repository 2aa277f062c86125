package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EncodeRequest describes one full transcode of a media file.
type EncodeRequest struct {
	InputPath         string
	OutputPath        string
	VideoCodec        string
	Resolution        string
	VideoBitRateKbps  int
	FramesPerSecond   float64
	AudioCodec        string
	AudioChannels     int
	AudioSampleRateHz int
	// DurationSeconds is used only to turn out_time into a percentage.
	DurationSeconds float64
}

// Validate reports the first problem that would make the request unrunnable.
func (r EncodeRequest) Validate() error {
	if strings.TrimSpace(r.InputPath) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(r.OutputPath) == "" {
		return errors.New("output path required")
	}
	if r.VideoCodec == "" {
		return errors.New("video codec required")
	}
	if !strings.Contains(r.Resolution, "x") {
		return fmt.Errorf("resolution %q must be WIDTHxHEIGHT", r.Resolution)
	}
	if r.VideoBitRateKbps <= 0 {
		return fmt.Errorf("video bitrate must be positive, got %d", r.VideoBitRateKbps)
	}
	if r.FramesPerSecond <= 0 {
		return fmt.Errorf("frame rate must be positive, got %v", r.FramesPerSecond)
	}
	return nil
}

// BuildArgs renders the ffmpeg argument list for the encode. The speed
// preset, quality target, and faststart flag are fixed for every job.
func (r EncodeRequest) BuildArgs() []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", r.InputPath,
		"-c:v", videoEncoderFor(r.VideoCodec),
		"-vf", scaleFilter(r.Resolution),
		"-b:v", fmt.Sprintf("%dk", r.VideoBitRateKbps),
		"-r", formatSeconds(r.FramesPerSecond),
		"-preset", "medium",
		"-crf", "23",
	}
	if r.AudioCodec != "" {
		args = append(args, "-c:a", audioEncoderFor(r.AudioCodec))
		if r.AudioChannels > 0 {
			args = append(args, "-ac", strconv.Itoa(r.AudioChannels))
		}
		if r.AudioSampleRateHz > 0 {
			args = append(args, "-ar", strconv.Itoa(r.AudioSampleRateHz))
		}
	}
	args = append(args,
		"-movflags", "+faststart",
		"-progress", "pipe:1", "-nostats",
		r.OutputPath,
	)
	return args
}

// FrameRequest describes extraction of a single still image.
type FrameRequest struct {
	InputPath        string
	OutputPath       string
	TimestampSeconds float64
	Width            int
	Height           int
}

// Validate reports the first problem that would make the request unrunnable.
func (r FrameRequest) Validate() error {
	if strings.TrimSpace(r.InputPath) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(r.OutputPath) == "" {
		return errors.New("output path required")
	}
	if r.TimestampSeconds < 0 {
		return fmt.Errorf("timestamp must not be negative, got %v", r.TimestampSeconds)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("frame dimensions must be positive, got %dx%d", r.Width, r.Height)
	}
	return nil
}

// BuildArgs renders the ffmpeg argument list for the frame grab. Seeking
// happens before the input open so ffmpeg lands on the nearest keyframe
// quickly instead of decoding up to the timestamp.
func (r FrameRequest) BuildArgs() []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", formatSeconds(r.TimestampSeconds),
		"-i", r.InputPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", r.Width, r.Height),
		r.OutputPath,
	}
}

// SegmentRequest describes one stream-copy cut out of a longer file.
type SegmentRequest struct {
	InputPath       string
	OutputPath      string
	StartSeconds    float64
	DurationSeconds float64
}

// Validate reports the first problem that would make the request unrunnable.
func (r SegmentRequest) Validate() error {
	if strings.TrimSpace(r.InputPath) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(r.OutputPath) == "" {
		return errors.New("output path required")
	}
	if r.StartSeconds < 0 {
		return fmt.Errorf("start must not be negative, got %v", r.StartSeconds)
	}
	if r.DurationSeconds <= 0 {
		return fmt.Errorf("duration must be positive, got %v", r.DurationSeconds)
	}
	return nil
}

// BuildArgs renders the ffmpeg argument list for the cut. Stream copy snaps
// cut points to the nearest keyframes, so realized boundaries may drift a
// little from the requested ones.
func (r SegmentRequest) BuildArgs() []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", formatSeconds(r.StartSeconds),
		"-i", r.InputPath,
		"-t", formatSeconds(r.DurationSeconds),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		r.OutputPath,
	}
}

// videoEncoderFor maps a codec family name onto the encoder ffmpeg should
// use for it. Unknown names pass through so callers can request an encoder
// directly.
func videoEncoderFor(codec string) string {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "h264", "avc":
		return "libx264"
	case "h265", "hevc":
		return "libx265"
	case "vp9":
		return "libvpx-vp9"
	case "av1":
		return "libsvtav1"
	default:
		return strings.TrimSpace(codec)
	}
}

func audioEncoderFor(codec string) string {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "aac":
		return "aac"
	case "opus":
		return "libopus"
	case "mp3":
		return "libmp3lame"
	case "ac3":
		return "ac3"
	default:
		return strings.TrimSpace(codec)
	}
}

func scaleFilter(resolution string) string {
	return "scale=" + strings.Replace(resolution, "x", ":", 1)
}

// formatSeconds renders a float without trailing zero noise ("29.97", "10").
func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
