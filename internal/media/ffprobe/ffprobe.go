package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result is the decoded ffprobe report for one media file.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream holds the per-stream fields slate reads. Numeric values arrive as
// strings in ffprobe JSON and stay strings here.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// Format mirrors the container-level block of the ffprobe report.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response. Stderr is captured separately so tool warnings cannot corrupt
// the payload.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, detail)
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), stdout.Bytes()...)
	return result, nil
}

// RawJSON returns a copy of the ffprobe output exactly as received, for
// callers that archive it alongside other artifacts.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

func (r Result) firstStream(kind string) (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			return stream, true
		}
	}
	return Stream{}, false
}

func (r Result) countStreams(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// FirstVideoStream returns the first video stream, if any.
func (r Result) FirstVideoStream() (Stream, bool) { return r.firstStream("video") }

// FirstAudioStream returns the first audio stream, if any.
func (r Result) FirstAudioStream() (Stream, bool) { return r.firstStream("audio") }

// VideoStreamCount reports how many video streams the container carries.
func (r Result) VideoStreamCount() int { return r.countStreams("video") }

// AudioStreamCount reports how many audio streams the container carries.
func (r Result) AudioStreamCount() int { return r.countStreams("audio") }

// DurationSeconds returns the container duration in seconds, or 0 when
// unavailable. An unparseable duration reports NaN.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes is the container size in bytes; missing or malformed values
// read as 0.
func (r Result) SizeBytes() int64 {
	return nonNegativeInt64(r.Format.Size)
}

// BitRate is the container bitrate in bits per second; missing or malformed
// values read as 0.
func (r Result) BitRate() int64 {
	return nonNegativeInt64(r.Format.BitRate)
}

// FrameRate returns the stream's frame-rate rational, preferring the nominal
// rate and falling back to the average when ffprobe reports 0/0.
func (s Stream) FrameRate() string {
	if rate := strings.TrimSpace(s.RFrameRate); rate != "" && rate != "0/0" {
		return rate
	}
	return strings.TrimSpace(s.AvgFrameRate)
}

// SampleRateHz returns the audio sample rate as an integer, or 0 when unavailable.
func (s Stream) SampleRateHz() int {
	return int(nonNegativeInt64(s.SampleRate))
}

func parseFloat(value string) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return math.NaN()
	}
	return parsed
}

func nonNegativeInt64(value string) int64 {
	parsed := parseFloat(value)
	if math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return int64(parsed)
}
