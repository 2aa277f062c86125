package ffmpeg

import (
	"strconv"
	"strings"
)

// ProgressUpdate captures one completed progress block from a running encode.
type ProgressUpdate struct {
	Percent        float64
	OutTimeSeconds float64
	Frame          int64
	FPS            float64
	Speed          float64
	Bitrate        string
	Done           bool
}

// progressParser folds the key=value stream ffmpeg writes for
// `-progress pipe:1` into ProgressUpdate values. ffmpeg terminates each
// block with a `progress=` line, which is when one update is released.
type progressParser struct {
	totalSeconds float64
	pending      ProgressUpdate
}

func newProgressParser(totalSeconds float64) *progressParser {
	return &progressParser{totalSeconds: totalSeconds}
}

// Consume feeds one line from the progress stream. It returns a completed
// update and true when the line finishes a block.
func (p *progressParser) Consume(line string) (ProgressUpdate, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return ProgressUpdate{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.pending.Frame = parsed
		}
	case "fps":
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			p.pending.FPS = parsed
		}
	case "bitrate":
		p.pending.Bitrate = value
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds; out_time_ms is misnamed upstream.
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed >= 0 {
			p.pending.OutTimeSeconds = float64(parsed) / 1e6
		}
	case "speed":
		trimmed := strings.TrimSuffix(value, "x")
		if parsed, err := strconv.ParseFloat(trimmed, 64); err == nil {
			p.pending.Speed = parsed
		}
	case "progress":
		update := p.pending
		update.Done = value == "end"
		update.Percent = p.percent(update)
		p.pending = ProgressUpdate{}
		return update, true
	}
	return ProgressUpdate{}, false
}

func (p *progressParser) percent(update ProgressUpdate) float64 {
	if update.Done {
		return 100
	}
	if p.totalSeconds <= 0 {
		return 0
	}
	percent := update.OutTimeSeconds / p.totalSeconds * 100
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
