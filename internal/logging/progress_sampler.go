package logging

import "strings"

// ProgressSampler rate-limits progress logging to bucket crossings so a long
// transcode emits a handful of lines instead of thousands.
type ProgressSampler struct {
	bucketSize float64
	stage      string
	bucket     int
}

// NewProgressSampler returns a sampler that emits once per bucketSize percent.
// Non-positive sizes fall back to 5%.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, bucket: -1}
}

// ShouldLog reports whether this update deserves a log line: the first update
// of a new stage always does, later ones only when percent crosses into a new
// bucket. Negative percent means unknown and never advances the bucket.
func (s *ProgressSampler) ShouldLog(stage string, percent float64) bool {
	if s == nil {
		return true
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage = stage
		s.bucket = -1
		emit = true
	}
	if percent < 0 {
		return emit
	}
	if percent > 100 {
		percent = 100
	}
	if next := int(percent / s.bucketSize); next > s.bucket {
		s.bucket = next
		emit = true
	}
	return emit
}

// Reset prepares the sampler for the next job.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.stage = ""
	s.bucket = -1
}
