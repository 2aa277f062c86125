package pipeline

import (
	"time"

	"slate/internal/media/analysis"
	"slate/internal/preset"
	"slate/internal/staging"
)

// ArtifactKind distinguishes deliverable types in a job result.
type ArtifactKind string

const (
	ArtifactVideo     ArtifactKind = "video"
	ArtifactThumbnail ArtifactKind = "thumbnail"
)

// Artifact is one deliverable file produced by a job. The pipeline owns the
// file until the result is handed to the caller; artifacts that never reach
// the caller are deleted before the job returns.
type Artifact struct {
	Path      string
	Name      string
	Kind      ArtifactKind
	SizeBytes int64

	// PartIndex and TotalParts are zero unless the encoded video was
	// split; when set, PartIndex is 1-based.
	PartIndex  int
	TotalParts int
}

// Result describes one completed job. Artifacts are ordered: video parts in
// ascending part order, then exactly one thumbnail.
type Result struct {
	JobID     string
	Source    string
	Metadata  analysis.VideoMetadata
	Preset    preset.ProcessingPreset
	Workspace staging.Workspace
	Artifacts []Artifact

	StageDurations map[string]time.Duration
	Elapsed        time.Duration
}

// VideoArtifacts returns the video deliverables in order.
func (r Result) VideoArtifacts() []Artifact {
	var out []Artifact
	for _, artifact := range r.Artifacts {
		if artifact.Kind == ArtifactVideo {
			out = append(out, artifact)
		}
	}
	return out
}

// Thumbnail returns the thumbnail deliverable.
func (r Result) Thumbnail() (Artifact, bool) {
	for _, artifact := range r.Artifacts {
		if artifact.Kind == ArtifactThumbnail {
			return artifact, true
		}
	}
	return Artifact{}, false
}
