// Package segment sizes encoded files against the delivery ceiling and cuts
// oversized ones into stream-copied parts.
package segment

import (
	"fmt"
	"math"

	"slate/internal/services"
)

const bytesPerMB = 1024 * 1024

// Plan describes how one encoded file becomes delivery parts.
type Plan struct {
	SizeBytes            int64
	SizeMB               float64
	MaxPartSizeMB        int
	Parts                int
	PartDurationSeconds  float64
	TotalDurationSeconds float64
}

// NeedsSplit reports whether the file exceeds the ceiling.
func (p Plan) NeedsSplit() bool {
	return p.Parts > 1
}

// ComputePlan derives the part count and per-part duration for a file of
// sizeBytes lasting durationSeconds. Files at or under the ceiling stay
// whole. Each part covers an equal share of the timeline; stream copy will
// snap realized boundaries to keyframes.
func ComputePlan(sizeBytes int64, durationSeconds float64, maxPartSizeMB int) (Plan, error) {
	if maxPartSizeMB <= 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "split", "plan",
			fmt.Sprintf("max part size must be positive, got %d", maxPartSizeMB), nil)
	}
	if sizeBytes < 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "split", "plan",
			fmt.Sprintf("file size must not be negative, got %d", sizeBytes), nil)
	}

	plan := Plan{
		SizeBytes:            sizeBytes,
		SizeMB:               float64(sizeBytes) / bytesPerMB,
		MaxPartSizeMB:        maxPartSizeMB,
		TotalDurationSeconds: durationSeconds,
	}

	if plan.SizeMB <= float64(maxPartSizeMB) {
		plan.Parts = 1
		plan.PartDurationSeconds = durationSeconds
		return plan, nil
	}

	plan.Parts = int(math.Ceil(plan.SizeMB / float64(maxPartSizeMB)))
	if durationSeconds <= 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "split", "plan",
			"cannot size parts without a positive duration", nil)
	}
	plan.PartDurationSeconds = durationSeconds / float64(plan.Parts)
	return plan, nil
}
