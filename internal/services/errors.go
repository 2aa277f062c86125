package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAnalysis      = errors.New("analysis error")
	ErrTranscode     = errors.New("transcode error")
	ErrThumbnail     = errors.New("thumbnail error")
	ErrSplit         = errors.New("split error")
	ErrDelivery      = errors.New("delivery error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// stageForMarker pairs each sentinel with the stage label recorded in logs
// and metrics. Order matters: more specific markers come first.
var stageForMarker = []struct {
	marker error
	stage  string
}{
	{ErrAnalysis, "analysis"},
	{ErrTranscode, "transcode"},
	{ErrThumbnail, "thumbnail"},
	{ErrSplit, "split"},
	{ErrDelivery, "delivery"},
	{ErrConfiguration, "configuration"},
	{ErrValidation, "validation"},
}

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above; nil defaults to ErrValidation.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailedStage maps a pipeline error to its stage label. Errors without a
// known marker map to "pipeline".
func FailedStage(err error) string {
	for _, entry := range stageForMarker {
		if errors.Is(err, entry.marker) {
			return entry.stage
		}
	}
	return "pipeline"
}

func buildDetail(stage, operation, message string) string {
	var parts []string
	for _, part := range []string{stage, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
