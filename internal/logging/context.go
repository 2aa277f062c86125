package logging

import (
	"context"
	"log/slog"

	"slate/internal/services"
)

// Shared attribute keys. Every package logs under these names so records can
// be filtered uniformly.
const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldJobID identifies the pipeline job a record belongs to.
	FieldJobID = "job_id"
	// FieldStage names the pipeline stage in flight.
	FieldStage = "stage"
	// FieldCorrelationID ties together records from one external request.
	FieldCorrelationID = "correlation_id"
	// FieldEventType categorizes log lines for machine filtering (e.g. job_completed).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator-facing next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact carries the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldProgressStage names the tool phase a progress line belongs to.
	FieldProgressStage = "progress_stage"
	// FieldProgressPercent carries 0-100 progress readings.
	FieldProgressPercent = "progress_percent"
)

// ContextFields reads job ID, stage, and correlation ID out of ctx and
// returns them as slog attributes under the shared field names.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the
// supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
