// Package services carries the cross-cutting plumbing the pipeline stages
// share: context annotation and stage-classified errors.
//
// The context helpers attach job ID, stage name, and correlation ID to a
// context.Context so loggers and error reports can recover them anywhere
// downstream. The error side pairs sentinel markers (ErrAnalysis,
// ErrTranscode, and friends) with Wrap, which tags a failure with its stage
// and detail while keeping errors.Is classification intact across package
// boundaries.
//
// Stage implementations should route their failures through Wrap rather than
// formatting ad-hoc errors, so FailedStage can always name the stage that
// broke.
package services
