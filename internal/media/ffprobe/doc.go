// Package ffprobe shells out to ffprobe and decodes its JSON report into
// typed Go structs.
//
// Inspect runs the binary against a single media file and returns a Result
// holding the stream list and container-level Format block. Accessor methods
// on Result answer the questions the pipeline actually asks: first video or
// audio stream, stream counts, duration, size, and bitrate, with malformed
// numeric fields normalized rather than surfaced as errors.
//
// Nothing here imports the rest of the repository, so the package can be
// reused anywhere a parsed ffprobe view is useful.
package ffprobe
