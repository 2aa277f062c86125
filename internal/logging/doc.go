// Package logging builds the slog loggers every component shares.
//
// New wires level, format (console or json), and sink selection from
// configuration into a single *slog.Logger. Context helpers stamp job IDs,
// stage names, and correlation IDs onto records without each call site
// repeating them, and attribute constructors keep field names consistent
// across packages. NewNop returns a discard logger for tests and for wiring
// paths that must not fail.
//
// Construct loggers through this package instead of calling slog directly;
// otherwise console formatting and the standard field set drift apart.
package logging
