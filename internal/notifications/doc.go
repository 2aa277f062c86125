// Package notifications pushes job lifecycle events to ntfy.
//
// NewService reads the configured topic and returns either a live ntfy
// publisher or a silent no-op when the topic is empty, so callers never
// branch on whether notifications are enabled. The Service interface names
// each milestone the watcher reports: watch started and stopped, a job
// finishing, a job failing, plus a test ping for verifying delivery.
//
// Alternative transports slot in behind the same interface; nothing outside
// this package talks to ntfy directly.
package notifications
