// Package stage describes shared behavior of pipeline components.
package stage

import (
	"context"
	"log/slog"
)

// Health summarizes the readiness of one pipeline component.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports name as ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports name as not ready, with detail explaining why.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Reporter is implemented by components that can describe their readiness
// before any job runs.
type Reporter interface {
	HealthCheck(ctx context.Context) Health
}

// LoggerAware is implemented by components that accept a job-scoped logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
