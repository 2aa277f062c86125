package preset

import (
	"context"
	"log/slog"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"slate/internal/logging"
)

// Resolver reads preset files from disk. It never fails: any read, parse,
// or validation problem is logged and answered with Default().
type Resolver struct {
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logging.NewComponentLogger(logger, "preset")}
}

// Resolve returns the preset stored at path. Fields absent from the file
// keep their default values. An empty path selects the defaults silently;
// every other fallback is logged as a warning.
func (r *Resolver) Resolve(ctx context.Context, path string) ProcessingPreset {
	logger := logging.WithContext(ctx, r.logger)

	if strings.TrimSpace(path) == "" {
		logger.Debug("no preset file configured, using defaults")
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logging.WarnWithContext(logger, "preset file unreadable, using defaults", "preset_fallback",
			logging.String("preset_path", path),
			logging.Error(err))
		return Default()
	}

	resolved := Default()
	if err := toml.Unmarshal(data, &resolved); err != nil {
		logging.WarnWithContext(logger, "preset file malformed, using defaults", "preset_fallback",
			logging.String("preset_path", path),
			logging.Error(err))
		return Default()
	}

	if err := resolved.Validate(); err != nil {
		logging.WarnWithContext(logger, "preset file invalid, using defaults", "preset_fallback",
			logging.String("preset_path", path),
			logging.Error(err))
		return Default()
	}

	logger.Debug("preset resolved",
		logging.String("preset_path", path),
		logging.String("video_codec", resolved.VideoCodec),
		logging.String("resolution", resolved.Resolution),
		logging.Int("video_bitrate_kbps", resolved.VideoBitRateKbps))
	return resolved
}
