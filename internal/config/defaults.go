package config

const (
	defaultInboxDir   = "~/.local/share/slate/inbox"
	defaultStagingDir = "~/.local/share/slate/staging"
	defaultLibraryDir = "~/library"
	defaultReviewDir  = "~/review"
	defaultLogDir     = "~/.local/share/slate/logs"

	defaultPresetPath              = "~/.config/slate/preset.toml"
	defaultMaxPartSizeMB           = 98
	defaultThumbnailTimestamp      = 10.0
	defaultWorkspaceRetentionHours = 24

	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultProbeTimeout     = 60
	defaultTranscodeTimeout = 7200
	defaultThumbnailTimeout = 120
	defaultSegmentTimeout   = 600

	defaultSettleSeconds = 2
	defaultMaxConcurrent = 2

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60

	defaultNtfyServer     = "https://ntfy.sh"
	defaultNotifyTimeout  = 10
	defaultMetricsBindOff = ""
)

func defaultWatchExtensions() []string {
	return []string{".mp4", ".mkv", ".mov", ".avi", ".webm"}
}

// Default returns the baseline Config that Load starts from before applying
// any file on disk.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:   defaultInboxDir,
			StagingDir: defaultStagingDir,
			LibraryDir: defaultLibraryDir,
			ReviewDir:  defaultReviewDir,
			LogDir:     defaultLogDir,
		},
		Pipeline: Pipeline{
			PresetPath:                defaultPresetPath,
			MaxPartSizeMB:             defaultMaxPartSizeMB,
			ThumbnailTimestampSeconds: defaultThumbnailTimestamp,
			WorkspaceRetentionHours:   defaultWorkspaceRetentionHours,
		},
		Tools: Tools{
			FFmpegBinary:            defaultFFmpegBinary,
			FFprobeBinary:           defaultFFprobeBinary,
			ProbeTimeoutSeconds:     defaultProbeTimeout,
			TranscodeTimeoutSeconds: defaultTranscodeTimeout,
			ThumbnailTimeoutSeconds: defaultThumbnailTimeout,
			SegmentTimeoutSeconds:   defaultSegmentTimeout,
		},
		Watch: Watch{
			Extensions:    defaultWatchExtensions(),
			SettleSeconds: defaultSettleSeconds,
			MaxConcurrent: defaultMaxConcurrent,
			ScanOnStart:   true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBindOff,
		},
		Notifications: Notifications{
			NtfyServer:     defaultNtfyServer,
			RequestTimeout: defaultNotifyTimeout,
		},
	}
}
