package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slate/internal/config"
	"slate/internal/logging"
	"slate/internal/media/analysis"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Inspect media metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			analyzer := analysis.NewAnalyzer(cfg, logging.NewNop())
			meta, err := analyzer.Analyze(cmd.Context(), path)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"duration_seconds":     meta.DurationSeconds,
					"size_bytes":           meta.SizeBytes,
					"bit_rate":             meta.BitRate,
					"video_codec":          meta.VideoCodec,
					"audio_codec":          meta.AudioCodec,
					"width":                meta.Width,
					"height":               meta.Height,
					"frames_per_second":    meta.FramesPerSecond,
					"audio_channels":       meta.AudioChannels,
					"audio_sample_rate_hz": meta.AudioSampleRateHz,
				})
			}

			audioCodec := meta.AudioCodec
			if audioCodec == "" {
				audioCodec = "-"
			}
			rows := [][]string{
				{"Duration", formatSeconds(meta.DurationSeconds)},
				{"Size", humanize.IBytes(uint64(meta.SizeBytes))},
				{"Bit rate", humanize.SI(float64(meta.BitRate), "bps")},
				{"Video codec", meta.VideoCodec},
				{"Resolution", meta.Resolution()},
				{"Frame rate", fmt.Sprintf("%.3f fps", meta.FramesPerSecond)},
				{"Audio codec", audioCodec},
				{"Audio channels", fmt.Sprintf("%d", meta.AudioChannels)},
				{"Sample rate", humanize.SI(float64(meta.AudioSampleRateHz), "Hz")},
			}
			tableText := renderTable(
				[]string{"Property", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), tableText)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit metadata as JSON")
	return cmd
}

func formatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Truncate(100 * time.Millisecond)
	return fmt.Sprintf("%s (%.1f s)", d, seconds)
}
