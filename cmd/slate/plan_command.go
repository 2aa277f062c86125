package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slate/internal/config"
	"slate/internal/logging"
	"slate/internal/media/analysis"
	"slate/internal/segment"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var maxPartSizeMB int
	var durationSeconds float64

	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Preview how a file would be split for delivery",
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
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("inspect file %q: %w", path, err)
			}
			if info.IsDir() {
				return fmt.Errorf("file %q is a directory", path)
			}

			ceiling := cfg.Pipeline.MaxPartSizeMB
			if maxPartSizeMB > 0 {
				ceiling = maxPartSizeMB
			}

			duration := durationSeconds
			if duration <= 0 {
				analyzer := analysis.NewAnalyzer(cfg, logging.NewNop())
				meta, err := analyzer.Analyze(cmd.Context(), path)
				if err != nil {
					return err
				}
				duration = meta.DurationSeconds
			}

			plan, err := segment.ComputePlan(info.Size(), duration, ceiling)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"size_bytes":             plan.SizeBytes,
					"size_mb":                plan.SizeMB,
					"max_part_size_mb":       plan.MaxPartSizeMB,
					"parts":                  plan.Parts,
					"part_duration_seconds":  plan.PartDurationSeconds,
					"total_duration_seconds": plan.TotalDurationSeconds,
					"needs_split":            plan.NeedsSplit(),
				})
			}

			rows := [][]string{
				{"Size", fmt.Sprintf("%s (%.1f MB)", humanize.IBytes(uint64(plan.SizeBytes)), plan.SizeMB)},
				{"Ceiling", fmt.Sprintf("%d MB", plan.MaxPartSizeMB)},
				{"Needs split", yesNo(plan.NeedsSplit())},
				{"Parts", fmt.Sprintf("%d", plan.Parts)},
				{"Part duration", formatSeconds(plan.PartDurationSeconds)},
				{"Total duration", formatSeconds(plan.TotalDurationSeconds)},
			}
			tableText := renderTable(
				[]string{"Property", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tableText)
			if plan.NeedsSplit() {
				fmt.Fprintln(out, "\nParts are cut by stream copy; realized boundaries snap to keyframes and sizes shift accordingly.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the plan as JSON")
	cmd.Flags().IntVar(&maxPartSizeMB, "max-part-size", 0, "Override the configured part size ceiling (MB)")
	cmd.Flags().Float64Var(&durationSeconds, "duration", 0, "Assume this duration in seconds instead of probing")
	return cmd
}
