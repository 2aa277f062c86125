package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"slate/internal/config"
	"slate/internal/logging"
	"slate/internal/organizer"
	"slate/internal/pipeline"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Transcode one file and deliver it to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(source)
			if err != nil {
				return fmt.Errorf("inspect source %q: %w", source, err)
			}
			if info.IsDir() {
				return fmt.Errorf("source %q is a directory", source)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// One-shot runs log to a file so the terminal stays free for the
			// progress bar and the summary table.
			logger, err := logging.New(logging.Options{
				Level:            cfg.Logging.Level,
				Format:           "json",
				OutputPaths:      []string{filepath.Join(cfg.Paths.LogDir, "slate-cli.log")},
				ErrorOutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "slate-cli.log")},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			pipe := pipeline.New(cfg, logger)
			org := organizer.New(cfg, logger)

			var opts []pipeline.RunOption
			bar := newTranscodeBar(cmd.OutOrStdout())
			if bar != nil {
				opts = append(opts, pipeline.WithEncodeProgress(func(percent float64) {
					_ = bar.Set(int(percent))
				}))
			}

			result, err := pipe.Run(runCtx, source, opts...)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}

			delivered, err := org.Deliver(runCtx, result)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, processSummaryJSON(result, delivered))
			}
			printProcessSummary(cmd.OutOrStdout(), result, delivered)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the artifact summary as JSON")
	return cmd
}

// newTranscodeBar returns a progress bar when the writer is an interactive
// terminal, nil otherwise.
func newTranscodeBar(w io.Writer) *progressbar.ProgressBar {
	file, ok := w.(*os.File)
	if !ok {
		return nil
	}
	fd := file.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil
	}
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(file),
		progressbar.OptionSetDescription("transcoding"),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
}

func printProcessSummary(out io.Writer, result pipeline.Result, delivered []string) {
	rows := make([][]string, 0, len(result.Artifacts))
	for _, artifact := range result.Artifacts {
		part := "-"
		if artifact.TotalParts > 1 {
			part = fmt.Sprintf("%d/%d", artifact.PartIndex, artifact.TotalParts)
		}
		rows = append(rows, []string{
			artifact.Name,
			string(artifact.Kind),
			part,
			humanize.IBytes(uint64(artifact.SizeBytes)),
		})
	}

	tableText := renderTable(
		[]string{"Artifact", "Kind", "Part", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	)
	fmt.Fprintln(out, tableText)

	targetDir := ""
	if len(delivered) > 0 {
		targetDir = filepath.Dir(delivered[0])
	}
	fmt.Fprintf(out, "\nDelivered %d artifacts to %s in %s\n",
		len(delivered), targetDir, result.Elapsed.Truncate(time.Millisecond))
}

func processSummaryJSON(result pipeline.Result, delivered []string) map[string]any {
	artifacts := make([]map[string]any, 0, len(result.Artifacts))
	for _, artifact := range result.Artifacts {
		artifacts = append(artifacts, map[string]any{
			"name":        artifact.Name,
			"kind":        string(artifact.Kind),
			"part_index":  artifact.PartIndex,
			"total_parts": artifact.TotalParts,
			"size_bytes":  artifact.SizeBytes,
		})
	}
	return map[string]any{
		"job_id":          result.JobID,
		"source":          result.Source,
		"artifacts":       artifacts,
		"delivered_paths": delivered,
		"elapsed_seconds": result.Elapsed.Seconds(),
	}
}
