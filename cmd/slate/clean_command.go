package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slate/internal/logging"
	"slate/internal/staging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var cleanAll bool
	var listOnly bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale staging workspaces",
		Long: `Remove staging workspaces older than the configured retention window.

Use --all to remove every workspace regardless of age, and --list to inspect
what is currently staged without removing anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
			if stagingDir == "" {
				fmt.Fprintln(out, "Staging directory not configured")
				return nil
			}

			if listOnly {
				return printStagingList(cmd, stagingDir)
			}

			maxAge := cfg.WorkspaceRetention()
			scope := "stale"
			if cleanAll {
				maxAge = 0
				scope = "staged"
			} else if maxAge <= 0 {
				fmt.Fprintln(out, "Workspace retention is disabled; use --all to remove every workspace")
				return nil
			}

			result := staging.CleanStale(cmd.Context(), stagingDir, maxAge, logging.NewNop())
			printStagingCleanResult(cmd, result, scope)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanAll, "all", false, "Remove all staging workspaces regardless of age")
	cmd.Flags().BoolVar(&listOnly, "list", false, "List staging workspaces without removing anything")
	return cmd
}

func printStagingList(cmd *cobra.Command, stagingDir string) error {
	dirs, err := staging.ListDirectories(stagingDir)
	if err != nil {
		return fmt.Errorf("list staging workspaces: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(dirs) == 0 {
		fmt.Fprintln(out, "No staging workspaces found")
		return nil
	}

	fmt.Fprintf(out, "Staging directory: %s\n\n", stagingDir)

	var totalSize int64
	rows := make([][]string, 0, len(dirs))
	for _, dir := range dirs {
		age := time.Since(dir.ModTime).Truncate(time.Minute)
		totalSize += dir.Size
		rows = append(rows, []string{
			shortJobID(dir.Name),
			formatDuration(age),
			humanize.IBytes(uint64(dir.Size)),
		})
	}

	tableText := renderTable(
		[]string{"Job", "Age", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	)
	fmt.Fprint(out, tableText)
	fmt.Fprintf(out, "\nTotal: %d workspaces, %s\n", len(dirs), humanize.IBytes(uint64(totalSize)))
	return nil
}

func printStagingCleanResult(cmd *cobra.Command, result staging.CleanStaleResult, scope string) {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintf(out, "No %s workspaces to clean\n", scope)
		return
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "Removed %d %s workspaces, %d errors\n", len(result.Removed), scope, len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
		}
		return
	}
	fmt.Fprintf(out, "Removed %d %s workspaces\n", len(result.Removed), scope)
}

func shortJobID(name string) string {
	if len(name) > 8 {
		return name[:8]
	}
	return name
}

func formatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd", days)
}
