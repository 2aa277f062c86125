package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"slate/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check external tools and directory access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			failed := preflight.Failed(results)

			if jsonOut {
				checks := make([]map[string]any, 0, len(results))
				for _, result := range results {
					checks = append(checks, map[string]any{
						"name":   result.Name,
						"passed": result.Passed,
						"detail": result.Detail,
					})
				}
				if err := writeJSON(cmd, map[string]any{"checks": checks, "passed": !failed}); err != nil {
					return err
				}
				if failed {
					return errors.New("preflight checks failed")
				}
				return nil
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if failed {
				return errors.New("preflight checks failed")
			}
			fmt.Fprintln(out, "\nAll checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit check results as JSON")
	return cmd
}
