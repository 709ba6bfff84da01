package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"reelpack/internal/deps"
	"reelpack/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check ffmpeg, encoder support, and working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			}

			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "Available", "Detail"}, dependencyRows(statuses), nil))

			checks := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(checks))
			for _, c := range checks {
				rows = append(rows, []string{c.Name, yesNo(c.Passed), c.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Passed", "Detail"}, rows, nil))

			missing := 0
			for _, s := range statuses {
				if !s.Available && !s.Optional {
					missing++
				}
			}
			if failed := len(preflight.Failed(checks)); missing > 0 || failed > 0 {
				return errors.New("environment is not ready; see the tables above")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

func dependencyRows(statuses []deps.Status) [][]string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		detail := s.Detail
		if detail == "" {
			detail = s.Description
		}
		available := yesNo(s.Available)
		if !s.Available && s.Optional {
			available = "optional"
		}
		rows = append(rows, []string{s.Name, s.Command, available, detail})
	}
	return rows
}
