package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sieve/internal/preflight"
)

var errDoctorFailed = errors.New("doctor found problems")

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories, and the signature store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := false

			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			depRows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				state := "ok"
				detail := s.Version
				if !s.Available {
					detail = s.Detail
					if s.Optional {
						state = "missing (optional)"
					} else {
						state = "MISSING"
						failed = true
					}
				}
				depRows = append(depRows, []string{s.Name, s.Command, state, detail})
			}
			fmt.Fprintln(out, tableSpec{
				title:   "Tools",
				headers: []string{"Tool", "Command", "Status", "Detail"},
				rows:    depRows,
			}.render())

			results := preflight.RunAll(cmd.Context(), cfg)
			checkRows := make([][]string, 0, len(results))
			for _, r := range results {
				state := "ok"
				if !r.Passed {
					state = "FAIL"
					failed = true
				}
				checkRows = append(checkRows, []string{r.Name, state, r.Detail})
			}
			fmt.Fprintln(out, tableSpec{
				title:   "Checks",
				headers: []string{"Check", "Status", "Detail"},
				rows:    checkRows,
			}.render())

			if failed {
				return errDoctorFailed
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
