package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sieve/internal/config"
	"sieve/internal/logging"
	"sieve/internal/matcher"
	"sieve/internal/signature"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var (
		threshold float64
		tolerance float64
		workers   int
		batchSize int
		output    string
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Compare every pair in the store and write the candidate list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("threshold") {
				cfg.Matching.Threshold = threshold
			}
			if flags.Changed("tolerance") {
				cfg.Matching.DurationTolerance = tolerance
			}
			if flags.Changed("workers") {
				cfg.Matching.Workers = workers
			}
			if flags.Changed("batch-size") {
				cfg.Matching.BatchSize = batchSize
			}
			if output != "" {
				cfg.Paths.Candidates = output
			}
			if err := config.ValidateMatching(cfg.Matching); err != nil {
				return err
			}

			store, err := signature.OpenReadOnly(cfg.Paths.Store, cfg.Fingerprint.SignatureLength, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			records := store.Records()

			writer, err := matcher.CreateCandidateFile(cfg.Paths.Candidates)
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			progress := newProgressLine(cmd.ErrOrStderr())
			stats, runErr := matcher.Match(cmd.Context(), records, matcher.Options{
				Threshold:         cfg.Matching.Threshold,
				DurationTolerance: cfg.Matching.DurationTolerance,
				Workers:           cfg.MatchWorkers(),
				BatchSize:         cfg.Matching.BatchSize,
				RunID:             runID,
				Logger:            logger,
				OnProgress: func(p matcher.Progress) {
					pct := float64(p.Compared) / float64(max(p.Total, 1)) * 100
					progress.update("match %5.1f%%  %s/%s pairs  %s accepted",
						pct, humanize.Comma(p.Compared), humanize.Comma(p.Total), humanize.Comma(p.Accepted))
				},
			}, writer)
			progress.done()
			closeErr := writer.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tableSpec{
				title:   "Match " + runID,
				headers: []string{"", "Value"},
				rows: [][]string{
					{"Records", strconv.Itoa(stats.Records)},
					{"Pairs", humanize.Comma(stats.Pairs)},
					{"Compared", humanize.Comma(stats.Compared)},
					{"Accepted", humanize.Comma(stats.Accepted)},
					{"Workers", strconv.Itoa(stats.Workers)},
					{"Elapsed", stats.Elapsed.Round(1e6).String()},
					{"Candidates", cfg.Paths.Candidates},
				},
				aligns: []columnAlignment{alignLeft, alignRight},
			}.render())

			if runErr != nil {
				if errors.Is(runErr, cmd.Context().Err()) {
					logging.WarnWithContext(logger, "match interrupted", "match_cancelled",
						logging.String(logging.FieldRunID, runID),
						logging.String(logging.FieldImpact, "candidate list holds only the pairs compared so far"),
						logging.String(logging.FieldErrorHint, "rerun sieve match for a complete list"),
					)
				}
				return runErr
			}
			return closeErr
		},
	}

	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Minimum score 0-100, inclusive (overrides matching.threshold)")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0, "Maximum duration difference in seconds, inclusive (overrides matching.duration_tolerance)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Scoring workers; 0 uses every CPU (overrides matching.workers)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Pairs handed to a worker at once (overrides matching.batch_size)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Candidate CSV path (overrides paths.candidates)")
	return cmd
}
