package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sieve/internal/config"
	"sieve/internal/logging"
	"sieve/internal/matcher"
	"sieve/internal/media/metadata"
	"sieve/internal/media/tags"
	"sieve/internal/review"
	"sieve/internal/signature"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	var candidates string

	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect candidates and record which files to delete",
	}
	reviewCmd.PersistentFlags().StringVar(&candidates, "candidates", "", "Candidate CSV path (overrides paths.candidates)")

	reviewCmd.AddCommand(newReviewExportCommand(ctx, &candidates))
	reviewCmd.AddCommand(newReviewMarkCommand(ctx, &candidates))
	reviewCmd.AddCommand(newReviewUnmarkCommand(ctx))
	reviewCmd.AddCommand(newReviewListCommand(ctx, &candidates))
	reviewCmd.AddCommand(newReviewDeletionsCommand(ctx, &candidates))
	return reviewCmd
}

// reviewSession bundles what every review subcommand needs.
type reviewSession struct {
	cfg       *config.Config
	logger    *slog.Logger
	model     *review.Model
	decisions *review.Decisions
	stale     []review.Decision
}

func (s *reviewSession) Close() error {
	if s.decisions == nil {
		return nil
	}
	return s.decisions.Close()
}

// openReviewSession correlates the candidate list and applies stored marks.
// Durations come from the store when it can be read; a locked or missing
// store only loses the duration column.
func openReviewSession(cmd *cobra.Command, ctx *commandContext, candidatesFlag string) (*reviewSession, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	path := cfg.Paths.Candidates
	if strings.TrimSpace(candidatesFlag) != "" {
		path = strings.TrimSpace(candidatesFlag)
	}

	cands, skipped, err := matcher.ReadCandidateFile(path, logger)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no candidate list at %s; run sieve match first", path)
		}
		return nil, err
	}
	if skipped > 0 {
		fprintf(cmd.ErrOrStderr(), "Skipped %d malformed candidate rows\n", skipped)
	}

	model := review.Correlate(cands, storeDurations(cfg, logger))
	decisions, err := review.OpenDecisions(cmd.Context(), cfg.DecisionsPath())
	if err != nil {
		return nil, err
	}
	stored, err := decisions.All(cmd.Context())
	if err != nil {
		decisions.Close()
		return nil, err
	}
	return &reviewSession{
		cfg:       cfg,
		logger:    logger,
		model:     model,
		decisions: decisions,
		stale:     model.Apply(stored),
	}, nil
}

func storeDurations(cfg *config.Config, logger *slog.Logger) map[string]float64 {
	store, err := signature.OpenReadOnly(cfg.Paths.Store, cfg.Fingerprint.SignatureLength, logger)
	if err != nil {
		logging.WarnWithContext(logger, "store unavailable for durations", "store_unavailable",
			logging.Path(cfg.Paths.Store),
			logging.Error(err),
			logging.String(logging.FieldImpact, "review shows no durations"),
			logging.String(logging.FieldErrorHint, "wait for a running ingest to finish"),
		)
		return nil
	}
	defer store.Close()
	return store.Durations()
}

func newReviewExportCommand(ctx *commandContext, candidates *string) *cobra.Command {
	var (
		outDir     string
		noMetadata bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write review.json and the interactive review.html page",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openReviewSession(cmd, ctx, *candidates)
			if err != nil {
				return err
			}
			defer session.Close()
			cfg := session.cfg

			dir := cfg.Paths.ReviewDir
			if strings.TrimSpace(outDir) != "" {
				dir, err = config.ExpandPath(strings.TrimSpace(outDir))
				if err != nil {
					return err
				}
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create review directory: %w", err)
				}
			}

			opts := review.ExportOptions{
				RunID:   uuid.NewString(),
				Resolve: cfg.ResolveMediaPath,
				Logger:  session.logger,
			}
			if cfg.Review.Metadata && !noMetadata {
				opts.Metadata = metadata.NewCache(metadata.Chain{
					metadata.FFprobe{Binary: cfg.Review.FFprobeBinary},
					tags.Native{},
					tags.Filename{},
				})
			}

			result, err := review.Export(cmd.Context(), dir, session.model, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Pairs", strconv.Itoa(result.Pairs)},
				{"Files marked", strconv.Itoa(len(session.model.DeletionList()))},
			}
			if opts.Metadata != nil {
				rows = append(rows,
					[]string{"Metadata found", strconv.Itoa(result.Enriched)},
					[]string{"Metadata failed", strconv.Itoa(result.Failed)},
				)
			}
			rows = append(rows,
				[]string{"Document", result.DocumentPath},
				[]string{"Page", result.PagePath},
			)
			fmt.Fprintln(out, tableSpec{
				title:   "Review " + opts.RunID,
				headers: []string{"", "Value"},
				rows:    rows,
			}.render())
			printStale(cmd.ErrOrStderr(), session.stale)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (overrides paths.review_dir)")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "Skip ffprobe and tag lookups")
	return cmd
}

func newReviewMarkCommand(ctx *commandContext, candidates *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mark <path-or-identity>...",
		Short: "Select files for deletion; every occurrence of the identity is selected",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openReviewSession(cmd, ctx, *candidates)
			if err != nil {
				return err
			}
			defer session.Close()

			out := cmd.OutOrStdout()
			var unknown []string
			for _, ref := range args {
				decision, err := session.model.Mark(ref)
				if err != nil {
					if errors.Is(err, review.ErrUnknownReference) {
						unknown = append(unknown, ref)
						continue
					}
					return err
				}
				if err := session.decisions.Put(cmd.Context(), decision); err != nil {
					return err
				}
				fprintf(out, "Marked %s (%s)\n", decision.Path, decision.Key)
			}
			if len(unknown) > 0 {
				return fmt.Errorf("%w: %s", review.ErrUnknownReference, strings.Join(unknown, ", "))
			}
			return nil
		},
	}
}

func newReviewUnmarkCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "unmark <path-or-identity>...",
		Short: "Clear deletion marks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("pass a path or identity, or --all")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			decisions, err := review.OpenDecisions(cmd.Context(), cfg.DecisionsPath())
			if err != nil {
				return err
			}
			defer decisions.Close()

			out := cmd.OutOrStdout()
			if all {
				if err := decisions.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "Cleared all marks")
				return nil
			}
			for _, ref := range args {
				key := review.KeyOf(ref)
				removed, err := decisions.Delete(cmd.Context(), key)
				if err != nil {
					return err
				}
				if removed {
					fprintf(out, "Unmarked %s\n", key)
				} else {
					fprintf(out, "Not marked: %s\n", key)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Clear every mark")
	return cmd
}

func newReviewListCommand(ctx *commandContext, candidates *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show stored marks",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openReviewSession(cmd, ctx, *candidates)
			if err != nil {
				return err
			}
			defer session.Close()

			stored, err := session.decisions.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(stored) == 0 {
				fmt.Fprintln(out, "No files marked")
				return nil
			}
			stale := make(map[string]bool, len(session.stale))
			for _, d := range session.stale {
				stale[d.Key] = true
			}
			rows := make([][]string, 0, len(stored))
			for _, d := range stored {
				rows = append(rows, []string{d.Key, d.Path, yesNo(!stale[d.Key]), d.MarkedAt.Local().Format("2006-01-02 15:04")})
			}
			fmt.Fprintln(out, tableSpec{
				headers: []string{"Key", "Path", "In candidates", "Marked"},
				rows:    rows,
				footer:  []string{strconv.Itoa(len(stored)) + " marks", "", strconv.Itoa(len(stored) - len(session.stale)), ""},
			}.render())
			return nil
		},
	}
}

func newReviewDeletionsCommand(ctx *commandContext, candidates *string) *cobra.Command {
	var (
		output string
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "deletions",
		Short: "Write the deduplicated list of marked files",
		Long: `Resolve stored marks against the current candidate list and write one
path per line. Without -o the list goes to stdout. Writing a file asks
for confirmation unless --yes is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openReviewSession(cmd, ctx, *candidates)
			if err != nil {
				return err
			}
			defer session.Close()
			printStale(cmd.ErrOrStderr(), session.stale)

			paths := session.model.DeletionList()
			out := cmd.OutOrStdout()
			if output == "" {
				_, err := out.Write(review.FormatDeletionList(paths))
				return err
			}
			if len(paths) == 0 {
				fmt.Fprintln(out, "No files marked; nothing written")
				return nil
			}
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), out, fmt.Sprintf("Write %d paths to %s?", len(paths), output))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}
			if err := review.WriteDeletionList(output, paths); err != nil {
				return err
			}
			logging.NewComponentLogger(session.logger, "review").Info("deletion list written",
				logging.Path(output),
				logging.Int("paths", len(paths)),
			)
			fprintf(out, "Wrote %d paths to %s\n", len(paths), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the list to this file instead of stdout")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func printStale(w io.Writer, stale []review.Decision) {
	if len(stale) == 0 {
		return
	}
	fprintf(w, "%d stored marks no longer appear in the candidate list (see sieve review list)\n", len(stale))
}
