package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sieve/internal/services/fpcalc"
	"sieve/internal/signature"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		workers         int
		seconds         int
		signatureLength int
		fromFile        string
		noReuse         bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [file|dir|glob]...",
		Short: "Fingerprint new files into the signature store",
		Long: `Fingerprint every file the store does not already hold.

Arguments may be files, directories (walked for audio files), or shell-style
glob patterns. Paths are matched against the store exactly as given, so use
the same form (relative or absolute) on every run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Fingerprint.Workers = workers
			}
			if cmd.Flags().Changed("length") {
				cfg.Fingerprint.LengthSeconds = seconds
			}
			if cmd.Flags().Changed("signature-length") {
				cfg.Fingerprint.SignatureLength = signatureLength
			}
			if noReuse {
				cfg.Fingerprint.ReuseIdentity = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			inputs := args
			if fromFile != "" {
				listed, err := readListSource(cmd, fromFile)
				if err != nil {
					return err
				}
				inputs = append(inputs, listed...)
			}
			paths, err := collectPaths(inputs, logger)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return errors.New("no input files; pass files, directories, globs, or --from")
			}

			client, err := fpcalc.New(cfg.Fingerprint.FpcalcBinary,
				fpcalc.WithAlgorithm(cfg.Fingerprint.Algorithm),
				fpcalc.WithOverlap(cfg.Fingerprint.Overlap),
				fpcalc.WithTimeout(time.Duration(cfg.Fingerprint.TimeoutSeconds)*time.Second),
			)
			if err != nil {
				return err
			}

			store, err := signature.Open(cfg.Paths.Store, cfg.Fingerprint.SignatureLength, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			progress := newProgressLine(cmd.ErrOrStderr())
			ingester, err := signature.NewIngester(store, client, signature.IngestOptions{
				Seconds:       cfg.Fingerprint.LengthSeconds,
				Workers:       ingestWorkers(cfg.Fingerprint.Workers),
				ReuseIdentity: cfg.Fingerprint.ReuseIdentity,
				Logger:        logger,
				OnProgress: func(done, total int) {
					progress.update("ingest %d/%d", done, total)
				},
			})
			if err != nil {
				return err
			}

			report, runErr := ingester.Ingest(cmd.Context(), paths)
			progress.done()
			printIngestReport(cmd.OutOrStdout(), store, report)
			if runErr != nil {
				return runErr
			}
			return store.Close()
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent fpcalc processes (overrides fingerprint.workers)")
	cmd.Flags().IntVarP(&seconds, "length", "d", 0, "Seconds of audio to fingerprint (overrides fingerprint.length_seconds)")
	cmd.Flags().IntVar(&signatureLength, "signature-length", 0, "Canonical signature length L (overrides fingerprint.signature_length)")
	cmd.Flags().StringVar(&fromFile, "from", "", "Read additional paths from a file, one per line (- for stdin)")
	cmd.Flags().BoolVar(&noReuse, "no-reuse", false, "Fingerprint every file even when its identity token is already catalogued")
	return cmd
}

func readListSource(cmd *cobra.Command, source string) ([]string, error) {
	if source == "-" {
		return readPathList(cmd.InOrStdin())
	}
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open path list: %w", err)
	}
	defer file.Close()
	return readPathList(file)
}

func printIngestReport(out io.Writer, store *signature.Store, report signature.Report) {
	rows := [][]string{
		{"Requested", strconv.Itoa(report.Requested)},
		{"Added", strconv.Itoa(report.Added)},
		{"  reused by identity", strconv.Itoa(report.Reused)},
		{"Already catalogued", strconv.Itoa(report.Skipped)},
		{"Failed", strconv.Itoa(len(report.Failed))},
		{"Store records", strconv.Itoa(store.Len())},
	}
	fmt.Fprintln(out, tableSpec{
		title:   "Ingest",
		headers: []string{"", "Files"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignRight},
	}.render())

	if len(report.Failed) == 0 {
		return
	}
	failures := make([][]string, 0, len(report.Failed))
	for _, f := range report.Failed {
		failures = append(failures, []string{f.Path, oneLine(f.Err.Error())})
	}
	fmt.Fprintln(out, tableSpec{
		title:   "Failed files (retry individually)",
		headers: []string{"Path", "Error"},
		rows:    failures,
	}.render())
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const limit = 120
	if len(s) > limit {
		return s[:limit-3] + "..."
	}
	return s
}

// ingestWorkers treats zero as one fpcalc per CPU.
func ingestWorkers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}
