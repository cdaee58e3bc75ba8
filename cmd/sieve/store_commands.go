package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sieve/internal/identity"
	"sieve/internal/matcher"
	"sieve/internal/signature"
)

func newStoreCommand(ctx *commandContext) *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Signature store utilities",
	}
	storeCmd.AddCommand(newStoreStatsCommand(ctx))
	return storeCmd
}

func newStoreStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the signature store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, err := signature.OpenReadOnly(cfg.Paths.Store, cfg.Fingerprint.SignatureLength, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			stats := store.Stats()
			records := store.Records()
			padded := strings.Repeat("0", signature.DigitsPerValue)
			var (
				short      int
				identified int
				total      float64
			)
			for _, rec := range records {
				if strings.HasSuffix(rec.Signature, padded) {
					short++
				}
				if _, ok := identity.Extract(rec.Path); ok {
					identified++
				}
				total += rec.Duration
			}
			avg := 0.0
			if len(records) > 0 {
				avg = total / float64(len(records))
			}

			rows := [][]string{
				{"Records", humanize.Comma(int64(stats.Records))},
				{"Lines read", humanize.Comma(int64(stats.Lines))},
				{"Malformed lines", strconv.Itoa(stats.Malformed)},
				{"Duplicate paths", strconv.Itoa(stats.Duplicates)},
				{"Refit to length", strconv.Itoa(stats.Refit)},
				{"Padded (short audio)", strconv.Itoa(short)},
				{"With identity token", humanize.Comma(int64(identified))},
				{"Mean duration", fmt.Sprintf("%.1fs", avg)},
				{"Pairs to compare", humanize.Comma(matcher.PairCount(len(records)))},
				{"Signature length", strconv.Itoa(store.Length())},
			}
			fmt.Fprintln(cmd.OutOrStdout(), tableSpec{
				title:   store.Path(),
				headers: []string{"", "Value"},
				rows:    rows,
				aligns:  []columnAlignment{alignLeft, alignRight},
			}.render())
			return nil
		},
	}
}
