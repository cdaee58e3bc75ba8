package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sieve/internal/matcher"
	"sieve/internal/review"
)

const (
	tokenA = "0123456789abcdef0123456789abcdef"
	tokenB = "fedcba9876543210fedcba9876543210"
)

func TestIngestMatchReviewWorkflow(t *testing.T) {
	env := setupCLITestEnv(t)

	original := env.addMedia(t, "radio/song."+tokenA+".mka", "1,2,3,4")
	copyPath := env.addMedia(t, "backup/song copy.mka", "1,2,3,4")
	other := env.addMedia(t, "radio/other."+tokenB+".mka", "4294967295,4294967295,4294967295,4294967295")

	out, _, err := runCLI(t, []string{"ingest", env.mediaDir}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	requireContains(t, out, "Added")

	// Second run is idempotent.
	out, _, err = runCLI(t, []string{"ingest", env.mediaDir}, env.configPath)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	requireContains(t, out, "Already catalogued")
	data, err := os.ReadFile(env.cfg.Paths.Store)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Fatalf("expected 3 store lines, got %d:\n%s", lines, data)
	}

	if _, _, err := runCLI(t, []string{"match"}, env.configPath); err != nil {
		t.Fatalf("match: %v", err)
	}
	cands, skipped, err := matcher.ReadCandidateFile(env.cfg.Paths.Candidates, nil)
	if err != nil {
		t.Fatalf("read candidates: %v", err)
	}
	if skipped != 0 || len(cands) != 1 {
		t.Fatalf("expected one candidate, got %+v (skipped %d)", cands, skipped)
	}
	got := cands[0]
	if got.Score != 100 {
		t.Fatalf("expected identical signatures to score 100, got %d", got.Score)
	}
	pair := map[string]bool{got.PathA: true, got.PathB: true}
	if !pair[original] || !pair[copyPath] || pair[other] {
		t.Fatalf("unexpected pair %+v", got)
	}

	out, _, err = runCLI(t, []string{"review", "mark", tokenA}, env.configPath)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	requireContains(t, out, "Marked "+original)

	if _, _, err := runCLI(t, []string{"review", "mark", tokenB}, env.configPath); err == nil {
		t.Fatal("expected unknown reference error for an identity outside the candidates")
	}

	out, _, err = runCLI(t, []string{"review", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, tokenA)

	out, _, err = runCLI(t, []string{"review", "deletions"}, env.configPath)
	if err != nil {
		t.Fatalf("deletions: %v", err)
	}
	if out != original+"\n" {
		t.Fatalf("unexpected deletion list %q", out)
	}

	dest := filepath.Join(env.baseDir, "delete-these-files.txt")
	out, _, err = runCLIWithInput(t, []string{"review", "deletions", "-o", dest}, env.configPath, strings.NewReader("n\n"))
	if err != nil {
		t.Fatalf("deletions declined: %v", err)
	}
	requireContains(t, out, "Aborted")
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("declined prompt should not write %s", dest)
	}

	if _, _, err := runCLI(t, []string{"review", "deletions", "-o", dest, "--yes"}, env.configPath); err != nil {
		t.Fatalf("deletions --yes: %v", err)
	}
	written, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read deletion list: %v", err)
	}
	if string(written) != original+"\n" {
		t.Fatalf("unexpected deletion file %q", written)
	}

	out, _, err = runCLI(t, []string{"review", "export"}, env.configPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, out, review.PageFile)
	page, err := os.ReadFile(filepath.Join(env.cfg.Paths.ReviewDir, review.PageFile))
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	requireContains(t, string(page), tokenA)

	out, _, err = runCLI(t, []string{"review", "unmark", tokenA}, env.configPath)
	if err != nil {
		t.Fatalf("unmark: %v", err)
	}
	requireContains(t, out, "Unmarked "+tokenA)
	out, _, err = runCLI(t, []string{"review", "deletions"}, env.configPath)
	if err != nil {
		t.Fatalf("deletions after unmark: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty deletion list, got %q", out)
	}
}

func TestIngestReportsFailuresAndContinues(t *testing.T) {
	env := setupCLITestEnv(t)
	good := env.addMedia(t, "good.mka", "1,2,3,4")
	env.addMedia(t, "bad.mka", "fail")

	out, _, err := runCLI(t, []string{"ingest", filepath.Join(env.mediaDir, "*.mka")}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	requireContains(t, out, "Failed files")
	requireContains(t, out, "bad.mka")

	data, err := os.ReadFile(env.cfg.Paths.Store)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if !strings.Contains(string(data), good) || strings.Contains(string(data), "bad.mka") {
		t.Fatalf("unexpected store content:\n%s", data)
	}
}

func TestIngestFromPathList(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.addMedia(t, "a.mka", "1,2,3,4")
	b := env.addMedia(t, "b.mka", "5,6,7,8")

	list := "# catalogue\n" + a + "\n\n" + b + "\n"
	if _, _, err := runCLIWithInput(t, []string{"ingest", "--from", "-"}, env.configPath, strings.NewReader(list)); err != nil {
		t.Fatalf("ingest --from: %v", err)
	}
	out, _, err := runCLI(t, []string{"store", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("store stats: %v", err)
	}
	requireContains(t, out, "Records")
	requireContains(t, out, "Pairs to compare")
}

func TestIngestWithoutInputsFails(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"ingest"}, env.configPath); err == nil {
		t.Fatal("expected error without inputs")
	}
}

func TestMatchRejectsInvalidThreshold(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"match", "--threshold", "150"}, env.configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, statErr := os.Stat(env.cfg.Paths.Candidates); !os.IsNotExist(statErr) {
		t.Fatal("invalid options must not truncate the candidate list")
	}
}

func TestReviewWithoutCandidates(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"review", "list"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "sieve match") {
		t.Fatalf("expected hint to run match, got %v", err)
	}
}
