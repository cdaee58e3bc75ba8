package matcher_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"sieve/internal/logging"
	"sieve/internal/matcher"
)

func TestCandidateFileQuotesAwkwardPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "candidates.csv")
	w, err := matcher.CreateCandidateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []matcher.Candidate{
		{Score: 100, PathA: `Artist, The - "Hit".mka`, PathB: " leading space.mka"},
		{Score: 71, PathA: "a.mka", PathB: "b.mka"},
	}
	for _, c := range want {
		if err := w.Write(c); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	got, skipped, err := matcher.ReadCandidateFile(path, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 || len(got) != len(want) {
		t.Fatalf("got %+v skipped=%d", got, skipped)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReadCandidatesSkipsMalformedRows(t *testing.T) {
	input := strings.Join([]string{
		"90,a.mka,b.mka",
		"abc,a.mka,b.mka",
		"101,a.mka,b.mka",
		"80,only-one.mka",
		"75,,b.mka",
		`72, "legacy, quoted.mka", "other.mka"`,
	}, "\n") + "\n"
	got, skipped, err := matcher.ReadCandidates(bytes.NewBufferString(input), logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 4 {
		t.Fatalf("skipped = %d, want 4", skipped)
	}
	if len(got) != 2 || got[1].PathA != "legacy, quoted.mka" || got[1].Score != 72 {
		t.Fatalf("unexpected rows %+v", got)
	}
}
