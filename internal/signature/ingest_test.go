package signature_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"sieve/internal/logging"
	"sieve/internal/services"
	"sieve/internal/services/fpcalc"
	"sieve/internal/signature"
)

type fakeFingerprinter struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string]fpcalc.Result
	fail    map[string]error
	onCall  func(path string)
}

func newFake() *fakeFingerprinter {
	return &fakeFingerprinter{
		calls:   make(map[string]int),
		results: make(map[string]fpcalc.Result),
		fail:    make(map[string]error),
	}
}

func (f *fakeFingerprinter) Fingerprint(ctx context.Context, path string, _ int) (fpcalc.Result, error) {
	f.mu.Lock()
	f.calls[path]++
	res, ok := f.results[path]
	err := f.fail[path]
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(path)
	}
	if err := ctx.Err(); err != nil {
		return fpcalc.Result{}, err
	}
	if err != nil {
		return fpcalc.Result{}, err
	}
	if !ok {
		return fpcalc.Result{Raw: []uint32{uint32(len(path))}, Duration: 100}, nil
	}
	return res, nil
}

func (f *fakeFingerprinter) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func TestIngestIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prints.csv")
	fake := newFake()
	inputs := []string{"a.mka", "b.mka", "a.mka", "c.mka"}

	run := func() signature.Report {
		store := openStore(t, path, 32)
		in, err := signature.NewIngester(store, fake, signature.IngestOptions{Seconds: 30, Workers: 2, Logger: logging.NewNop()})
		if err != nil {
			t.Fatal(err)
		}
		report, err := in.Ingest(t.Context(), inputs)
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if err := store.Close(); err != nil {
			t.Fatal(err)
		}
		return report
	}

	first := run()
	if first.Requested != 3 || first.Added != 3 || first.Skipped != 0 {
		t.Fatalf("first run report %+v", first)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	second := run()
	if second.Added != 0 || second.Skipped != 3 {
		t.Fatalf("second run report %+v", second)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("store changed on second run:\n%s\n---\n%s", before, after)
	}
	for _, p := range []string{"a.mka", "b.mka", "c.mka"} {
		if got := fake.count(p); got != 1 {
			t.Fatalf("%s fingerprinted %d times, want 1", p, got)
		}
	}
}

func TestIngestContinuesPastFailures(t *testing.T) {
	fake := newFake()
	fake.fail["broken.mka"] = services.Wrap(services.ErrValidation, "fpcalc", "parse", "no audio", nil)
	store := openStore(t, filepath.Join(t.TempDir(), "prints.csv"), 16)
	in, err := signature.NewIngester(store, fake, signature.IngestOptions{Workers: 3})
	if err != nil {
		t.Fatal(err)
	}

	report, err := in.Ingest(t.Context(), []string{"a.mka", "broken.mka", "c.mka"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Added != 2 || len(report.Failed) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Failed[0].Path != "broken.mka" || !errors.Is(report.Failed[0].Err, services.ErrValidation) {
		t.Fatalf("unexpected failure %+v", report.Failed[0])
	}
	if store.Has("broken.mka") {
		t.Fatal("failed path must not be catalogued")
	}
}

func TestIngestCanonicalizesToStoreLength(t *testing.T) {
	fake := newFake()
	fake.results["a.mka"] = fpcalc.Result{Raw: []uint32{3, 3}, Duration: 42.5}
	store := openStore(t, filepath.Join(t.TempDir(), "prints.csv"), 20)
	in, _ := signature.NewIngester(store, fake, signature.IngestOptions{})
	if _, err := in.Ingest(t.Context(), []string{"a.mka"}); err != nil {
		t.Fatal(err)
	}
	rec, _ := store.Lookup("a.mka")
	if rec.Signature != "0000000000000003"+"0000" || rec.Duration != 42.5 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestIngestReusesIdentity(t *testing.T) {
	const token = "0123456789abcdef0123456789abcdef"
	fake := newFake()
	fake.results["radio/One."+token+".mka"] = fpcalc.Result{Raw: []uint32{7}, Duration: 180}
	store := openStore(t, filepath.Join(t.TempDir(), "prints.csv"), 16)
	in, _ := signature.NewIngester(store, fake, signature.IngestOptions{ReuseIdentity: true, Workers: 4})

	paths := []string{
		"radio/One." + token + ".mka",
		"archive/One copy." + token + ".mka",
		"plain.mka",
	}
	report, err := in.Ingest(t.Context(), paths)
	if err != nil {
		t.Fatal(err)
	}
	if report.Added != 3 || report.Reused != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if fake.count(paths[1]) != 0 {
		t.Fatal("token follower should not be fingerprinted")
	}
	leader, _ := store.Lookup(paths[0])
	follower, _ := store.Lookup(paths[1])
	if leader.Signature != follower.Signature || follower.Duration != 180 {
		t.Fatalf("follower should copy leader: %+v vs %+v", leader, follower)
	}
}

func TestIngestFollowerFingerprintedWhenLeaderFails(t *testing.T) {
	const token = "ffffffffffffffffffffffffffffffff"
	fake := newFake()
	leader := "a." + token + ".mka"
	follower := "b." + token + ".mka"
	fake.fail[leader] = services.Wrap(services.ErrExternalTool, "fpcalc", "run", "crashed", nil)
	store := openStore(t, filepath.Join(t.TempDir(), "prints.csv"), 16)
	in, _ := signature.NewIngester(store, fake, signature.IngestOptions{ReuseIdentity: true})

	report, err := in.Ingest(t.Context(), []string{leader, follower})
	if err != nil {
		t.Fatal(err)
	}
	if !store.Has(follower) || report.Reused != 0 || len(report.Failed) != 1 {
		t.Fatalf("follower should be fingerprinted on its own: %+v", report)
	}
}

func TestIngestCancellationKeepsAppendedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prints.csv")
	fake := newFake()
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	fake.onCall = func(p string) {
		if p == "b.mka" {
			cancel()
		}
	}
	store := openStore(t, path, 16)
	in, _ := signature.NewIngester(store, fake, signature.IngestOptions{Workers: 1})

	report, err := in.Ingest(ctx, []string{"a.mka", "b.mka", "c.mka", "d.mka"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !store.Has("a.mka") || store.Has("c.mka") || store.Has("d.mka") {
		t.Fatalf("unexpected store contents after cancel: %+v", report)
	}
	_ = store.Close()

	reopened := openStore(t, path, 16)
	if !reopened.Has("a.mka") {
		t.Fatal("record appended before cancel must be durable")
	}
}
