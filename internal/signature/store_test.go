package signature_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sieve/internal/logging"
	"sieve/internal/signature"
)

func sig(d byte, n int) string { return strings.Repeat(string(d), n) }

func openStore(t *testing.T, path string, length int) *signature.Store {
	t.Helper()
	store, err := signature.Open(path, length, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreAppendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prints.csv")
	store := openStore(t, path, 8)

	added, err := store.Append(signature.Record{Path: "a, b.mka", Signature: sig('1', 8), Duration: 200.5})
	if err != nil || !added {
		t.Fatalf("Append = (%v, %v)", added, err)
	}
	added, err = store.Append(signature.Record{Path: "a, b.mka", Signature: sig('2', 8), Duration: 1})
	if err != nil || added {
		t.Fatalf("duplicate Append = (%v, %v), want (false, nil)", added, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openStore(t, path, 8)
	rec, ok := reopened.Lookup("a, b.mka")
	if !ok {
		t.Fatal("record missing after reopen")
	}
	if rec.Signature != sig('1', 8) || rec.Duration != 200.5 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if reopened.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reopened.Len())
	}
}

func TestStoreSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prints.csv")
	content := strings.Join([]string{
		"good.mka,0123,12",
		"only-two,0123",
		"bad-alphabet.mka,01x3,12",
		"bad-duration.mka,0123,abc",
		`"unterminated,0123,12`,
		"",
		"good.mka,3333,99",
		"second.mka,0000,1.5",
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	store := openStore(t, path, 4)
	stats := store.Stats()
	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2", store.Len())
	}
	if stats.Malformed != 4 || stats.Duplicates != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	rec, _ := store.Lookup("good.mka")
	if rec.Signature != "0123" {
		t.Fatalf("first occurrence should win, got %+v", rec)
	}
}

func TestStoreSkipsOverlongCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prints.csv")
	var content strings.Builder
	content.WriteString("first.mka,0123,12\n")
	content.WriteString(strings.Repeat("\x00", 2<<20))
	content.WriteString("\nlast.mka,3210,30\n")
	if err := os.WriteFile(path, []byte(content.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	store := openStore(t, path, 4)
	if !store.Has("first.mka") || !store.Has("last.mka") || store.Len() != 2 {
		t.Fatalf("expected both valid records around the corrupt line, got %d", store.Len())
	}
	if stats := store.Stats(); stats.Malformed != 1 || stats.Lines != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	added, err := store.Append(signature.Record{Path: "next.mka", Signature: "1111", Duration: 5})
	if err != nil || !added {
		t.Fatalf("Append after corrupt line = (%v, %v)", added, err)
	}
}

func TestStoreSkipsOverlongUnterminatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prints.csv")
	content := "first.mka,0123,12\n" + strings.Repeat("\x00", 2<<20)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	store := openStore(t, path, 4)
	if store.Len() != 1 || store.Stats().Malformed != 1 {
		t.Fatalf("Len = %d, stats %+v", store.Len(), store.Stats())
	}
}

func TestStoreRepairsTornFinalLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prints.csv")
	if err := os.WriteFile(path, []byte("a.mka,0123,10\nb.mka,01"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := openStore(t, path, 4)
	if store.Len() != 1 || store.Stats().Malformed != 1 {
		t.Fatalf("torn line should be skipped: len=%d stats=%+v", store.Len(), store.Stats())
	}
	if _, err := store.Append(signature.Record{Path: "b.mka", Signature: "0123", Duration: 3}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	_ = store.Close()

	reopened := openStore(t, path, 4)
	if !reopened.Has("a.mka") || !reopened.Has("b.mka") {
		t.Fatalf("expected both records after repair, got %d", reopened.Len())
	}
}

func TestStoreRefitsToConfiguredLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prints.csv")
	if err := os.WriteFile(path, []byte("a.mka,012301,10\nb.mka,01,10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := openStore(t, path, 4)
	a, _ := store.Lookup("a.mka")
	b, _ := store.Lookup("b.mka")
	if a.Signature != "0123" || b.Signature != "0100" {
		t.Fatalf("unexpected refit: %q %q", a.Signature, b.Signature)
	}
	if store.Stats().Refit != 2 {
		t.Fatalf("Refit = %d, want 2", store.Stats().Refit)
	}
}

func TestStoreLocking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prints.csv")
	writer := openStore(t, path, 4)

	if _, err := signature.OpenReadOnly(path, 4, nil); !errors.Is(err, signature.ErrStoreLocked) {
		t.Fatalf("reader during ingest: err = %v, want ErrStoreLocked", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	reader, err := signature.OpenReadOnly(path, 4, nil)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer reader.Close()
	if _, err := signature.Open(path, 4, nil); !errors.Is(err, signature.ErrStoreLocked) {
		t.Fatalf("writer during match: err = %v, want ErrStoreLocked", err)
	}
	if _, err := reader.Append(signature.Record{Path: "x", Signature: "0", Duration: 0}); err == nil {
		t.Fatal("read-only store must reject appends")
	}
}

func TestStoreFindByIdentity(t *testing.T) {
	const token = "0123456789abcdef0123456789abcdef"
	store := openStore(t, filepath.Join(t.TempDir(), "prints.csv"), 4)
	if _, err := store.Append(signature.Record{Path: "radio/Song." + token + ".mka", Signature: "0123", Duration: 5}); err != nil {
		t.Fatal(err)
	}
	rec, ok := store.FindByIdentity(strings.ToUpper(token))
	if !ok || rec.Path != "radio/Song."+token+".mka" {
		t.Fatalf("FindByIdentity = (%+v, %v)", rec, ok)
	}
}

func TestStoreRejectsInvalidRecord(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "prints.csv"), 4)
	for _, rec := range []signature.Record{
		{Path: "", Signature: "0123"},
		{Path: "line\nbreak.mka", Signature: "0123"},
		{Path: "a.mka", Signature: "9"},
		{Path: "a.mka", Signature: "0123", Duration: -1},
	} {
		if _, err := store.Append(rec); err == nil {
			t.Fatalf("expected rejection of %+v", rec)
		}
	}
}
