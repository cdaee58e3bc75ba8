package testsupport

import (
	"testing"

	"sieve/internal/config"
	"sieve/internal/logging"
	"sieve/internal/review"
	"sieve/internal/signature"
)

// MustOpenStore opens the writable signature store for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *signature.Store {
	t.Helper()

	store, err := signature.Open(cfg.Paths.Store, cfg.Fingerprint.SignatureLength, logging.NewNop())
	if err != nil {
		t.Fatalf("signature.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedStore appends records and closes the store so later opens see them.
func SeedStore(t testing.TB, cfg *config.Config, records ...signature.Record) {
	t.Helper()

	store, err := signature.Open(cfg.Paths.Store, cfg.Fingerprint.SignatureLength, logging.NewNop())
	if err != nil {
		t.Fatalf("signature.Open: %v", err)
	}
	defer store.Close()
	for _, rec := range records {
		if _, err := store.Append(rec); err != nil {
			t.Fatalf("append %s: %v", rec.Path, err)
		}
	}
}

// MustOpenDecisions opens the review decisions database for cfg.
func MustOpenDecisions(t testing.TB, cfg *config.Config) *review.Decisions {
	t.Helper()

	d, err := review.OpenDecisions(t.Context(), cfg.DecisionsPath())
	if err != nil {
		t.Fatalf("review.OpenDecisions: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d
}
